// Package envutil reads the deployment mode from GSESSION_ENV.
package envutil

import (
	"os"
	"strings"
)

// Mode is the deployment mode of a process
type Mode string

const (
	Production  Mode = "production"
	Development Mode = "development"
)

// Current returns the mode named by GSESSION_ENV. Only "dev" and
// "development" select Development; anything else is Production.
func Current() Mode {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("GSESSION_ENV"))) {
	case "dev", "development":
		return Development
	}
	return Production
}

// IsDev reports whether session cookies may be sent over plain http
func IsDev() bool {
	return Current() == Development
}
