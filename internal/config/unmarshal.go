package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ParseConfigValue parses a JSON value that is either a plain string or an
// {"$env": "VAR_NAME"} reference resolved from the environment.
//
// The explicit JSON syntax is used instead of $VAR so that shell scripts
// handling the file never expand it by accident.
func ParseConfigValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("config value must be string or reference object")
	}

	envVar, ok := ref["$env"]
	if !ok {
		return "", fmt.Errorf("unknown reference type in config value")
	}

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not set", envVar)
	}
	// Strip surrounding quotes if present (only matching pairs)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return value, nil
}

// UnmarshalJSON resolves env references into the secret value
func (s *Secret) UnmarshalJSON(data []byte) error {
	value, err := ParseConfigValue(data)
	if err != nil {
		return err
	}
	*s = Secret(value)
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// UnmarshalJSON implements custom unmarshaling for CookieConfig
func (c *CookieConfig) UnmarshalJSON(data []byte) error {
	type rawCookies struct {
		Domain string `json:"domain"`
		TTL    string `json:"ttl"`
	}

	var raw rawCookies
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ttl, err := parseDuration("ttl", raw.TTL)
	if err != nil {
		return err
	}

	c.Domain = raw.Domain
	c.TTL = ttl
	return nil
}

// UnmarshalJSON implements custom unmarshaling for SessionStoreConfig
func (s *SessionStoreConfig) UnmarshalJSON(data []byte) error {
	type rawSessions struct {
		Storage             StorageKind `json:"storage"`
		PendingTTL          string      `json:"pendingTtl"`
		TTL                 string      `json:"ttl"`
		CleanupInterval     string      `json:"cleanupInterval"`
		RedisURL            Secret      `json:"redisUrl,omitempty"`
		KeyPrefix           string      `json:"keyPrefix,omitempty"`
		GCPProject          string      `json:"gcpProject,omitempty"`
		FirestoreDatabase   string      `json:"firestoreDatabase,omitempty"`
		FirestoreCollection string      `json:"firestoreCollection,omitempty"`
	}

	var raw rawSessions
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if s.PendingTTL, err = parseDuration("pendingTtl", raw.PendingTTL); err != nil {
		return err
	}
	if s.TTL, err = parseDuration("ttl", raw.TTL); err != nil {
		return err
	}
	if s.CleanupInterval, err = parseDuration("cleanupInterval", raw.CleanupInterval); err != nil {
		return err
	}

	s.Storage = raw.Storage
	s.RedisURL = raw.RedisURL
	s.KeyPrefix = raw.KeyPrefix
	s.GCPProject = raw.GCPProject
	s.FirestoreDatabase = raw.FirestoreDatabase
	s.FirestoreCollection = raw.FirestoreCollection
	return nil
}
