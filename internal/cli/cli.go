// Package cli holds the flag handling shared by the authd and calendar-front
// binaries.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dgellow/gsession/internal/config"
	"github.com/dgellow/gsession/internal/envutil"
	"github.com/dgellow/gsession/internal/log"
)

// App is a runnable process built from a loaded config
type App interface {
	Run() error
}

// Builder constructs the App for a given config
type Builder func(ctx context.Context, cfg config.Config) (App, error)

// ExampleConfig is written by -config-init. It configures both processes.
func ExampleConfig() map[string]any {
	return map[string]any{
		"version": "v1",
		"backend": map[string]any{
			"addr":           ":8000",
			"baseURL":        "https://auth.yourcompany.com",
			"frontendURL":    "https://calendar.yourcompany.com/",
			"allowedOrigins": []string{"https://calendar.yourcompany.com"},
			"allowedDomains": []string{"yourcompany.com"},
			"google": map[string]any{
				"clientId":     "your-client-id.apps.googleusercontent.com",
				"clientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
				"redirectUri":  "https://auth.yourcompany.com/oauth2callback",
			},
			"cookies": map[string]any{
				"domain": "yourcompany.com",
				"ttl":    "15m",
			},
			"sessions": map[string]any{
				"storage":    "memory",
				"pendingTtl": "10m",
			},
		},
		"frontend": map[string]any{
			"addr":               ":8501",
			"baseURL":            "https://calendar.yourcompany.com",
			"backendURL":         "http://localhost:8000",
			"googleClientId":     "your-client-id.apps.googleusercontent.com",
			"googleClientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
			"csrfKey":            map[string]string{"$env": "CSRF_KEY"},
			"cookies": map[string]any{
				"domain": "yourcompany.com",
			},
		},
	}
}

func generateDefaultConfig(path string) error {
	data, err := json.MarshalIndent(ExampleConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func printIssues(out io.Writer, title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(out, "  - %s\n", issue.Message)
		}
	}
}

func validateConfig(out io.Writer, path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Fprintf(out, "Validating: %s\n", path)
	printIssues(out, "Errors", result.Errors)
	printIssues(out, "Warnings", result.Warnings)

	fmt.Fprintln(out)
	switch {
	case len(result.Errors) == 0 && len(result.Warnings) == 0:
		fmt.Fprintln(out, "Result: PASS")
	case len(result.Errors) == 0:
		fmt.Fprintln(out, "Result: FAIL (warnings present)")
	default:
		fmt.Fprintln(out, "Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

// Main parses flags and runs the process; it returns the exit code
func Main(name, version string, args []string, build Builder) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	conf := fs.String("config", "", "path to config file (required)")
	showVersion := fs.Bool("version", false, "print version and exit")
	help := fs.Bool("help", false, "print help and exit")
	configInit := fs.String("config-init", "", "generate default config file at specified path")
	validate := fs.Bool("validate", false, "validate config file and exit")
	logLevel := fs.String("log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *logLevel != "" {
		if err := log.SetLogLevel(*logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	if *help {
		fs.Usage()
		return 0
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			return 1
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return 0
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		return 1
	}

	if *validate {
		if err := validateConfig(os.Stdout, *conf); err != nil {
			return 1
		}
		return 0
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		return 1
	}

	log.LogInfoWithFields("main", "Starting "+name, map[string]any{
		"version": version,
		"config":  *conf,
		"mode":    envutil.Current(),
	})

	app, err := build(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to create %s: %v", name, err)
		return 1
	}

	if err := app.Run(); err != nil {
		log.LogError("Server stopped with error: %v", err)
		return 1
	}
	return 0
}
