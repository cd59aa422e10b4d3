package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var bashStyleRegex = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)\}?`)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateDocument(data), nil
}

// ValidateDocument runs the structural checks of ValidateFile on raw bytes
func ValidateDocument(data []byte) *ValidationResult {
	result := &ValidationResult{}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": \"%s\"", SupportedVersionPrefix)
	} else if !strings.HasPrefix(version, SupportedVersionPrefix) {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersionPrefix)
	}

	_, hasBackend := rawConfig["backend"].(map[string]any)
	_, hasFrontend := rawConfig["frontend"].(map[string]any)
	if !hasBackend && !hasFrontend {
		result.addError("", "at least one of backend or frontend must be an object")
	}

	if hasBackend {
		validateBackendStructure(rawConfig, result)
	}
	if hasFrontend {
		for _, field := range []string{"addr", "backendURL", "googleClientId", "csrfKey"} {
			if _, ok := lookup(rawConfig, []string{"frontend", field}); !ok {
				result.addError("frontend."+field, "%s is required", field)
			}
		}
		if _, ok := lookup(rawConfig, []string{"frontend", "cookies", "domain"}); !ok {
			result.addError("frontend.cookies.domain", "cookie domain is required")
		}
	}

	for _, path := range secretPaths {
		value, ok := lookup(rawConfig, path)
		if !ok {
			continue
		}
		name := strings.Join(path, ".")
		if verr := validateEnvVarReference(value, path[len(path)-1], name); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}

	return result
}

func validateBackendStructure(rawConfig map[string]any, result *ValidationResult) {
	for _, field := range []string{"addr", "baseURL", "frontendURL"} {
		if _, ok := lookup(rawConfig, []string{"backend", field}); !ok {
			result.addError("backend."+field, "%s is required", field)
		}
	}

	google, ok := lookup(rawConfig, []string{"backend", "google"})
	if g, isMap := google.(map[string]any); !ok || !isMap {
		result.addError("backend.google", "google field is required and must be an object")
	} else if _, ok := g["redirectUri"]; !ok {
		result.addError("backend.google.redirectUri", "redirectUri is required")
	}

	if _, ok := lookup(rawConfig, []string{"backend", "cookies", "domain"}); !ok {
		result.addError("backend.cookies.domain", "cookie domain is required")
	}

	if storage, ok := lookup(rawConfig, []string{"backend", "sessions", "storage"}); ok {
		switch StorageKind(fmt.Sprint(storage)) {
		case StorageMemory, StorageRedis, StorageFirestore:
		default:
			result.addError("backend.sessions.storage", "storage must be one of memory, redis, firestore")
		}
	}
}

// validateEnvVarReference checks that a secret is an {"$env": ...} reference.
// The plain value is never echoed back.
func validateEnvVarReference(value any, fieldName, path string) *ValidationError {
	switch v := value.(type) {
	case string:
		if matches := bashStyleRegex.FindStringSubmatch(v); len(matches) > 1 {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax - use {\"$env\": \"%s\"} instead", matches[1]),
			}
		}
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must use environment variable reference {\"$env\": \"YOUR_ENV_VAR\"} instead of plain text", fieldName),
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; !hasEnv {
			return &ValidationError{
				Path:    path,
				Message: fmt.Sprintf("%s must use {\"$env\": \"YOUR_ENV_VAR\"} format", fieldName),
			}
		}
		return nil
	default:
		return &ValidationError{
			Path:    path,
			Message: fmt.Sprintf("%s must be an environment variable reference {\"$env\": \"YOUR_ENV_VAR\"}, not %T", fieldName, value),
		}
	}
}

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, hasEnv := v["$env"]; hasEnv {
			return
		}
		for key, val := range v {
			newPath := key
			if path != "" {
				newPath = path + "." + key
			}
			checkBashStyleSyntax(val, newPath, result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
