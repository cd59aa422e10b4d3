package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/urlutil"
)

// SupportedVersionPrefix is the config version accepted by Load
const SupportedVersionPrefix = "v1"

// secretPaths lists the fields that must be provided as {"$env": ...} references
var secretPaths = [][]string{
	{"backend", "google", "clientSecret"},
	{"backend", "sessions", "redisUrl"},
	{"backend", "encryptionKey"},
	{"frontend", "googleClientSecret"},
	{"frontend", "csrfKey"},
}

// Load loads and processes the config with immediate env var resolution
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document
func Parse(data []byte) (Config, error) {
	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersionPrefix) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	// The custom UnmarshalJSON methods resolve env vars immediately
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	ApplyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateRawConfig checks secrets are env references before resolution
func validateRawConfig(rawConfig map[string]any) error {
	for _, path := range secretPaths {
		value, ok := lookup(rawConfig, path)
		if !ok {
			continue
		}
		name := strings.Join(path, ".")
		if err := validateEnvVarReference(value, name, name); err != nil {
			return fmt.Errorf("%s", err.Message)
		}
	}
	return nil
}

func lookup(m map[string]any, path []string) (any, bool) {
	var current any = m
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ApplyDefaults fills in the documented defaults for empty fields
func ApplyDefaults(config *Config) {
	if b := config.Backend; b != nil {
		if b.Cookies.TTL == 0 {
			b.Cookies.TTL = DefaultCookieTTL
		}
		if len(b.Google.Scopes) == 0 {
			b.Google.Scopes = append([]string(nil), DefaultScopes...)
		}
		s := &b.Sessions
		if s.Storage == "" {
			s.Storage = StorageMemory
		}
		if s.PendingTTL == 0 {
			s.PendingTTL = DefaultPendingTTL
		}
		if s.TTL == 0 {
			s.TTL = b.Cookies.TTL
		}
		if s.CleanupInterval == 0 {
			s.CleanupInterval = DefaultCleanupInterval
		}
		if s.KeyPrefix == "" {
			s.KeyPrefix = DefaultRedisKeyPrefix
		}
		if s.FirestoreCollection == "" {
			s.FirestoreCollection = DefaultFirestoreCollection
		}
	}

	if f := config.Frontend; f != nil {
		if f.CalendarID == "" {
			f.CalendarID = DefaultCalendarID
		}
		if f.MaxEvents == 0 {
			f.MaxEvents = DefaultMaxEvents
		}
	}
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Backend == nil && config.Frontend == nil {
		return fmt.Errorf("at least one of backend or frontend must be configured")
	}
	if config.Backend != nil {
		if err := validateBackend(config.Backend); err != nil {
			return fmt.Errorf("backend: %w", err)
		}
	}
	if config.Frontend != nil {
		if err := validateFrontend(config.Frontend); err != nil {
			return fmt.Errorf("frontend: %w", err)
		}
	}
	if config.Backend != nil && config.Frontend != nil &&
		!strings.EqualFold(config.Backend.Cookies.Domain, config.Frontend.Cookies.Domain) {
		// Logout can only clear cookies written for the same domain
		return fmt.Errorf("frontend: cookies.domain %q must match backend cookies.domain %q",
			config.Frontend.Cookies.Domain, config.Backend.Cookies.Domain)
	}
	return nil
}

func validateAbsoluteURL(field, value string) error {
	_, err := urlutil.Absolute(field, value)
	return err
}

func validateBackend(b *BackendConfig) error {
	if b.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if err := validateAbsoluteURL("baseURL", b.BaseURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("frontendURL", b.FrontendURL); err != nil {
		return err
	}

	g := b.Google
	if g.ClientSecretFile == "" {
		if g.ClientID == "" || g.ClientSecret == "" {
			return fmt.Errorf("google: clientSecretFile or clientId and clientSecret are required")
		}
	} else if g.ClientID != "" {
		return fmt.Errorf("google: clientSecretFile and clientId are mutually exclusive")
	}
	if err := validateAbsoluteURL("google.redirectUri", g.RedirectURI); err != nil {
		return err
	}
	for _, required := range DefaultScopes {
		if !slices.Contains(g.Scopes, required) {
			return fmt.Errorf("google.scopes must include %s", required)
		}
	}

	if b.Cookies.Domain == "" {
		return fmt.Errorf("cookies.domain is required")
	}
	if b.Cookies.TTL < 0 {
		return fmt.Errorf("cookies.ttl cannot be negative")
	}

	s := b.Sessions
	if s.PendingTTL < 0 || s.TTL < 0 || s.CleanupInterval < 0 {
		return fmt.Errorf("sessions durations cannot be negative")
	}
	if s.TTL < b.Cookies.TTL {
		log.LogWarn("Session ttl %s is shorter than cookie ttl %s", s.TTL, b.Cookies.TTL)
	}

	switch s.Storage {
	case StorageMemory:
	case StorageRedis:
		if s.RedisURL == "" {
			return fmt.Errorf("sessions.redisUrl is required for redis storage")
		}
	case StorageFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("sessions.gcpProject is required for firestore storage")
		}
	default:
		return fmt.Errorf("unknown sessions.storage %q", s.Storage)
	}

	if s.Storage != StorageMemory {
		if b.EncryptionKey == "" {
			return fmt.Errorf("encryptionKey is required when using %s storage", s.Storage)
		}
	}
	if b.EncryptionKey != "" && len(b.EncryptionKey) != 32 {
		return fmt.Errorf("encryptionKey must be exactly 32 bytes, got %d", len(b.EncryptionKey))
	}

	return nil
}

func validateFrontend(f *FrontendConfig) error {
	if f.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if err := validateAbsoluteURL("backendURL", f.BackendURL); err != nil {
		return err
	}
	if f.GoogleClientID == "" {
		return fmt.Errorf("googleClientId is required")
	}
	if f.Cookies.Domain == "" {
		return fmt.Errorf("cookies.domain is required")
	}
	if len(f.CSRFKey) < 16 {
		return fmt.Errorf("csrfKey must be at least 16 bytes")
	}
	if f.MaxEvents < 1 || f.MaxEvents > 250 {
		return fmt.Errorf("maxEvents must be between 1 and 250")
	}
	return nil
}
