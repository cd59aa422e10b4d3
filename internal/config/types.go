package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the session store backend
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StorageRedis     StorageKind = "redis"
	StorageFirestore StorageKind = "firestore"
)

// Defaults applied by Load when a field is left empty
const (
	DefaultCookieTTL           = 15 * time.Minute
	DefaultPendingTTL          = 10 * time.Minute
	DefaultCleanupInterval     = time.Minute
	DefaultRedisKeyPrefix      = "gsession:session:"
	DefaultFirestoreCollection = "gsession_sessions"
	DefaultCalendarID          = "primary"
	DefaultMaxEvents           = 10
)

// DefaultScopes is the scope set requested by the authorization URL
var DefaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/calendar.events.readonly",
}

// GoogleConfig describes the OAuth client registered with Google.
// Either ClientSecretFile or ClientID/ClientSecret must be provided.
type GoogleConfig struct {
	ClientSecretFile string   `json:"clientSecretFile,omitempty"`
	ClientID         string   `json:"clientId,omitempty"`
	ClientSecret     Secret   `json:"clientSecret,omitempty"`
	RedirectURI      string   `json:"redirectUri"`
	Scopes           []string `json:"scopes,omitempty"`
}

// CookieConfig controls the session cookies handed to the browser
type CookieConfig struct {
	Domain string        `json:"domain"`
	TTL    time.Duration `json:"ttl"`
}

// SessionStoreConfig configures where session records live
type SessionStoreConfig struct {
	Storage             StorageKind   `json:"storage"`
	PendingTTL          time.Duration `json:"pendingTtl"`
	TTL                 time.Duration `json:"ttl"`
	CleanupInterval     time.Duration `json:"cleanupInterval"`
	RedisURL            Secret        `json:"redisUrl,omitempty"`
	KeyPrefix           string        `json:"keyPrefix,omitempty"`
	GCPProject          string        `json:"gcpProject,omitempty"`
	FirestoreDatabase   string        `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string        `json:"firestoreCollection,omitempty"`
}

// BackendConfig is the configuration of authd
type BackendConfig struct {
	Addr           string             `json:"addr"`
	BaseURL        string             `json:"baseURL"`
	FrontendURL    string             `json:"frontendURL"`
	AllowedOrigins []string           `json:"allowedOrigins,omitempty"`
	AllowedDomains []string           `json:"allowedDomains,omitempty"`
	Google         GoogleConfig       `json:"google"`
	Cookies        CookieConfig       `json:"cookies"`
	Sessions       SessionStoreConfig `json:"sessions"`
	EncryptionKey  Secret             `json:"encryptionKey,omitempty"`
}

// FrontendConfig is the configuration of calendar-front
type FrontendConfig struct {
	Addr               string       `json:"addr"`
	BaseURL            string       `json:"baseURL"`
	BackendURL         string       `json:"backendURL"`
	GoogleClientID     string       `json:"googleClientId"`
	GoogleClientSecret Secret       `json:"googleClientSecret,omitempty"` // enables token refresh
	CalendarID         string       `json:"calendarId,omitempty"`
	MaxEvents          int          `json:"maxEvents,omitempty"`
	CSRFKey            Secret       `json:"csrfKey"`
	Cookies            CookieConfig `json:"cookies"`
}

// Config represents the config structure with resolved values
type Config struct {
	Backend  *BackendConfig  `json:"backend,omitempty"`
	Frontend *FrontendConfig `json:"frontend,omitempty"`
}
