package config

import "strings"

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Env prefix used by the env loader

var DefaultNamePrefix = "ADHUB_"

// Fixed paths

const CallbackPath = "/api/oauth/callback"

// Fallback encryption secret, only used when none is configured. Running with it is a misconfiguration.

const DefaultEncryptionSecret = "adhub-default-encryption-secret-change-me"

// Main app config

type Config struct {
	AppURL       string                            `description:"The base URL where the app is hosted, callbacks are derived from it." yaml:"appUrl"`
	DatabasePath string                            `description:"The path to the database file." yaml:"databasePath"`
	Server       ServerConfig                      `description:"Server configuration." yaml:"server"`
	Encryption   EncryptionConfig                  `description:"Credential encryption configuration." yaml:"encryption"`
	Session      SessionConfig                     `description:"Session lookup configuration." yaml:"session"`
	Fetch        FetchConfig                       `description:"Platform API fetch configuration." yaml:"fetch"`
	State        StateConfig                       `description:"OAuth state configuration." yaml:"state"`
	Platforms    map[string]PlatformOverrideConfig `description:"Per platform endpoint overrides." yaml:"platforms"`
	Log          LogConfig                         `description:"Logging configuration." yaml:"log"`
	Experimental ExperimentalConfig                `description:"Experimental features, use with caution." yaml:"experimental"`
}

type ServerConfig struct {
	Port       int    `description:"The port on which the server listens." yaml:"port"`
	Address    string `description:"The address on which the server listens." yaml:"address"`
	SocketPath string `description:"The path to the Unix socket." yaml:"socketPath"`
}

type EncryptionConfig struct {
	Secret        string `description:"Secret used to encrypt stored credentials." yaml:"secret"`
	SecretFile    string `description:"Path to a file containing the encryption secret." yaml:"secretFile"`
	RequireSecret bool   `description:"Refuse to start without an explicit encryption secret." yaml:"requireSecret"`
}

type SessionConfig struct {
	UserHeader     string `description:"Header set by the authenticating proxy carrying the user id." yaml:"userHeader"`
	TrustedProxies string `description:"Comma-separated list of trusted proxy addresses." yaml:"trustedProxies"`
}

type FetchConfig struct {
	Timeout    int     `description:"Timeout in seconds for a single platform call." yaml:"timeout"`
	MaxRetries int     `description:"Maximum attempts for a platform data fetch." yaml:"maxRetries"`
	RateLimit  float64 `description:"Requests per second allowed against a single platform." yaml:"rateLimit"`
	RateBurst  int     `description:"Burst size for the per platform rate limiter." yaml:"rateBurst"`
}

type StateConfig struct {
	TTL      int    `description:"Lifetime in seconds of an OAuth state token." yaml:"ttl"`
	RedisURL string `description:"Redis URL for the OAuth state store, the database is used when empty." yaml:"redisUrl"`
}

type PlatformOverrideConfig struct {
	APIBaseURL string `description:"Base URL for the platform data API." yaml:"apiBaseUrl"`
	AuthURL    string `description:"Authorization endpoint." yaml:"authUrl"`
	TokenURL   string `description:"Token endpoint." yaml:"tokenUrl"`
	RevokeURL  string `description:"Token revocation endpoint." yaml:"revokeUrl"`
}

type LogConfig struct {
	Level   string     `description:"Log level (trace, debug, info, warn, error)." yaml:"level"`
	Json    bool       `description:"Enable JSON formatted logs." yaml:"json"`
	Streams LogStreams `description:"Configuration for specific log streams." yaml:"streams"`
}

type LogStreams struct {
	HTTP  LogStreamConfig `description:"HTTP request logging." yaml:"http"`
	App   LogStreamConfig `description:"Application logging." yaml:"app"`
	Audit LogStreamConfig `description:"Audit logging." yaml:"audit"`
}

type LogStreamConfig struct {
	Enabled bool   `description:"Enable this log stream." yaml:"enabled"`
	Level   string `description:"Log level for this stream, uses the global level when empty." yaml:"level"`
}

type ExperimentalConfig struct {
	ConfigFile string `description:"Path to a config file." yaml:"configFile"`
}

func NewDefaultConfiguration() *Config {
	return &Config{
		AppURL:       "",
		DatabasePath: "./adhub.db",
		Server: ServerConfig{
			Port:    3000,
			Address: "0.0.0.0",
		},
		Session: SessionConfig{
			UserHeader: "Remote-User",
		},
		Fetch: FetchConfig{
			Timeout:    15,
			MaxRetries: 3,
			RateLimit:  10,
			RateBurst:  5,
		},
		State: StateConfig{
			TTL: 600,
		},
		Platforms: map[string]PlatformOverrideConfig{},
		Log: LogConfig{
			Level: "info",
			Json:  false,
			Streams: LogStreams{
				HTTP:  LogStreamConfig{Enabled: true},
				App:   LogStreamConfig{Enabled: true},
				Audit: LogStreamConfig{Enabled: false},
			},
		},
	}
}

// CallbackURL is the single redirect URI registered with every platform.
func (c Config) CallbackURL() string {
	return strings.TrimSuffix(c.AppURL, "/") + CallbackPath
}

// Redirect queries

type ConnectResultQuery struct {
	Connected string `url:"connected,omitempty"`
	Platform  string `url:"platform,omitempty"`
	Error     string `url:"error,omitempty"`
}

// User/session related stuff

type UserContext struct {
	UserID     string
	IsLoggedIn bool
}
