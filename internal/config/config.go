package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret signs sessions when JWT_SECRET is unset. It is refused
// once Discord login is configured.
const DefaultJWTSecret = "dev-only-change-me"

type Config struct {
	// Node
	Network     string
	RPCURL      string
	ChainID     int64
	ExplorerURL string

	// Wallet
	KeystoreDir       string
	WalletAddress     string
	WalletPassphrase  string
	WalletAutoConnect bool
	WatchInterval     time.Duration

	// Contract loaded at startup
	ContractAddress string

	// Database (optional, enables transaction history)
	DatabaseURL string

	// Discord Bot (optional)
	DiscordToken     string
	DiscordGuildID   string
	DiscordChannelID string

	// Discord OAuth2 (optional, guards write endpoints)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Web Server
	WebBind      string
	WebUIBaseURL string
	AlertTTL     time.Duration
	RateRPS      float64
	RateBurst    int

	// Session
	JWTSecret string

	// Logging
	LogLevel  string
	LogFormat string
}

// Options are the command-line overrides.
type Options struct {
	EnvFile      string
	NetworksFile string
	Network      string
}

// BindFlags registers the shared flags on fs.
func BindFlags(fs *pflag.FlagSet) *Options {
	opts := &Options{}
	fs.StringVar(&opts.EnvFile, "env-file", "", "load environment variables from this file instead of .env")
	fs.StringVar(&opts.NetworksFile, "networks", "", "network presets file (default $NETWORKS_FILE or networks.yaml)")
	fs.StringVar(&opts.Network, "network", "", "network preset to use (default $NETWORK)")
	return opts
}

// Network is one preset from the networks file.
type Network struct {
	RPCURL   string `yaml:"rpc_url"`
	ChainID  int64  `yaml:"chain_id"`
	Explorer string `yaml:"explorer"`
}

type networksFile struct {
	Networks map[string]Network `yaml:"networks"`
}

func Load() (*Config, error) {
	return LoadWithOptions(Options{})
}

func LoadWithOptions(opts Options) (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Network:             firstNonEmpty(opts.Network, os.Getenv("NETWORK")),
		RPCURL:              os.Getenv("RPC_URL"),
		KeystoreDir:         os.Getenv("KEYSTORE_DIR"),
		WalletAddress:       os.Getenv("WALLET_ADDRESS"),
		WalletPassphrase:    os.Getenv("WALLET_PASSPHRASE"),
		ContractAddress:     os.Getenv("CONTRACT_ADDRESS"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID:      os.Getenv("DISCORD_GUILD_ID"),
		DiscordChannelID:    os.Getenv("DISCORD_CHANNEL_ID"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		WebBind:             getEnvDefault("WEB_BIND", "127.0.0.1:3000"),
		JWTSecret:           getEnvDefault("JWT_SECRET", DefaultJWTSecret),
		LogLevel:            getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvDefault("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.WalletAutoConnect, err = getEnvBool("WALLET_AUTO_CONNECT", false); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = getEnvDuration("WATCH_INTERVAL", 4*time.Second); err != nil {
		return nil, err
	}
	if cfg.AlertTTL, err = getEnvDuration("ALERT_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateRPS, err = getEnvFloat("API_RATE_RPS", 2); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getEnvInt("API_RATE_BURST", 5); err != nil {
		return nil, err
	}

	networksPath := firstNonEmpty(opts.NetworksFile, os.Getenv("NETWORKS_FILE"))
	if err := cfg.applyNetwork(networksPath); err != nil {
		return nil, err
	}

	// Extract base URL from redirect URI
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	if cfg.KeystoreDir != "" && cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL is required when KEYSTORE_DIR is set")
	}
	if cfg.DiscordClientID != "" && cfg.DiscordClientSecret == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_SECRET is required when DISCORD_CLIENT_ID is set")
	}
	if cfg.RateRPS <= 0 || cfg.RateBurst <= 0 {
		return nil, fmt.Errorf("API_RATE_RPS and API_RATE_BURST must be positive")
	}
	// The write endpoints sign with the server's wallet.
	if !cfg.OAuthEnabled() && !IsLoopback(cfg.WebBind) {
		return nil, fmt.Errorf("WEB_BIND %s accepts remote connections; configure Discord login (DISCORD_CLIENT_ID, DISCORD_CLIENT_SECRET) or bind to a loopback address", cfg.WebBind)
	}
	if cfg.OAuthEnabled() && cfg.JWTSecret == DefaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET is required when Discord login is configured")
	}

	return cfg, nil
}

// applyNetwork fills node settings from the selected preset. Explicit
// environment values win. A missing default file is not an error.
func (c *Config) applyNetwork(path string) error {
	explicit := path != ""
	if !explicit {
		path = "networks.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			if c.Network != "" {
				return fmt.Errorf("network %q selected but %s does not exist", c.Network, path)
			}
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var file networksFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if c.Network == "" {
		return nil
	}
	preset, ok := file.Networks[c.Network]
	if !ok {
		return fmt.Errorf("network %q not found in %s", c.Network, path)
	}
	if c.RPCURL == "" {
		c.RPCURL = preset.RPCURL
	}
	c.ChainID = preset.ChainID
	c.ExplorerURL = strings.TrimRight(preset.Explorer, "/")
	return nil
}

// OAuthEnabled reports whether Discord login guards the write endpoints.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != "" && c.DiscordClientSecret != ""
}

// TxURL links a transaction hash on the configured explorer, or "".
func (c *Config) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + hash
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// IsLoopback reports whether a host:port bind address only accepts local
// connections. An empty host listens on every interface.
func IsLoopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
