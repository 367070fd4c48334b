package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/beryllium-dev/beryllium/internal/errors"
)

const (
	// ConfigFileName is the name of the TOML configuration file.
	ConfigFileName = "beryllium.toml"

	// JSONConfigFileName is the JSON alternative, used when no TOML file exists.
	JSONConfigFileName = "beryllium.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultSessionTTL is the sliding session lifetime.
	DefaultSessionTTL = time.Hour

	// DefaultSweepInterval is the delay between expired-session sweeps.
	DefaultSweepInterval = time.Minute

	// MinSecretLength is the shortest accepted cookie signing secret.
	MinSecretLength = 32

	redacted = "[REDACTED]"
)

// Environment variables applied over file values.
const (
	EnvAddr     = "BERYLLIUM_ADDR"
	EnvSecret   = "BERYLLIUM_SECRET"
	EnvLogLevel = "BERYLLIUM_LOG_LEVEL"
)

// Duration is a time.Duration written as a Go duration string ("30s", "1h")
// in both TOML and JSON.
type Duration time.Duration

var durationType = reflect.TypeOf(Duration(0))

// DurationError reports a setting that is not a Go duration string.
type DurationError struct {
	Value string
	Err   error
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("%q is not a duration: %v", e.Value, e.Err)
}

func (e *DurationError) Unwrap() error {
	return e.Err
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return &DurationError{Value: string(text), Err: err}
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete beryllium configuration.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `toml:"server" json:"server"`

	// Session contains session lifetime and cookie settings.
	Session SessionConfig `toml:"session" json:"session"`

	// Log contains logging settings.
	Log LogConfig `toml:"log" json:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`

	configPath string
	unknown    []string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr" json:"addr"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout Duration `toml:"read_header_timeout" json:"read_header_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `toml:"shutdown_timeout" json:"shutdown_timeout"`

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are honored.
	TrustedProxies []string `toml:"trusted_proxies" json:"trusted_proxies"`
}

// SessionConfig contains session settings.
type SessionConfig struct {
	// TTL is the sliding lifetime applied on create and on every request.
	TTL Duration `toml:"ttl" json:"ttl"`

	// SweepInterval is the delay between expired-session sweeps.
	SweepInterval Duration `toml:"sweep_interval" json:"sweep_interval"`

	// Secret signs session cookies.
	Secret string `toml:"secret" json:"secret"`

	// CookieName is the session cookie name.
	CookieName string `toml:"cookie_name" json:"cookie_name"`

	// CookiePath is the session cookie path.
	CookiePath string `toml:"cookie_path" json:"cookie_path"`

	// CookieDomain is the session cookie domain. Empty means host-only.
	CookieDomain string `toml:"cookie_domain" json:"cookie_domain"`

	// SecureCookies forces the Secure cookie flag.
	SecureCookies bool `toml:"secure_cookies" json:"secure_cookies"`

	// SameSite is "lax", "strict" or "none".
	SameSite string `toml:"same_site" json:"same_site"`

	// KeySuffixLength is the number of random letters in each session key.
	KeySuffixLength int `toml:"key_suffix_length" json:"key_suffix_length"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	Enabled bool `toml:"enabled" json:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `toml:"namespace" json:"namespace"`

	// Path is the metrics endpoint path.
	Path string `toml:"path" json:"path"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(15 * time.Second),
		},
		Session: SessionConfig{
			TTL:             Duration(DefaultSessionTTL),
			SweepInterval:   Duration(DefaultSweepInterval),
			CookieName:      "beryllium_session",
			CookiePath:      "/",
			SameSite:        "lax",
			KeySuffixLength: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "beryllium",
			Path:      "/metrics",
		},
	}
}

// Load reads configuration from dir. It looks for beryllium.toml, then
// beryllium.json, and falls back to defaults when neither exists.
// Environment overrides are applied last.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, JSONConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	cfg := New()
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// LoadFile reads configuration from path. The format follows the extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E100").
			WithDetail("Could not read " + path + ".").
			Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = cfg.decodeTOML(path, data)
	case ".json":
		err = cfg.decodeJSON(path, data)
	default:
		err = errors.New("E107").WithDetail("Unsupported config file " + path + "; use .toml or .json.")
	}
	if err != nil {
		return nil, err
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

const durationHint = `Write durations as strings, e.g. ttl = "1h"`

func (c *Config) decodeTOML(path string, data []byte) error {
	meta, err := toml.Decode(string(data), c)
	if err != nil {
		e := errors.New("E101").Wrap(err)
		var perr toml.ParseError
		if stderrors.As(err, &perr) {
			if durationSetting(data, perr) {
				e = errors.New("E102").Wrap(err).WithSuggestion(durationHint)
			}
			e.WithLocation(path, perr.Position.Line, perr.Position.Col)
		}
		return e
	}
	for _, key := range meta.Undecoded() {
		c.unknown = append(c.unknown, key.String())
	}
	return nil
}

func (c *Config) decodeJSON(path string, data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		var derr *DurationError
		if stderrors.As(err, &derr) {
			return errors.New("E102").Wrap(err).WithSuggestion(`Write durations as strings, e.g. "ttl": "1h"`)
		}
		var terr *json.UnmarshalTypeError
		if stderrors.As(err, &terr) && terr.Type == durationType {
			return errors.New("E102").
				Wrap(err).
				WithLocation(path, lineAt(data, terr.Offset), 0).
				WithSuggestion(`Write durations as strings, e.g. "ttl": "1h"`)
		}
		e := errors.New("E101").Wrap(err).WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
		var serr *json.SyntaxError
		if stderrors.As(err, &serr) {
			e.WithLocation(path, lineAt(data, serr.Offset), 0)
		}
		return e
	}
	return nil
}

// durationSetting reports whether perr points at the line assigning a
// Duration field. The TOML decoder does not unwrap UnmarshalText errors,
// so the failing key stands in for a DurationError.
func durationSetting(data []byte, perr toml.ParseError) bool {
	if !isDurationKey(perr.LastKey) {
		return false
	}
	lines := strings.Split(string(data), "\n")
	if perr.Position.Line < 1 || perr.Position.Line > len(lines) {
		return false
	}
	name := perr.LastKey[strings.LastIndex(perr.LastKey, ".")+1:]
	assigned, _, _ := strings.Cut(lines[perr.Position.Line-1], "=")
	return strings.TrimSpace(assigned) == name
}

// isDurationKey reports whether the dotted TOML key names a Duration field
// of Config.
func isDurationKey(key string) bool {
	if key == "" {
		return false
	}
	t := reflect.TypeOf(Config{})
	for _, name := range strings.Split(key, ".") {
		if t.Kind() != reflect.Struct {
			return false
		}
		f, ok := fieldByTag(t, name)
		if !ok {
			return false
		}
		t = f.Type
	}
	return t == durationType
}

func fieldByTag(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag, _, _ := strings.Cut(f.Tag.Get("toml"), ","); tag == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

// lineAt returns the 1-based line containing byte offset.
func lineAt(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return strings.Count(string(data[:offset]), "\n") + 1
}

// applyDefaults fills in zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := New()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = d.Server.ReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = d.Session.TTL
	}
	if c.Session.SweepInterval == 0 {
		c.Session.SweepInterval = d.Session.SweepInterval
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = d.Session.CookieName
	}
	if c.Session.CookiePath == "" {
		c.Session.CookiePath = d.Session.CookiePath
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = d.Session.SameSite
	}
	if c.Session.KeySuffixLength == 0 {
		c.Session.KeySuffixLength = d.Session.KeySuffixLength
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

// ApplyEnvOverrides replaces file values with any BERYLLIUM_* variables set.
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv(EnvAddr); addr != "" {
		c.Server.Addr = addr
	}
	if secret := os.Getenv(EnvSecret); secret != "" {
		c.Session.Secret = secret
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return errors.New("E108").
			WithDetail(fmt.Sprintf("Server address %q is not host:port.", c.Server.Addr)).
			Wrap(err)
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			return errors.New("E106").
				WithDetail(fmt.Sprintf("Trusted proxy %q is neither an IP nor a CIDR.", p))
		}
	}
	if c.Session.TTL <= 0 {
		return errors.New("E102").WithDetail("session.ttl must be positive.")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("E104")
	}
	if _, ok := c.Session.SameSiteMode(); !ok {
		return errors.New("E109").
			WithDetail(fmt.Sprintf("same_site %q is not lax, strict or none.", c.Session.SameSite))
	}
	if strings.EqualFold(c.Session.SameSite, "none") && !c.Session.SecureCookies {
		return errors.New("E109").
			WithDetail("Browsers reject SameSite=None cookies without the Secure flag.").
			WithSuggestion("Set secure_cookies = true")
	}
	if len(c.Session.Secret) < MinSecretLength {
		return errors.New("E103").
			WithSuggestion(fmt.Sprintf("Set session.secret or %s to at least %d random bytes", EnvSecret, MinSecretLength))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return errors.New("E105").Wrap(err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return errors.New("E105").WithDetail(fmt.Sprintf("Log format %q is not text or json.", f))
	}
	return nil
}

func validProxy(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

// SameSiteMode maps SameSite to its net/http value.
func (s SessionConfig) SameSiteMode() (http.SameSite, bool) {
	switch strings.ToLower(s.SameSite) {
	case "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	}
	return 0, false
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.configPath
}

// UnknownKeys returns TOML keys that matched no field.
func (c *Config) UnknownKeys() []string {
	return c.unknown
}

// Redacted returns a copy with the secret hidden.
func (c *Config) Redacted() *Config {
	safe := *c
	safe.Server.TrustedProxies = append([]string(nil), c.Server.TrustedProxies...)
	if safe.Session.Secret != "" {
		safe.Session.Secret = redacted
	}
	return &safe
}

// WriteTOML encodes the configuration as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	fmt.Fprintln(w, "# beryllium configuration")
	if c.configPath != "" {
		fmt.Fprintf(w, "# loaded from %s\n", c.configPath)
	}
	fmt.Fprintln(w)
	return toml.NewEncoder(w).Encode(c)
}

// String returns the redacted configuration as JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
