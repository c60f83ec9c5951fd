package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devops-bizzibees/activepieces/errors"
)

// Config is the flow validator service configuration
type Config struct {
	NATS       NATSConfig       `json:"nats"`
	Buckets    BucketsConfig    `json:"buckets"`
	Resources  ResourcesConfig  `json:"resources"`
	Components ComponentsConfig `json:"components"`
	HTTP       HTTPConfig       `json:"http"`
	Metrics    MetricsConfig    `json:"metrics"`
	Log        LogConfig        `json:"log"`
}

// NATSConfig contains NATS connection configuration
type NATSConfig struct {
	URLs          []string      `json:"urls"`
	Timeout       time.Duration `json:"timeout"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// BucketsConfig names the JetStream buckets the stores open
type BucketsConfig struct {
	Flows     string `json:"flows"`
	Versions  string `json:"versions"`
	Resources string `json:"resources"`
	Artifacts string `json:"artifacts"`
}

// ResourcesConfig bounds the resource hierarchy walk
type ResourcesConfig struct {
	MaxDepth int `json:"max_depth"`
}

// ComponentsConfig selects the component schemas available to steps.
// Catalog is an optional YAML file registered after the built-ins.
type ComponentsConfig struct {
	Builtins bool   `json:"builtins"`
	Catalog  string `json:"catalog,omitempty"`
}

// HTTPConfig configures the validation API
type HTTPConfig struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// LogConfig sets the default log level and format. Command line flags win.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.NATS.URLs = append([]string(nil), c.NATS.URLs...)
	return &clone
}

// Validate checks the configuration for values the service cannot start with
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return invalid("at least one NATS URL is required")
	}
	for _, u := range c.NATS.URLs {
		if !strings.HasPrefix(u, "nats://") && !strings.HasPrefix(u, "tls://") {
			return invalid("NATS URL %q must use nats:// or tls://", u)
		}
	}
	if c.NATS.Timeout <= 0 {
		return invalid("nats.timeout must be positive")
	}
	if c.NATS.Token != "" && c.NATS.Username != "" {
		return invalid("nats.token and nats.username are mutually exclusive")
	}
	if c.NATS.Username != "" && c.NATS.Password == "" {
		return invalid("nats.password is required with nats.username")
	}

	buckets := map[string]string{
		"flows":     c.Buckets.Flows,
		"versions":  c.Buckets.Versions,
		"resources": c.Buckets.Resources,
		"artifacts": c.Buckets.Artifacts,
	}
	for field, name := range buckets {
		if !isValidBucketName(name) {
			return invalid("buckets.%s %q is not a valid bucket name", field, name)
		}
	}

	if c.Resources.MaxDepth < 1 {
		return invalid("resources.max_depth must be at least 1")
	}
	if !c.Components.Builtins && c.Components.Catalog == "" {
		return invalid("no component schemas: enable builtins or set a catalog")
	}

	if err := validatePort("http.port", c.HTTP.Port); err != nil {
		return err
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return invalid("http.max_upload_bytes must be positive")
	}
	if c.Metrics.Enabled {
		if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
			return err
		}
		if c.Metrics.Port == c.HTTP.Port {
			return invalid("metrics.port must differ from http.port")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return invalid("metrics.path must start with /")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf(format, args...), "config", "Validate", "check configuration")
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return invalid("%s %d out of range", field, port)
	}
	return nil
}

// isValidBucketName matches the JetStream bucket name rules
func isValidBucketName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// String renders the configuration as JSON with credentials redacted
func (c *Config) String() string {
	redacted := c.Clone()
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: "FLOWVALIDATOR",
		getenv:    os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges the defaults, every layer and the environment
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRawJSON(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "load layer "+path)
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "merge layer "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "apply environment")
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Defaults returns the configuration used when no layer sets a value
func Defaults() *Config {
	return &Config{
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Timeout:       5 * time.Second,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Buckets: BucketsConfig{
			Flows:     "flows",
			Versions:  "flow_versions",
			Resources: "resources",
			Artifacts: "artifacts",
		},
		Resources: ResourcesConfig{
			MaxDepth: 16,
		},
		Components: ComponentsConfig{
			Builtins: true,
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap overrides only the fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	var merged Config
	decoder := json.NewDecoder(strings.NewReader(string(mergedJSON)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// durationFields lists the section.field paths holding durations
var durationFields = [][2]string{
	{"nats", "timeout"},
	{"nats", "reconnect_wait"},
	{"http", "read_timeout"},
	{"http", "shutdown_timeout"},
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for _, f := range durationFields {
		section, ok := data[f[0]].(map[string]any)
		if !ok {
			continue
		}
		s, ok := section[f[1]].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", f[0], f[1], err)
		}
		section[f[1]] = d.Nanoseconds()
	}
	return nil
}

// applyEnvOverrides applies PREFIX_SECTION_FIELD environment overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"NATS_USERNAME":      &cfg.NATS.Username,
		"NATS_PASSWORD":      &cfg.NATS.Password,
		"NATS_TOKEN":         &cfg.NATS.Token,
		"COMPONENTS_CATALOG": &cfg.Components.Catalog,
		"BUCKETS_FLOWS":      &cfg.Buckets.Flows,
		"BUCKETS_VERSIONS":   &cfg.Buckets.Versions,
		"BUCKETS_RESOURCES":  &cfg.Buckets.Resources,
		"BUCKETS_ARTIFACTS":  &cfg.Buckets.Artifacts,
		"LOG_LEVEL":          &cfg.Log.Level,
		"LOG_FORMAT":         &cfg.Log.Format,
		"METRICS_PATH":       &cfg.Metrics.Path,
	}
	ints := map[string]*int{
		"HTTP_PORT":           &cfg.HTTP.Port,
		"METRICS_PORT":        &cfg.Metrics.Port,
		"RESOURCES_MAX_DEPTH": &cfg.Resources.MaxDepth,
	}

	for suffix, target := range strs {
		val, err := l.env(suffix)
		if err != nil {
			return err
		}
		if val != "" {
			*target = val
		}
	}

	for suffix, target := range ints {
		val, err := l.env(suffix)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", l.envPrefix, suffix, err)
		}
		*target = n
	}

	val, err := l.env("NATS_URLS")
	if err != nil {
		return err
	}
	if val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}

	val, err = l.env("METRICS_ENABLED")
	if err != nil {
		return err
	}
	if val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s_METRICS_ENABLED: %w", l.envPrefix, err)
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

func (l *Loader) env(suffix string) (string, error) {
	key := l.envPrefix + "_" + suffix
	val := l.getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return "", err
	}
	return val, nil
}
