package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	ddns "github.com/Travis-Britz/gandi-ddns"
)

// EnvPath names the environment variable consulted for the config file location.
const EnvPath = "GANDI_DDNS_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath names a config file.
const DefaultPath = "config.yaml"

// LiveDNS rejects TTLs outside of this range.
const (
	MinTTL = 300
	MaxTTL = 2592000
)

// Config is the static configuration of a run.
type Config struct {
	APIEndpoint string `yaml:"api_endpoint"`
	APIKey      string `yaml:"api_key"`
	APIKeyFile  string `yaml:"api_key_file"`

	TTL           int           `yaml:"ttl"` // seconds
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
	BackoffFactor float64       `yaml:"backoff_factor"` // seconds
	RetryStatuses []int         `yaml:"retry_statuses"`

	IfConfig4 string `yaml:"ifconfig4"`
	IfConfig6 string `yaml:"ifconfig6"`
	Interface string `yaml:"interface"`

	Domains Domains `yaml:"domains"`
}

// Default returns a Config with every optional field set to its default.
func Default() Config {
	return Config{
		APIEndpoint:   ddns.DefaultEndpoint,
		TTL:           int(ddns.DefaultTTL / time.Second),
		Timeout:       10 * time.Second,
		Retries:       3,
		BackoffFactor: 0.3,
		RetryStatuses: append([]int(nil), ddns.DefaultRetryStatuses...),
	}
}

// Path returns flagValue if set, else the value of EnvPath, else DefaultPath.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and validates the YAML config file at path.
// ${VAR} references in the endpoint, api key and key file path are expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.APIEndpoint = os.ExpandEnv(cfg.APIEndpoint)
	cfg.APIKey = os.ExpandEnv(cfg.APIKey)
	cfg.APIKeyFile = os.ExpandEnv(cfg.APIKeyFile)
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = ddns.DefaultEndpoint
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Domains) == 0 {
		errs = append(errs, errors.New("no domains configured"))
	}
	if c.APIKey == "" && c.APIKeyFile == "" {
		errs = append(errs, errors.New("one of api_key or api_key_file is required"))
	}
	if c.TTL < MinTTL || c.TTL > MaxTTL {
		errs = append(errs, fmt.Errorf("ttl %d out of range [%d, %d]", c.TTL, MinTTL, MaxTTL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive; got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries cannot be negative; got %d", c.Retries))
	}
	if c.BackoffFactor < 0 {
		errs = append(errs, fmt.Errorf("backoff_factor cannot be negative; got %g", c.BackoffFactor))
	}
	for _, s := range c.RetryStatuses {
		if s < 100 || s > 599 {
			errs = append(errs, fmt.Errorf("retry_statuses: %d is not an HTTP status code", s))
		}
	}
	return errors.Join(errs...)
}

// Backoff returns BackoffFactor as a duration.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.BackoffFactor * float64(time.Second))
}

// TTLDuration returns TTL as a duration.
func (c *Config) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// Domains is the ordered list of managed domains.
// In YAML it is a mapping of domain name to a list of subdomain labels;
// the mapping's order is kept.
type Domains []ddns.Domain

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Domains) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: domains must be a mapping of domain name to subdomains", value.Line)
	}
	seen := make(map[string]bool)
	var out Domains
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		var name string
		if err := k.Decode(&name); err != nil {
			return fmt.Errorf("line %d: %w", k.Line, err)
		}
		if name == "" {
			return fmt.Errorf("line %d: domain name cannot be empty", k.Line)
		}
		if seen[name] {
			return fmt.Errorf("line %d: domain %s listed twice", k.Line, name)
		}
		seen[name] = true

		var subs []string
		if err := v.Decode(&subs); err != nil {
			return fmt.Errorf("line %d: subdomains of %s: %w", v.Line, name, err)
		}
		if len(subs) == 0 {
			return fmt.Errorf("line %d: domain %s has no subdomains; use \"@\" for the bare domain", v.Line, name)
		}
		out = append(out, ddns.Domain{Name: name, Subdomains: subs})
	}
	*d = out
	return nil
}
