package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for janitor.
type Config struct {
	// File discovery settings
	Scan ScanConfig `koanf:"scan" toml:"scan" json:"scan"`

	// Token cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache" json:"cache"`

	// Score-to-verdict policy
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds" json:"thresholds"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" json:"output"`
}

// ScanConfig controls which files make up the codebase.
type ScanConfig struct {
	Extensions  []string `koanf:"extensions" toml:"extensions" json:"extensions"`
	Ignore      []string `koanf:"ignore" toml:"ignore" json:"ignore"`
	Gitignore   bool     `koanf:"gitignore" toml:"gitignore" json:"gitignore"`
	MaxFileSize int64    `koanf:"max_file_size" toml:"max_file_size" json:"max_file_size"` // bytes, 0 = no limit
	Workers     int      `koanf:"workers" toml:"workers" json:"workers"`                   // 0 = 2x NumCPU
}

// CacheConfig controls the token cache.
type CacheConfig struct {
	Backend  string `koanf:"backend" toml:"backend" json:"backend"` // none, memory, disk, tiered
	Dir      string `koanf:"dir" toml:"dir" json:"dir"`
	Compress bool   `koanf:"compress" toml:"compress" json:"compress"`
}

// ThresholdConfig maps usage scores to verdicts.
type ThresholdConfig struct {
	Unused float64 `koanf:"unused" toml:"unused" json:"unused"` // score <= this is unused
	Weak   float64 `koanf:"weak" toml:"weak" json:"weak"`       // score < this is weakly used
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format" json:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color" json:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose" json:"verbose"`
}

// DefaultExtensions is the file allow-list: general-purpose code, the two
// templating formats (Blade lives under .php), structured data and markup.
var DefaultExtensions = []string{
	"php",
	"twig",
	"json",
	"xml",
	"yml",
	"yaml",
	"md",
	"js",
	"ts",
	"toml",
}

var validBackends = []string{"none", "memory", "disk", "tiered"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Extensions: append([]string(nil), DefaultExtensions...),
			Ignore: []string{
				"**/vendor/**",
				"**/node_modules/**",
				"**/.git/**",
				"**/.janitor/**",
				"storage/**",
				"bootstrap/cache/**",
				"public/build/**",
				"**/*.min.js",
			},
			Gitignore:   true,
			MaxFileSize: 0,
			Workers:     0,
		},
		Cache: CacheConfig{
			Backend:  "tiered",
			Dir:      ".janitor/cache",
			Compress: true,
		},
		Thresholds: ThresholdConfig{
			Unused: 0,
			Weak:   0.5,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// ConfigNames are the file names searched by LoadOrDefault, in order.
var ConfigNames = []string{
	"janitor.toml",
	"janitor.yaml",
	"janitor.yml",
	"janitor.json",
	".janitor.toml",
	".janitor.yaml",
	".janitor.yml",
	".janitor.json",
}

// Find returns the first config file in the current directory or .janitor/,
// or "" when there is none.
func Find() string {
	for _, dir := range []string{".", ".janitor"} {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads the config file returned by Find, or returns the
// defaults when there is none. A config file that exists but does not load is
// an error.
func LoadOrDefault() (*Config, error) {
	if path := Find(); path != "" {
		return Load(path)
	}
	return DefaultConfig(), nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Scan.Extensions) == 0 {
		errs = append(errs, errors.New("scan.extensions must not be empty"))
	}
	if c.Scan.MaxFileSize < 0 {
		errs = append(errs, errors.New("scan.max_file_size must not be negative"))
	}

	backend := strings.ToLower(c.Cache.Backend)
	valid := false
	for _, b := range validBackends {
		if backend == b {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("cache.backend %q must be one of %s", c.Cache.Backend, strings.Join(validBackends, ", ")))
	}
	if (backend == "disk" || backend == "tiered") && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir is required for disk caching"))
	}

	if c.Thresholds.Unused < 0 || c.Thresholds.Unused > 1 {
		errs = append(errs, fmt.Errorf("thresholds.unused %.2f must be within [0,1]", c.Thresholds.Unused))
	}
	if c.Thresholds.Weak < 0 || c.Thresholds.Weak > 1 {
		errs = append(errs, fmt.Errorf("thresholds.weak %.2f must be within [0,1]", c.Thresholds.Weak))
	}
	if c.Thresholds.Weak < c.Thresholds.Unused {
		errs = append(errs, errors.New("thresholds.weak must not be lower than thresholds.unused"))
	}

	return errors.Join(errs...)
}

// ExtensionPattern returns the allow-list as a file name regex source,
// e.g. `\.(php|twig|json)$`.
func (c *Config) ExtensionPattern() string {
	return ExtensionPattern(c.Scan.Extensions)
}

// ExtensionPattern builds the file name regex source for exts. Leading dots
// and blanks are ignored.
func ExtensionPattern(exts []string) string {
	quoted := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			quoted = append(quoted, regexp.QuoteMeta(ext))
		}
	}
	return `\.(` + strings.Join(quoted, "|") + `)$`
}
