package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hybris-tools/tsls/internal/inspection"
	"github.com/hybris-tools/tsls/internal/typesystem/items"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrNoWorkspace is returned when no workspace root is found above a directory
var ErrNoWorkspace = errors.New("not in a type-system workspace (no tsls.yml or *-items.xml found)")

// Config represents the tsls configuration
type Config struct {
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Log        LogConfig        `mapstructure:"log"`
	TypeSystem TypeSystemConfig `mapstructure:"typesystem"`
	Inspection InspectionConfig `mapstructure:"inspection"`

	// Root is the workspace directory the configuration was loaded for
	Root string `mapstructure:"-"`
}

// WorkspaceConfig selects the files making up a workspace
type WorkspaceConfig struct {
	Declarations []string `mapstructure:"declarations"`
	Beans        []string `mapstructure:"beans"`
	Queries      []string `mapstructure:"queries"`
	Ignore       []string `mapstructure:"ignore"`
}

// WatchConfig controls the file watcher
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// TypeSystemConfig holds editor settings for declaration files
type TypeSystemConfig struct {
	Folding FoldingConfig `mapstructure:"folding"`
}

// FoldingConfig selects which declaration sections fold
type FoldingConfig struct {
	Enabled                     bool `mapstructure:"enabled"`
	TablifyAtomics              bool `mapstructure:"tablify_atomics"`
	TablifyCollections          bool `mapstructure:"tablify_collections"`
	TablifyMaps                 bool `mapstructure:"tablify_maps"`
	TablifyRelations            bool `mapstructure:"tablify_relations"`
	TablifyItemAttributes       bool `mapstructure:"tablify_item_attributes"`
	TablifyItemIndexes          bool `mapstructure:"tablify_item_indexes"`
	TablifyItemCustomProperties bool `mapstructure:"tablify_item_custom_properties"`
}

// Folds reports whether regions of section are folded
func (f FoldingConfig) Folds(section items.Section) bool {
	if !f.Enabled {
		return false
	}
	switch section {
	case items.SectionAtomics:
		return f.TablifyAtomics
	case items.SectionCollections:
		return f.TablifyCollections
	case items.SectionMaps:
		return f.TablifyMaps
	case items.SectionRelations:
		return f.TablifyRelations
	case items.SectionItemAttributes:
		return f.TablifyItemAttributes
	case items.SectionItemIndexes:
		return f.TablifyItemIndexes
	case items.SectionItemCustomProperties:
		return f.TablifyItemCustomProperties
	default:
		return true
	}
}

// InspectionConfig overrides inspection severities by inspection id
type InspectionConfig struct {
	Severity map[string]string `mapstructure:"severity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace.declarations", []string{"*-items.xml", "items.xml"})
	v.SetDefault("workspace.beans", []string{"*-beans.xml", "beans.xml"})
	v.SetDefault("workspace.queries", []string{"*.fxs", "*.flexiblesearch"})
	v.SetDefault("workspace.ignore", []string{"build", "node_modules", ".git", "*.swp", "*~"})
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", "150ms")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("typesystem.folding.enabled", true)
	for _, key := range []string{
		"tablify_atomics",
		"tablify_collections",
		"tablify_maps",
		"tablify_relations",
		"tablify_item_attributes",
		"tablify_item_indexes",
		"tablify_item_custom_properties",
	} {
		v.SetDefault("typesystem.folding."+key, true)
	}
	v.SetDefault("inspection.severity", map[string]string{})
}

// Default returns the configuration used when no file is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v, "")
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper(root string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("tsls")
	v.SetConfigType("yaml")
	if root != "" {
		v.AddConfigPath(root)
	}

	v.SetEnvPrefix("TSLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads the configuration from tsls.yml or tsls.yaml in root
func Load(root string) (*Config, error) {
	v := newViper(root)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}
	return decode(v, root)
}

func decode(v *viper.Viper, root string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Root = root

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Severities returns the configured severity overrides keyed by the matching id in ids.
// Ids are compared case-insensitively because configuration keys are case-folded.
func (c *Config) Severities(ids []string) map[string]inspection.Severity {
	result := make(map[string]inspection.Severity)
	for key, name := range c.Inspection.Severity {
		severity, err := inspection.ParseSeverity(name)
		if err != nil {
			continue
		}
		for _, id := range ids {
			if strings.EqualFold(id, key) {
				result[id] = severity
			}
		}
	}
	return result
}

// IsDeclaration reports whether path names a type declaration file
func (c *Config) IsDeclaration(path string) bool {
	return matchAny(c.Workspace.Declarations, path)
}

// IsBeans reports whether path names a bean declaration file
func (c *Config) IsBeans(path string) bool {
	return matchAny(c.Workspace.Beans, path)
}

// IsQuery reports whether path names a query file
func (c *Config) IsQuery(path string) bool {
	return matchAny(c.Workspace.Queries, path)
}

func matchAny(patterns []string, path string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// NewLogger builds the logger described by the log section. Output always goes to stderr.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// FindWorkspaceRoot walks up from start looking for tsls.yml, tsls.yaml or a directory
// holding a *-items.xml file
func FindWorkspaceRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{"tsls.yml", "tsls.yaml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}
		if matches, _ := filepath.Glob(filepath.Join(dir, "*-items.xml")); len(matches) > 0 {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s: %w", start, ErrNoWorkspace)
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: watch.debounce must be positive, got: %s", ErrInvalidConfig, cfg.Watch.Debounce)
	}

	for key, name := range cfg.Inspection.Severity {
		if _, err := inspection.ParseSeverity(name); err != nil {
			return fmt.Errorf("%w: inspection.severity.%s: %v", ErrInvalidConfig, key, err)
		}
	}

	globs := map[string][]string{
		"workspace.declarations": cfg.Workspace.Declarations,
		"workspace.beans":        cfg.Workspace.Beans,
		"workspace.queries":      cfg.Workspace.Queries,
		"workspace.ignore":       cfg.Workspace.Ignore,
	}
	for key, patterns := range globs {
		for _, pattern := range patterns {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return fmt.Errorf("%w: %s: bad pattern %q", ErrInvalidConfig, key, pattern)
			}
		}
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return nil
}

func parseLevel(name string) (zapcore.Level, error) {
	var level zapcore.Level
	err := level.UnmarshalText([]byte(name))
	return level, err
}
