package cmd

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	backendMemory  = "memory"
	backendBadger  = "badger"
	backendPebble  = "pebble"
	backendLocalFS = "localfs"

	compressionNone = "none"
	compressionZstd = "zstd"
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	Backend     string       `json:"backend" yaml:"backend" mapstructure:"backend"`             // memory, badger, pebble or localfs
	Path        string       `json:"path" yaml:"path" mapstructure:"path"`                      // data directory of durable backends
	Database    string       `json:"database" yaml:"database" mapstructure:"database"`          // database name, which namespaces all keys
	Project     string       `json:"project" yaml:"project" mapstructure:"project"`             // default project
	LogLevel    string       `json:"logLevel" yaml:"log-level" mapstructure:"log-level"`        // info, debug or none
	Compression string       `json:"compression" yaml:"compression" mapstructure:"compression"` // none or zstd
	CacheSize   int          `json:"cacheSize" yaml:"cache-size" mapstructure:"cache-size"`     // number of cached objects
	Badger      BadgerConfig `json:"badger" yaml:"badger" mapstructure:"badger"`
}

// BadgerConfig holds settings specific to the badger backend
type BadgerConfig struct {
	MemTableSize string `json:"memtableSize" yaml:"memtable-size" mapstructure:"memtable-size"` // human-readable size, e.g. 64MB
}

func setConfigDefaults() {
	viper.SetDefault("backend", backendLocalFS)
	viper.SetDefault("path", ".graphstore")
	viper.SetDefault("database", "graphstore")
	viper.SetDefault("log-level", dlogger.LogLevelNone)
	viper.SetDefault("compression", compressionNone)
	viper.SetDefault("cache-size", 1024)
	viper.SetDefault("badger.memtable-size", "64MB")
}

func newConfig() (*CLIConfig, error) {
	var cfg CLIConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *CLIConfig) validate() error {
	switch c.Backend {
	case backendMemory, backendBadger, backendPebble, backendLocalFS:
	default:
		return fmt.Errorf("unsupported backend %q: expect one of %s, %s, %s or %s",
			c.Backend, backendMemory, backendBadger, backendPebble, backendLocalFS)
	}
	switch c.Compression {
	case "", compressionNone, compressionZstd:
	default:
		return fmt.Errorf("unsupported compression %q: expect %s or %s", c.Compression, compressionNone, compressionZstd)
	}
	switch c.LogLevel {
	case "", dlogger.LogLevelNone, dlogger.LogLevelInfo, dlogger.LogLevelDebug:
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative: %d", c.CacheSize)
	}
	if _, err := c.memTableSize(); err != nil {
		return err
	}
	return nil
}

func (c *CLIConfig) memTableSize() (int64, error) {
	if c.Badger.MemTableSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(c.Badger.MemTableSize)
	if err != nil {
		return 0, fmt.Errorf("badger memtable size: %w", err)
	}
	return size, nil
}

func addConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("backend", backendLocalFS, "The storage backend: memory, badger, pebble or localfs")
	flags.String("path", ".graphstore", "The data directory of durable backends")
	flags.String("database", "graphstore", "The name of the database")
	flags.StringP("project", "p", "", "The project to work with")
	flags.String("log-level", dlogger.LogLevelNone, "The logging level: info, debug or none")
	flags.String("compression", compressionNone, "Compression of stored values: none or zstd")
	flags.Int("cache-size", 1024, "The number of objects kept in cache. 0 disables the cache")
	flags.String("badger-memtable-size", "64MB", "The size of badger memtables, e.g. 64MB")

	for key, flag := range map[string]string{
		"backend":              "backend",
		"path":                 "path",
		"database":             "database",
		"project":              "project",
		"log-level":            "log-level",
		"compression":          "compression",
		"cache-size":           "cache-size",
		"badger.memtable-size": "badger-memtable-size",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logFatalln(err)
		}
	}
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the config of graphstore",
	Long: `Commands to manage the graphstore CLI config.

Configuration is read from flags, GRAPHSTORE_* environment variables and a graphstore.yaml file
located in the current directory, $HOME/.graphstore or /etc/graphstore.
The GRAPHSTORE_CONFIG environment variable points to an alternate configuration file.`,
}

var configShow = &cobra.Command{
	Use:   "show",
	Short: "Print the config used",
	Long:  `Print the config used by the invocation of the graphstore command`,
	Run: func(cmd *cobra.Command, args []string) {
		b, err := yaml.Marshal(config)
		if err != nil {
			wrapFatalln("marshal config", err)
			return
		}
		_, _ = cmd.OutOrStdout().Write(b)
	},
}

func init() {
	configCmd.AddCommand(configShow)
	rootCmd.AddCommand(configCmd)
}
