package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. SMARTCLASS_STORAGE_DRIVER.
const EnvPrefix = "SMARTCLASS"

type Storage struct {
	Driver   string // sqlite, postgres, mysql or mongo
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
}

type Config struct {
	Env     string
	DataDir string
	Storage Storage

	HTTPAddress string
	MCPName     string

	HistoryLimit    int
	DragThreshold   float64
	ViewportWidth   float64
	ViewportHeight  float64
	TargetedTimeout time.Duration
	ShakeTimeout    time.Duration

	AutosaveSchedule string
	MaxRevisions     int
	AssetsBackend    string // sql, disk or memory
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smartclass"
	}
	return filepath.Join(home, ".smartclass")
}

// New returns a viper instance with every default set and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("env", "dev")
	v.SetDefault("dataDir", defaultDataDir())
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.host", "localhost")
	v.SetDefault("storage.port", 0)
	v.SetDefault("storage.database", "smartclass")
	v.SetDefault("storage.username", "smartclass")
	v.SetDefault("http.address", "127.0.0.1:7420")
	v.SetDefault("mcp.name", "smartclass-builder")
	v.SetDefault("history.limit", 50)
	v.SetDefault("drag.threshold", 3.0)
	v.SetDefault("viewport.width", 1280.0)
	v.SetDefault("viewport.height", 720.0)
	v.SetDefault("connection.targetedTimeout", 2*time.Second)
	v.SetDefault("connection.shakeTimeout", 500*time.Millisecond)
	v.SetDefault("autosave.schedule", "@every 30s")
	v.SetDefault("revisions.max", 40)
	v.SetDefault("assets.backend", "sql")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load builds the configuration. A .env.<env> file next to the working
// directory (or in dataDir) is loaded first when present, then the optional
// config file, then the environment.
func Load(configFile string) (*Config, error) {
	env := strings.ToLower(os.Getenv(EnvPrefix + "_ENV"))
	if env == "" {
		env = "dev"
	}
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	v := New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return FromViper(v)
}

func loadDotEnv(env string) error {
	candidates := []string{
		filepath.Join(".", ".env."+env),
		filepath.Join(".", "config", ".env."+env),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			return nil
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return nil
}

// FromViper reads a Config out of v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Env:     v.GetString("env"),
		DataDir: v.GetString("dataDir"),
		Storage: Storage{
			Driver:   strings.ToLower(v.GetString("storage.driver")),
			DSN:      v.GetString("storage.dsn"),
			Host:     v.GetString("storage.host"),
			Port:     v.GetInt("storage.port"),
			Database: v.GetString("storage.database"),
			Username: v.GetString("storage.username"),
		},
		HTTPAddress:      v.GetString("http.address"),
		MCPName:          v.GetString("mcp.name"),
		HistoryLimit:     v.GetInt("history.limit"),
		DragThreshold:    v.GetFloat64("drag.threshold"),
		ViewportWidth:    v.GetFloat64("viewport.width"),
		ViewportHeight:   v.GetFloat64("viewport.height"),
		TargetedTimeout:  v.GetDuration("connection.targetedTimeout"),
		ShakeTimeout:     v.GetDuration("connection.shakeTimeout"),
		AutosaveSchedule: v.GetString("autosave.schedule"),
		MaxRevisions:     v.GetInt("revisions.max"),
		AssetsBackend:    strings.ToLower(v.GetString("assets.backend")),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres", "mysql", "mongo":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.AssetsBackend {
	case "sql", "disk", "memory":
	default:
		return fmt.Errorf("config: unknown assets.backend %q", c.AssetsBackend)
	}
	if c.AssetsBackend == "sql" && c.Storage.Driver == "mongo" {
		return fmt.Errorf("config: assets.backend sql needs a SQL storage.driver")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("config: history.limit must be positive")
	}
	if c.MaxRevisions <= 0 {
		return fmt.Errorf("config: revisions.max must be positive")
	}
	return nil
}

// SQLitePath is where the embedded database lives.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "smartclass.db")
}

func (c *Config) AssetsDir() string {
	return filepath.Join(c.DataDir, "assets")
}

func (c *Config) EditorDir() string {
	return filepath.Join(c.DataDir, "editor")
}
