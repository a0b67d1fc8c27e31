package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Source backends selectable in the config file.
const (
	sourceFile  = "file"
	sourceRedis = "redis"
	sourceMongo = "mongo"
)

// Snapshot store backends selectable in the config file.
const (
	snapshotFile  = "file"
	snapshotRedis = "redis"
	snapshotNone  = "none"
)

// Config is the TOML host configuration shared by browse and serve.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	Engine   EngineConfig   `toml:"engine"`
	Serve    ServeConfig    `toml:"serve"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// SourceConfig selects and locates the data source.
type SourceConfig struct {
	// Type is one of "file", "redis", "mongo".
	Type string `toml:"type"`

	// Path is the JSON rows file for the file backend.
	Path string `toml:"path,omitempty"`

	Redis RedisConfig `toml:"redis,omitempty"`
	Mongo MongoConfig `toml:"mongo,omitempty"`
}

// RedisConfig locates a Redis-backed collection.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password,omitempty"`
	DB       int    `toml:"db,omitempty"`
	Key      string `toml:"key"`
	Channel  string `toml:"channel,omitempty"`
}

// MongoConfig locates a MongoDB-backed collection.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// EngineConfig shapes the standard feature set.
type EngineConfig struct {
	// RowIDKey is the row identity field. Defaults to "id".
	RowIDKey string `toml:"row_id_key,omitempty"`
	// PageSize is the initial page size. Zero disables pagination slicing.
	PageSize int `toml:"page_size,omitempty"`
	// SelectionMode is "none", "single" or "multiple". Defaults to multiple.
	SelectionMode string `toml:"selection_mode,omitempty"`
	// StrictModal rejects opening a modal while one is active.
	StrictModal bool `toml:"strict_modal,omitempty"`
	// View is the name of a saved view applied after load.
	View string `toml:"view,omitempty"`
}

// ServeConfig shapes the HTTP host.
type ServeConfig struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string `toml:"addr,omitempty"`
}

// SnapshotConfig selects where the serve host persists named snapshots.
type SnapshotConfig struct {
	// Type is "file" (default), "redis" or "none". The redis backend reuses
	// the source.redis connection settings.
	Type string `toml:"type,omitempty"`
	// Dir is the file-backend directory. Defaults to the snapshots directory
	// under the config directory.
	Dir string `toml:"dir,omitempty"`
	// TTLMinutes expires stored snapshots. Zero keeps them forever.
	TTLMinutes int `toml:"ttl_minutes,omitempty"`
}

// defaultConfig returns the configuration used when no file is present: a
// file source fed by rows.json in the working directory.
func defaultConfig() Config {
	return Config{
		Source:   SourceConfig{Type: sourceFile, Path: "rows.json"},
		Engine:   EngineConfig{RowIDKey: "id", PageSize: 25},
		Serve:    ServeConfig{Addr: ":8080"},
		Snapshot: SnapshotConfig{Type: snapshotFile},
	}
}

// loadConfig reads a TOML config file and fills in defaults. An empty path
// tries ~/.config/rowkit/config.toml and falls back to pure defaults when
// that does not exist.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return defaultConfig(), nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return defaultConfig(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Source.Type {
	case sourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for the file backend")
		}
	case sourceRedis:
		if c.Source.Redis.Addr == "" || c.Source.Redis.Key == "" {
			return fmt.Errorf("source.redis.addr and source.redis.key are required")
		}
	case sourceMongo:
		m := c.Source.Mongo
		if m.URI == "" || m.Database == "" || m.Collection == "" {
			return fmt.Errorf("source.mongo.uri, database and collection are required")
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}

	switch c.Engine.SelectionMode {
	case "", "none", "single", "multiple":
	default:
		return fmt.Errorf("unknown selection mode %q", c.Engine.SelectionMode)
	}

	switch c.Snapshot.Type {
	case "", snapshotFile, snapshotNone:
	case snapshotRedis:
		if c.Source.Redis.Addr == "" {
			return fmt.Errorf("snapshot.type redis requires source.redis.addr")
		}
	default:
		return fmt.Errorf("unknown snapshot store type %q", c.Snapshot.Type)
	}
	return nil
}
