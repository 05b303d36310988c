package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hoperise/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string       `toml:"RPCAddress"`
	DataDir        string       `toml:"DataDir"`
	StorageBackend string       `toml:"StorageBackend"`
	Environment    string       `toml:"Environment"`
	Authority      string       `toml:"Authority"`
	Genesis        []Allocation `toml:"Genesis"`
	Auth           Auth         `toml:"Auth"`
	RateLimit      RateLimit    `toml:"RateLimit"`
	Indexer        Indexer      `toml:"Indexer"`
	Telemetry      Telemetry    `toml:"Telemetry"`
	Logging        Logging      `toml:"Logging"`
	Pauses         Pauses       `toml:"Pauses"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists. HOPE_* environment variables override file values.
func Load(path string) (*Config, error) {
	var cfg *Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &Config{}
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("HOPE_RPC_ADDRESS")); v != "" {
		cfg.RPCAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("HOPE_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("HOPE_ENV")); v != "" {
		cfg.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("HOPE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./hope-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.Auth.JWTSecretEnv) == "" {
		cfg.Auth.JWTSecretEnv = "HOPE_JWT_SECRET"
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 40
	}
	if cfg.Indexer.Enabled && strings.TrimSpace(cfg.Indexer.Path) == "" {
		cfg.Indexer.Path = filepath.Join(cfg.DataDir, "events.db")
	}
	if cfg.Genesis == nil {
		cfg.Genesis = []Allocation{}
	}
}

// createDefault creates and saves a default configuration file with a freshly
// generated development authority address.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		RPCAddress:     ":8080",
		DataDir:        "./hope-data",
		Environment:    "local",
		StorageBackend: "leveldb",
		Authority:      key.PubKey().Address().String(),
		Genesis:        []Allocation{},
		Auth:           Auth{JWTSecretEnv: "HOPE_JWT_SECRET", Issuer: "hoperise"},
		RateLimit:      RateLimit{RequestsPerSecond: 20, Burst: 40},
		Indexer:        Indexer{Enabled: true, Path: "./hope-data/events.db"},
		Logging:        Logging{Level: "info"},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
