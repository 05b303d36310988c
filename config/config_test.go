package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoperise/crypto"
)

func devAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !strings.HasPrefix(cfg.Authority, "hope1") {
		t.Fatalf("unexpected authority %q", cfg.Authority)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Authority != cfg.Authority {
		t.Fatalf("authority changed across loads")
	}
}

func TestLoadParsesGenesisAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	alice := devAddress(t)
	body := `
Authority = "` + devAddress(t) + `"
DataDir = "/tmp/hope"

[[Genesis]]
Address = "` + alice + `"
Balance = 5000

[Indexer]
Enabled = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.RateLimit.Burst != 40 || cfg.StorageBackend != "leveldb" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Indexer.Path != filepath.Join("/tmp/hope", "events.db") {
		t.Fatalf("unexpected indexer path %q", cfg.Indexer.Path)
	}
	allocs, err := cfg.GenesisAllocations()
	if err != nil || len(allocs) != 1 || allocs[0].Balance != 5000 {
		t.Fatalf("unexpected allocations %v %v", allocs, err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "Authority = \"" + devAddress(t) + "\"\nValidatorKey = \"x\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv("HOPE_RPC_ADDRESS", "127.0.0.1:9999")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:9999" {
		t.Fatalf("env override ignored: %q", cfg.RPCAddress)
	}
}

func TestValidateGenesis(t *testing.T) {
	alice := devAddress(t)
	cfg := &Config{Authority: devAddress(t), Genesis: []Allocation{{Address: alice, Balance: 1}, {Address: alice, Balance: 2}}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected duplicate allocation error")
	}
	cfg.Genesis = []Allocation{{Address: "bogus", Balance: 1}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected address error")
	}
	cfg.Genesis = []Allocation{{Address: alice, Balance: ^uint64(0)}, {Address: devAddress(t), Balance: 1}}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected overflow error")
	}
	cfg.Authority = ""
	cfg.Genesis = nil
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected missing authority error")
	}
}

func TestPausesModules(t *testing.T) {
	if got := (Pauses{Campaign: true}).Modules(); len(got) != 1 || got[0] != "campaign" {
		t.Fatalf("unexpected modules %v", got)
	}
	if got := (Pauses{}).Modules(); len(got) != 0 {
		t.Fatalf("expected no paused modules")
	}
}

func TestValidateStorageBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "Authority = \"" + devAddress(t) + "\"\nStorageBackend = \"rocks\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "storage backend") {
		t.Fatalf("expected storage backend error, got %v", err)
	}
}
