package config

import (
	"fmt"
	"strings"

	"hoperise/crypto"
)

// ParsedAllocation is a genesis credit with a decoded address.
type ParsedAllocation struct {
	Address [crypto.AddressLength]byte
	Balance uint64
}

// ValidateConfig checks addresses and genesis allocations.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config required")
	}
	if strings.TrimSpace(cfg.Authority) == "" {
		return fmt.Errorf("authority: address required")
	}
	if _, err := crypto.ParseAccount(cfg.Authority); err != nil {
		return fmt.Errorf("authority: %w", err)
	}
	switch cfg.StorageBackend {
	case "", "leveldb", "bolt":
	default:
		return fmt.Errorf("storage backend %q: must be leveldb or bolt", cfg.StorageBackend)
	}
	if _, err := cfg.GenesisAllocations(); err != nil {
		return err
	}
	return nil
}

// AuthorityAddress returns the decoded allocator authority.
func (c *Config) AuthorityAddress() ([crypto.AddressLength]byte, error) {
	return crypto.ParseAccount(c.Authority)
}

// GenesisAllocations decodes the configured allocations, rejecting duplicates
// and totals that overflow.
func (c *Config) GenesisAllocations() ([]ParsedAllocation, error) {
	seen := make(map[[crypto.AddressLength]byte]bool, len(c.Genesis))
	out := make([]ParsedAllocation, 0, len(c.Genesis))
	var total uint64
	for i, alloc := range c.Genesis {
		addr, err := crypto.ParseAccount(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		if seen[addr] {
			return nil, fmt.Errorf("genesis[%d]: duplicate address %s", i, alloc.Address)
		}
		seen[addr] = true
		if total+alloc.Balance < total {
			return nil, fmt.Errorf("genesis: total allocation overflows")
		}
		total += alloc.Balance
		out = append(out, ParsedAllocation{Address: addr, Balance: alloc.Balance})
	}
	return out, nil
}
