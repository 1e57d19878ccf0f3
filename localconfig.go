package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gagliardetto/solana-go"
)

// PoolEntry is a pool this node manages. Names are unique per network.
type PoolEntry struct {
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Network string    `json:"network"`
	Added   time.Time `json:"added"`
}

func (p PoolEntry) PublicKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(p.Address)
}

type Registry struct {
	Pools []PoolEntry `json:"pools"`
}

func ConfigFilename() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(cfgDir, "stakepool", "pools.json")
	err = os.MkdirAll(filepath.Dir(cfgPath), 0775) // user+group RWX, others RX
	if err != nil {
		return "", fmt.Errorf("error making directory:%s, error:%w", cfgDir, err)
	}
	return cfgPath, nil
}

// LoadRegistry returns an empty registry if nothing was saved yet.
func LoadRegistry() (*Registry, error) {
	cfgName, err := ConfigFilename()
	if err != nil {
		return nil, err
	}
	file, err := os.Open(cfgName)
	if errors.Is(err, os.ErrNotExist) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var registry Registry
	err = json.NewDecoder(file).Decode(&registry)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", cfgName, err)
	}
	return &registry, nil
}

func SaveRegistry(registry *Registry) error {
	// Save into a temp file first and then replace the config file only if successfully written.
	cfgName, err := ConfigFilename()
	if err != nil {
		return err
	}
	temp, err := os.CreateTemp(filepath.Dir(cfgName), filepath.Base(cfgName)+".*")
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(temp)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(registry)
	if err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("error saving pool registry: %w", err)
	}

	err = temp.Close()
	if err != nil {
		return err
	}

	err = os.Rename(temp.Name(), cfgName)
	if err != nil {
		return err
	}
	slog.Debug("pool registry saved", "file", cfgName)
	return nil
}

// Add registers a pool. Re-adding a known address renames it.
func (r *Registry) Add(entry PoolEntry) error {
	if _, err := entry.PublicKey(); err != nil {
		return fmt.Errorf("invalid pool address %q: %w", entry.Address, err)
	}
	if entry.Name == "" {
		entry.Name = entry.Address
	}
	for i, existing := range r.Pools {
		if existing.Network != entry.Network {
			continue
		}
		if existing.Address == entry.Address {
			r.Pools[i].Name = entry.Name
			return nil
		}
		if existing.Name == entry.Name {
			return fmt.Errorf("pool name %q is already used by %s on %s", entry.Name, existing.Address, entry.Network)
		}
	}
	if entry.Added.IsZero() {
		entry.Added = time.Now().UTC()
	}
	r.Pools = append(r.Pools, entry)
	return nil
}

// Find matches by name first, then by address.
func (r *Registry) Find(network, nameOrAddress string) (PoolEntry, bool) {
	idx := r.index(network, nameOrAddress)
	if idx == -1 {
		return PoolEntry{}, false
	}
	return r.Pools[idx], true
}

func (r *Registry) Remove(network, nameOrAddress string) bool {
	idx := r.index(network, nameOrAddress)
	if idx == -1 {
		return false
	}
	r.Pools = slices.Delete(r.Pools, idx, idx+1)
	return true
}

func (r *Registry) ForNetwork(network string) []PoolEntry {
	var pools []PoolEntry
	for _, entry := range r.Pools {
		if entry.Network == network {
			pools = append(pools, entry)
		}
	}
	return pools
}

func (r *Registry) index(network, nameOrAddress string) int {
	if idx := slices.IndexFunc(r.Pools, func(p PoolEntry) bool {
		return p.Network == network && p.Name == nameOrAddress
	}); idx != -1 {
		return idx
	}
	return slices.IndexFunc(r.Pools, func(p PoolEntry) bool {
		return p.Network == network && p.Address == nameOrAddress
	})
}
