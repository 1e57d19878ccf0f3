package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySaveLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	registry, err := LoadRegistry()
	require.NoError(t, err)
	assert.Empty(t, registry.Pools)

	first, second := newKey().String(), newKey().String()
	require.NoError(t, registry.Add(PoolEntry{Name: "main", Address: first, Network: "devnet"}))
	require.NoError(t, registry.Add(PoolEntry{Name: "main", Address: second, Network: "local"}))
	require.NoError(t, SaveRegistry(registry))

	cfgName, err := ConfigFilename()
	require.NoError(t, err)
	assert.Equal(t, "pools.json", filepath.Base(cfgName))
	// only the renamed file is left behind
	entries, err := os.ReadDir(filepath.Dir(cfgName))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded, err := LoadRegistry()
	require.NoError(t, err)
	require.Len(t, loaded.Pools, 2)
	entry, found := loaded.Find("devnet", "main")
	require.True(t, found)
	assert.Equal(t, first, entry.Address)
	assert.False(t, entry.Added.IsZero())

	entry, found = loaded.Find("local", second)
	require.True(t, found)
	assert.Equal(t, "main", entry.Name)
}

func TestRegistryAdd(t *testing.T) {
	addr := newKey().String()
	tests := []struct {
		name    string
		entry   PoolEntry
		wantErr string
		want    []string
	}{
		{name: "new pool", entry: PoolEntry{Name: "other", Address: newKey().String(), Network: "devnet"}, want: []string{"main", "other"}},
		{name: "rename", entry: PoolEntry{Name: "renamed", Address: addr, Network: "devnet"}, want: []string{"renamed"}},
		{name: "name taken", entry: PoolEntry{Name: "main", Address: newKey().String(), Network: "devnet"}, wantErr: "already used"},
		{name: "same name other network", entry: PoolEntry{Name: "main", Address: addr, Network: "testnet"}, want: []string{"main", "main"}},
		{name: "unnamed uses address", entry: PoolEntry{Address: newKey().String(), Network: "devnet"}},
		{name: "bad address", entry: PoolEntry{Name: "x", Address: "nope", Network: "devnet"}, wantErr: "invalid pool address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := &Registry{}
			require.NoError(t, registry.Add(PoolEntry{Name: "main", Address: addr, Network: "devnet"}))

			err := registry.Add(tt.entry)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.entry.Name == "" {
				entry, found := registry.Find("devnet", tt.entry.Address)
				require.True(t, found)
				assert.Equal(t, tt.entry.Address, entry.Name)
				return
			}
			var names []string
			for _, entry := range registry.Pools {
				names = append(names, entry.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := &Registry{}
	addr := newKey().String()
	require.NoError(t, registry.Add(PoolEntry{Name: "main", Address: addr, Network: "devnet"}))

	assert.False(t, registry.Remove("testnet", "main"))
	assert.True(t, registry.Remove("devnet", addr))
	assert.Empty(t, registry.ForNetwork("devnet"))
	_, found := registry.Find("devnet", "main")
	assert.False(t, found)
}
