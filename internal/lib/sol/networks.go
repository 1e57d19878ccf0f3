package sol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

// LocalNetwork runs pools against an on-disk ledger instead of a cluster.
const LocalNetwork = "local"

var Networks = []string{"mainnet-beta", "testnet", "devnet", "localnet", LocalNetwork}

type NetworkConfig struct {
	Name string

	RPCURL     string
	RPCHeaders map[string]string

	ProgramID solana.PublicKey

	// LedgerDir is only used by the local network.
	LedgerDir string
}

func (n NetworkConfig) IsLocal() bool {
	return n.Name == LocalNetwork
}

func (n NetworkConfig) String() string {
	return fmt.Sprintf("Network: %s, RPCURL: %s, RPCHeaders: %d, ProgramID: %s, LedgerDir: %s", n.Name, n.RPCURL, len(n.RPCHeaders), n.ProgramID, n.LedgerDir)
}

func GetNetworkConfig(network string) (NetworkConfig, error) {
	cfg, err := getDefaults(network)
	if err != nil {
		return cfg, err
	}

	if rpcURL := misc.GetSecret("SOLANA_RPC_URL"); rpcURL != "" {
		cfg.RPCURL = rpcURL
	}
	if programID := os.Getenv("STAKEPOOL_PROGRAM_ID"); programID != "" {
		cfg.ProgramID, err = solana.PublicKeyFromBase58(programID)
		if err != nil {
			return cfg, fmt.Errorf("invalid STAKEPOOL_PROGRAM_ID %q: %w", programID, err)
		}
	}
	if dir := os.Getenv("STAKEPOOL_LEDGER_DIR"); dir != "" {
		cfg.LedgerDir = dir
	}
	// parse SOLANA_RPC_HEADERS from key:value,[key:value...] pairs
	cfg.RPCHeaders = map[string]string{}
	for _, header := range strings.Split(misc.GetSecret("SOLANA_RPC_HEADERS"), ",") {
		parts := strings.SplitN(header, ":", 2) // values may contain :'s
		if len(parts) == 2 {
			cfg.RPCHeaders[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cfg, nil
}

func getDefaults(network string) (NetworkConfig, error) {
	cfg := NetworkConfig{Name: network, ProgramID: stakepool.ProgramID}
	switch network {
	case "mainnet-beta":
		cfg.RPCURL = rpc.MainNetBeta_RPC
	case "testnet":
		cfg.RPCURL = rpc.TestNet_RPC
	case "devnet":
		cfg.RPCURL = rpc.DevNet_RPC
	case "localnet":
		cfg.RPCURL = rpc.LocalNet_RPC
	case LocalNetwork:
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.LedgerDir = filepath.Join(dir, "stakepool", "ledger")
	default:
		return cfg, fmt.Errorf("unknown network:%s", network)
	}
	return cfg, nil
}
