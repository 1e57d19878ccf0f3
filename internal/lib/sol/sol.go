package sol

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
)

// FormattedSolAmount renders lamports as SOL without trailing zeros.
func FormattedSolAmount(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9).String()
}

// ParseSolAmount converts a SOL amount such as "1.5" to lamports.
func ParseSolAmount(amount string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid SOL amount %q: negative", amount)
	}
	lamports := d.Shift(9)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("invalid SOL amount %q: more than 9 decimals", amount)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("invalid SOL amount %q: too large", amount)
	}
	return lamports.BigInt().Uint64(), nil
}

func GetRPCClient(ctx context.Context, log *slog.Logger, config NetworkConfig) (*rpc.Client, error) {
	url := strings.TrimRight(config.RPCURL, "/")
	misc.Infof(log, "Connecting to Solana RPC at:%s", url)

	// Override the default transport so we can properly support multiple parallel connections to same
	// host (and allow connection reuse)
	customTransport := http.DefaultTransport.(*http.Transport).Clone()
	customTransport.MaxIdleConns = 100
	customTransport.MaxConnsPerHost = 100
	customTransport.MaxIdleConnsPerHost = 100
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: customTransport,
	}
	client := rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
		HTTPClient:    httpClient,
		CustomHeaders: config.RPCHeaders,
	}))

	// Immediately hit server to verify connectivity
	vers, err := GetVersionString(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to reach rpc node at %s: %w", url, err)
	}
	misc.Debugf(log, "rpc node version:%s", vers)
	return client, nil
}

// LatestBlockhash keeps asking until the node answers or ctx ends.
func LatestBlockhash(ctx context.Context, logger *slog.Logger, client *rpc.Client) (solana.Hash, error) {
	var hash solana.Hash
	err := repeat.Repeat(
		repeat.Fn(func() error {
			recent, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			if recent == nil || recent.Value == nil {
				return repeat.HintTemporary(fmt.Errorf("empty blockhash response"))
			}
			hash = recent.Value.Blockhash
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.FnOnError(func(err error) error {
			misc.Infof(logger, "retrying blockhash call, error:%s", err.Error())
			return err
		}),
		repeat.LimitMaxTries(10),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			repeat.SetContextHintStop(),
			repeat.ExponentialBackoff(500*time.Millisecond).Set(),
		),
	)
	return hash, err
}

// RentExempt returns the minimum balance for an account of size bytes.
func RentExempt(ctx context.Context, client *rpc.Client, size uint64) (uint64, error) {
	lamports, err := client.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get minimum balance for rent exemption of %d bytes: %w", size, err)
	}
	return lamports, nil
}

func GetVersionString(ctx context.Context, client *rpc.Client) (string, error) {
	vers, err := client.GetVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("error fetching version from rpc node: %w", err)
	}
	return fmt.Sprintf("%s (feature set %d)", vers.SolanaCore, vers.FeatureSet), nil
}
