package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/localledger"
	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/sol"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func initApp() *PoolApp {
	log.SetFlags(0)
	logger := misc.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	// ledger, signer and controller are set in the initClients method.
	appConfig := &PoolApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "stakepoolmgr",
		Usage:   "Management tool and background daemon for stake pools",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// This is further bootstrap of the 'app' but within context of 'cli' helper as it will
			// have access to flags and options (network to use for eg) already set.
			return appConfig.initClients(ctx, cmd)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("STAKEPOOL_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   fmt.Sprintf("Network to use, one of %v", sol.Networks),
				Value:   "devnet",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("SOLANA_NETWORK"),
			},
			&cli.StringFlag{
				Name:    "payer",
				Usage:   "Account paying transaction fees and rent. Defaults to the first signer of each transaction",
				Sources: cli.EnvVars("STAKEPOOL_PAYER"),
			},
			&cli.StringFlag{
				Name:    "secrets",
				Usage:   "Directory of mounted secret files (one value per file) loaded into the environment",
				Value:   "/run/secrets",
				Sources: cli.EnvVars("STAKEPOOL_SECRETS_DIR"),
			},
		},
		Commands: []*cli.Command{
			GetDaemonCmdOpts(),
			GetPoolCmdOpts(),
			GetValidatorCmdOpts(),
			GetKeyCmdOpts(),
		},
	}
	return appConfig
}

type PoolApp struct {
	cliCmd *cli.Command
	logger *slog.Logger
	signer *sol.LocalKeyStore

	network    sol.NetworkConfig
	ledger     stakepool.Ledger
	observer   stakepool.Observer
	controller *stakepool.Controller

	// only set for the local network
	local *localledger.Ledger

	closeOnce sync.Once
}

// initClients loads the network specific environment, the signing keys and then connects the
// controller to either the cluster (via rpc) or the local on-disk ledger.
func (ac *PoolApp) initClients(ctx context.Context, cmd *cli.Command) error {
	network := cmd.String("network")

	if envfile := cmd.String("envfile"); envfile != "" {
		err := loadNamedEnvFile(ctx, envfile)
		if err != nil {
			return err
		}
	}
	// quick validity check on possible network names...
	if !slices.Contains(sol.Networks, network) {
		return fmt.Errorf("unknown network:%s", network)
	}

	// Now load .env.{network} overrides - ie: .env.local containing generated keys
	misc.LoadEnvForNetwork(ac.logger, network)

	if dir := cmd.String("secrets"); dir != "" {
		count, err := misc.LoadSecretsDir(dir)
		if err != nil {
			return err
		}
		if count > 0 {
			misc.Infof(ac.logger, "loaded %d secrets from %s", count, dir)
		}
	}

	cfg, err := sol.GetNetworkConfig(network)
	if err != nil {
		return err
	}
	ac.network = cfg
	misc.Debugf(ac.logger, "network config: %s", cfg)

	// This will load and initialize keys from the environment - and handles all 'local' signing for the app
	ac.signer, err = sol.NewLocalKeyStore(ac.logger)
	if err != nil {
		return err
	}

	var payer solana.PublicKey
	if payerStr := cmd.String("payer"); payerStr != "" {
		payer, err = solana.PublicKeyFromBase58(payerStr)
		if err != nil {
			return fmt.Errorf("invalid payer address %q: %w", payerStr, err)
		}
	}

	if cfg.IsLocal() {
		ledger, err := localledger.Open(ac.logger, cfg.LedgerDir)
		if err != nil {
			return err
		}
		ac.local = ledger
		ac.ledger = ledger
		ac.observer = ledger
	} else {
		client, err := sol.GetRPCClient(ctx, ac.logger, cfg)
		if err != nil {
			return err
		}
		ledger := sol.NewRPCLedger(ac.logger, client, ac.signer, cfg.ProgramID, payer)
		ac.ledger = ledger
		ac.observer = ledger
	}
	ac.controller = stakepool.New(ac.logger, ac.ledger, cfg.ProgramID)
	return nil
}

func (ac *PoolApp) close() {
	ac.closeOnce.Do(func() {
		if ac.local != nil {
			if err := ac.local.Close(); err != nil {
				misc.Warnf(ac.logger, "error closing local ledger: %v", err)
			}
		}
	})
}

// requireSigner fails unless we hold the key for account. The local ledger does not verify
// signatures so any account is accepted there.
func (ac *PoolApp) requireSigner(role string, account solana.PublicKey) error {
	if ac.network.IsLocal() || ac.signer.HasAccount(account) {
		return nil
	}
	return fmt.Errorf("%s account:%s isn't an account you have keys to", role, account)
}

func requireLocal(ctx context.Context, cmd *cli.Command) error {
	if !App.network.IsLocal() {
		return fmt.Errorf("%s is only available on the %s network", cmd.Name, sol.LocalNetwork)
	}
	return nil
}

func loadNamedEnvFile(ctx context.Context, envFile string) error {
	misc.Infof(App.logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}
