package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/sol"
)

func GetKeyCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "Signing key related commands",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the accounts keys are loaded for",
				Action:  KeysList,
			},
			{
				Name:  "new",
				Usage: "Generate a new key, printing its mnemonic",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Usage: "Also write the key as a solana-keygen json file",
					},
				},
				Action: KeyNew,
			},
		},
	}
}

func KeysList(ctx context.Context, command *cli.Command) error {
	accounts := App.signer.Accounts()
	if len(accounts) == 0 {
		fmt.Println("No keys loaded. Set STAKEPOOL_KEYPAIR_<name> or STAKEPOOL_MNEMONIC_<name>")
		return nil
	}
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		fmt.Println(account, rolesFor(ctx, registry, account))
	}
	return nil
}

// rolesFor describes which registered pools account manages or stakes for.
func rolesFor(ctx context.Context, registry *Registry, account solana.PublicKey) string {
	var roles []string
	for _, entry := range registry.ForNetwork(App.network.Name) {
		poolAddr, err := entry.PublicKey()
		if err != nil {
			continue
		}
		pool, err := App.controller.GetPool(ctx, poolAddr)
		if err != nil {
			misc.Debugf(App.logger, "skipping pool %s: %v", entry.Name, err)
			continue
		}
		if pool.Manager == account {
			roles = append(roles, "manager:"+entry.Name)
		}
		if pool.Staker == account {
			roles = append(roles, "staker:"+entry.Name)
		}
	}
	if len(roles) == 0 {
		return ""
	}
	return fmt.Sprint(roles)
}

func KeyNew(ctx context.Context, command *cli.Command) error {
	key, err := App.signer.NewKey()
	if err != nil {
		return err
	}
	phrase, err := sol.ExportMnemonic(key)
	if err != nil {
		return err
	}
	fmt.Println("Address:", key.PublicKey())
	fmt.Println("Mnemonic:", phrase)
	fmt.Println("Keep the mnemonic safe, set it as STAKEPOOL_MNEMONIC_<name> to use this key")

	if out := command.String("out"); out != "" {
		keygen := make([]int, len(key))
		for i, b := range key {
			keygen[i] = int(b)
		}
		content, err := json.Marshal(keygen)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, content, 0600); err != nil {
			return fmt.Errorf("error writing key file: %w", err)
		}
		misc.Infof(App.logger, "key written to %s", out)
	}
	return nil
}
