package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/sol"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func poolFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "pool",
		Aliases:  []string{"p"},
		Usage:    "Pool name (from 'pool list') or pool address",
		Required: true,
	}
}

func managerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "manager",
		Usage: "Manager account signing the change. Defaults to the pool's current manager",
	}
}

func GetPoolCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "pool",
		Aliases: []string{"p"},
		Usage:   "Create, configure and operate stake pools",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List pools managed from this node",
				Action:  PoolsList,
			},
			{
				Name:   "info",
				Usage:  "Display the pool account, its validators and token metadata",
				Flags:  []cli.Flag{poolFlag()},
				Action: PoolInfo,
			},
			{
				Name:  "create",
				Usage: "Create a new pool, prompting for its configuration unless a definition file is given",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "YAML pool definition",
					},
				},
				Action: PoolCreate,
			},
			{
				Name:  "import",
				Usage: "Add an existing pool to the pools managed from this node",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "address",
						Usage:    "Pool account address",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Local name for the pool",
					},
				},
				Action: PoolImport,
			},
			{
				Name:   "forget",
				Usage:  "Stop managing a pool from this node. Nothing changes on the ledger",
				Flags:  []cli.Flag{poolFlag()},
				Action: PoolForget,
			},
			{
				Name:  "metadata",
				Usage: "Attach or replace the token metadata of the pool mint",
				Flags: []cli.Flag{
					poolFlag(),
					managerFlag(),
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "symbol", Required: true},
					&cli.StringFlag{Name: "uri", Value: ""},
				},
				Action: PoolMetadata,
			},
			{
				Name:  "fee",
				Usage: "Change one of the pool fees. Epoch and withdrawal fees take effect two epochs later",
				Flags: []cli.Flag{
					poolFlag(),
					managerFlag(),
					&cli.StringFlag{
						Name:     "type",
						Usage:    "epoch, sol-deposit, sol-withdrawal, stake-deposit, stake-withdrawal, sol-referral or stake-referral",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "value",
						Usage:    "Fee as n/d or a percentage (ie: 1/100 or 0.5%). Referral fees are a whole percent",
						Required: true,
					},
				},
				Action: PoolSetFee,
			},
			{
				Name:  "manager",
				Usage: "Hand the pool to a new manager. Both managers must sign",
				Flags: []cli.Flag{
					poolFlag(),
					managerFlag(),
					&cli.StringFlag{Name: "new", Usage: "New manager account", Required: true},
					&cli.StringFlag{Name: "fee-account", Usage: "New manager fee (pool token) account"},
				},
				Action: PoolSetManager,
			},
			{
				Name:  "staker",
				Usage: "Change the staker. Signed by the manager or the current staker",
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{Name: "authority", Usage: "Manager or current staker. Defaults to the current staker"},
					&cli.StringFlag{Name: "new", Usage: "New staker account", Required: true},
				},
				Action: PoolSetStaker,
			},
			{
				Name:  "deposit",
				Usage: "Deposit SOL into the pool in exchange for pool tokens",
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{Name: "amount", Usage: "SOL to deposit", Required: true},
					&cli.StringFlag{Name: "from", Usage: "Funding account (signs)", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Pool token account receiving the minted tokens", Required: true},
					&cli.StringFlag{Name: "referrer", Usage: "Pool token account receiving the referral fee. Defaults to the manager fee account"},
				},
				Action: PoolDeposit,
			},
			{
				Name:  "withdraw",
				Usage: "Burn pool tokens for SOL from the reserve",
				Flags: []cli.Flag{
					poolFlag(),
					&cli.StringFlag{Name: "tokens", Usage: "Pool tokens to burn", Required: true},
					&cli.StringFlag{Name: "authority", Usage: "Owner of the pool token account (signs)", Required: true},
					&cli.StringFlag{Name: "from", Usage: "Pool token account to burn from", Required: true},
					&cli.StringFlag{Name: "to", Usage: "Account receiving the SOL. Defaults to --authority"},
				},
				Action: PoolWithdraw,
			},
			{
				Name:    "update",
				Aliases: []string{"update-balance"},
				Usage:   "Refresh validator stake and the pool balance. Normally happens automatically as part of daemon operations",
				Flags:   []cli.Flag{poolFlag()},
				Action:  PoolUpdate,
			},
			{
				Name:  "begin-decommission",
				Usage: "Stop taking deposits and start removing every validator",
				Flags: []cli.Flag{poolFlag(), managerFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return poolDecommission(ctx, cmd, true)
				},
			},
			{
				Name:  "decommission",
				Usage: "Close the pool once every validator has been removed",
				Flags: []cli.Flag{poolFlag(), managerFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return poolDecommission(ctx, cmd, false)
				},
			},
			{
				Name:   "history",
				Usage:  "List the transactions applied to a pool on the local ledger",
				Flags:  []cli.Flag{poolFlag()},
				Before: requireLocal,
				Action: PoolHistory,
			},
		},
	}
}

func PoolsList(ctx context.Context, command *cli.Command) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}
	pools := registry.ForNetwork(App.network.Name)
	if len(pools) == 0 {
		fmt.Printf("No pools registered for %s. Use 'pool create' or 'pool import'\n", App.network.Name)
		return nil
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Name\tAddress\tState\tValidators\tTotal SOL\tPool Tokens\tLast Epoch\t")
	for _, entry := range pools {
		poolAddr, err := entry.PublicKey()
		if err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%v\t\t\t\t\t\n", entry.Name, entry.Address, err)
			continue
		}
		pool, list, err := App.controller.LoadState(ctx, poolAddr)
		if err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\t\t\t\t\n", entry.Name, entry.Address, stakepool.KindOf(err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%d\t\n", entry.Name, entry.Address, pool.State,
			list.Len(), list.MaxValidators, sol.FormattedSolAmount(pool.TotalLamports),
			sol.FormattedSolAmount(pool.PoolTokenSupply), pool.LastUpdateEpoch)
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func PoolInfo(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	pool, list, err := App.controller.LoadState(ctx, poolAddr)
	if err != nil {
		return err
	}
	fmt.Println("Pool:", poolAddr)
	fmt.Print(pool.String())
	fmt.Println("Total SOL:", sol.FormattedSolAmount(pool.TotalLamports))
	fmt.Println("Pool Tokens:", sol.FormattedSolAmount(pool.PoolTokenSupply))

	counts := list.CountByStatus()
	fmt.Printf("Validators: %d of %d (active:%d, deactivating:%d, removable:%d)\n", list.Len(), list.MaxValidators,
		counts[stakepool.StatusActive], counts[stakepool.StatusDeactivatingTransient], counts[stakepool.StatusReadyForRemoval])

	md, mdAddr, err := App.controller.GetMetadata(ctx, poolAddr)
	switch {
	case errors.Is(err, stakepool.ErrAccountNotFound):
		fmt.Println("Metadata: none")
	case err != nil:
		return err
	default:
		fmt.Printf("Metadata: %s\n  Name: %s\n  Symbol: %s\n  URI: %s\n", mdAddr, md.Name, md.Symbol, md.URI)
	}
	return nil
}

func PoolCreate(ctx context.Context, command *cli.Command) error {
	var (
		def *PoolDefinition
		err error
	)
	if path := command.String("file"); path != "" {
		def, err = LoadPoolDefinition(path)
	} else {
		def, err = DefinePool()
	}
	if err != nil {
		return err
	}
	return createPool(ctx, def)
}

func createPool(ctx context.Context, def *PoolDefinition) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}
	if _, found := registry.Find(App.network.Name, def.Name); found {
		return fmt.Errorf("a pool named %q is already registered on %s", def.Name, App.network.Name)
	}
	params, err := def.CreateParams()
	if err != nil {
		return err
	}
	if err := App.requireSigner("manager", params.Manager); err != nil {
		return err
	}
	if len(def.Validators) > 0 && !params.Staker.IsZero() {
		if err := App.requireSigner("staker", params.Staker); err != nil {
			return err
		}
	}
	// fresh accounts, each signs its own creation
	for _, into := range []*solana.PublicKey{&params.Pool, &params.ValidatorList, &params.Mint, &params.Reserve, &params.ManagerFeeAccount} {
		key, err := App.signer.NewKey()
		if err != nil {
			return err
		}
		*into = key.PublicKey()
	}
	params.Epoch, err = App.observer.CurrentEpoch(ctx)
	if err != nil {
		return err
	}

	pool, err := App.controller.Create(ctx, params)
	if err != nil {
		return err
	}
	err = registry.Add(PoolEntry{Name: def.Name, Address: params.Pool.String(), Network: App.network.Name})
	if err == nil {
		err = SaveRegistry(registry)
	}
	if err != nil {
		misc.Errorf(App.logger, "pool %s was created but could not be registered locally, use 'pool import': %v", params.Pool, err)
		return err
	}
	misc.Infof(App.logger, "pool %s created as %s", def.Name, params.Pool)

	if def.Metadata != nil {
		mdAddr, err := App.controller.AttachMetadata(ctx, stakepool.MetadataParams{
			Pool:    params.Pool,
			Manager: pool.Manager,
			Name:    def.Metadata.Name,
			Symbol:  def.Metadata.Symbol,
			URI:     def.Metadata.URI,
		})
		if err != nil {
			return fmt.Errorf("pool created but attaching metadata failed: %w", err)
		}
		misc.Infof(App.logger, "metadata attached at %s", mdAddr)
	}
	for _, v := range def.Validators {
		vote, lamports, _ := v.parse()
		err = App.controller.AddValidator(ctx, stakepool.ValidatorParams{
			Pool:     params.Pool,
			Staker:   pool.Staker,
			Vote:     vote,
			Lamports: lamports,
			Epoch:    params.Epoch,
		})
		if err != nil {
			return fmt.Errorf("pool created but adding validator %s failed: %w", vote, err)
		}
		misc.Infof(App.logger, "validator %s added", vote)
	}
	fmt.Println("Pool:", params.Pool)
	fmt.Print(pool.String())
	return nil
}

// DefinePool builds up a new pool definition interactively.
func DefinePool() (*PoolDefinition, error) {
	var (
		def = &PoolDefinition{}
		err error
	)
	def.Name, err = getString("Enter a local name for the pool", "", func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("name is required")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var defManager string
	if accounts := App.signer.Accounts(); len(accounts) > 0 {
		defManager = accounts[0].String()
	}
	def.Manager, err = getAddress("Enter account address for the 'manager' of the pool", defManager)
	if err != nil {
		return nil, err
	}
	if err := App.requireSigner("manager", solana.MustPublicKeyFromBase58(def.Manager)); err != nil {
		return nil, err
	}
	def.Staker, err = getAddress("Enter account address for the 'staker' (adds and removes validators)", def.Manager)
	if err != nil {
		return nil, err
	}

	def.EpochFee, err = getFee("Enter the fee taken from epoch rewards (n/d or percent)", "3%")
	if err != nil {
		return nil, err
	}
	def.WithdrawalFee, err = getFee("Enter the withdrawal fee", "0.1%")
	if err != nil {
		return nil, err
	}
	def.DepositFee, err = getFee("Enter the deposit fee", "0/1")
	if err != nil {
		return nil, err
	}
	referral, err := getInt("Enter the percent of deposit fees paid to referrers", 0, 0, stakepool.MaxReferralFee)
	if err != nil {
		return nil, err
	}
	def.ReferralFee = uint8(referral)
	capacity, err := getInt("Enter the maximum number of validators", 100, 1, 10_000)
	if err != nil {
		return nil, err
	}
	def.Capacity = uint32(capacity)

	if y, _ := yesNo("Do you want to attach token metadata to the pool mint"); y == "y" {
		md := &MetadataDefinition{}
		if md.Name, err = getString("Enter the token name", "", nil); err != nil {
			return nil, err
		}
		if md.Symbol, err = getString("Enter the token symbol", "", nil); err != nil {
			return nil, err
		}
		if md.URI, err = getString("Enter the token metadata uri", "", nil); err != nil {
			return nil, err
		}
		def.Metadata = md
	}
	return def, def.Validate()
}

func PoolImport(ctx context.Context, command *cli.Command) error {
	poolAddr, err := solana.PublicKeyFromBase58(command.String("address"))
	if err != nil {
		return fmt.Errorf("invalid address specified: %w", err)
	}
	pool, err := App.controller.GetPool(ctx, poolAddr)
	if err != nil {
		return fmt.Errorf("error fetching pool from %s: %w", App.network.Name, err)
	}
	if !App.signer.HasAccount(pool.Manager) && !App.signer.HasAccount(pool.Staker) {
		misc.Warnf(App.logger, "no keys loaded for manager %s or staker %s, only read operations will work", pool.Manager, pool.Staker)
	}
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}
	err = registry.Add(PoolEntry{Name: command.String("name"), Address: poolAddr.String(), Network: App.network.Name})
	if err != nil {
		return err
	}
	if err := SaveRegistry(registry); err != nil {
		return err
	}
	misc.Infof(App.logger, "pool %s (%s) imported", poolAddr, pool.State)
	return nil
}

func PoolForget(ctx context.Context, command *cli.Command) error {
	registry, err := LoadRegistry()
	if err != nil {
		return err
	}
	if !registry.Remove(App.network.Name, command.String("pool")) {
		return fmt.Errorf("pool %q is not registered on %s", command.String("pool"), App.network.Name)
	}
	return SaveRegistry(registry)
}

func PoolMetadata(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	md := &MetadataDefinition{Name: command.String("name"), Symbol: command.String("symbol"), URI: command.String("uri")}
	if err := md.Validate(); err != nil {
		return err
	}
	manager, err := authorityFor(ctx, command, "manager", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Manager })
	if err != nil {
		return err
	}
	mdAddr, err := App.controller.AttachMetadata(ctx, stakepool.MetadataParams{
		Pool:    poolAddr,
		Manager: manager,
		Name:    md.Name,
		Symbol:  md.Symbol,
		URI:     md.URI,
	})
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "metadata for pool %s written to %s", poolAddr, mdAddr)
	return nil
}

func PoolSetFee(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	feeType, err := stakepool.ParseFeeType(command.String("type"))
	if err != nil {
		return err
	}
	manager, err := authorityFor(ctx, command, "manager", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Manager })
	if err != nil {
		return err
	}
	value := command.String("value")
	if feeType.IsReferral() {
		pct, err := strconv.ParseUint(strings.TrimSuffix(value, "%"), 10, 8)
		if err != nil {
			return fmt.Errorf("referral fee must be a whole percent: %w", err)
		}
		err = App.controller.SetReferralFee(ctx, poolAddr, manager, feeType, uint8(pct))
		if err != nil {
			return err
		}
		misc.Infof(App.logger, "%s fee set to %d%%", feeType, pct)
		return nil
	}
	fee, err := stakepool.ParseFee(value)
	if err != nil {
		return err
	}
	err = App.controller.SetFee(ctx, stakepool.FeeParams{Pool: poolAddr, Manager: manager, Type: feeType, Fee: fee})
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "%s fee set to %s", feeType, fee)
	return nil
}

func PoolSetManager(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	manager, err := authorityFor(ctx, command, "manager", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Manager })
	if err != nil {
		return err
	}
	newManager, err := addressFlag(command, "new")
	if err != nil {
		return err
	}
	if err := App.requireSigner("new manager", newManager); err != nil {
		return err
	}
	feeAccount, err := addressFlag(command, "fee-account")
	if err != nil {
		return err
	}
	return App.controller.SetManager(ctx, stakepool.AuthorityParams{
		Pool:          poolAddr,
		Authority:     manager,
		New:           newManager,
		NewFeeAccount: feeAccount,
	})
}

func PoolSetStaker(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	authority, err := authorityFor(ctx, command, "authority", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Staker })
	if err != nil {
		return err
	}
	newStaker, err := addressFlag(command, "new")
	if err != nil {
		return err
	}
	return App.controller.SetStaker(ctx, stakepool.AuthorityParams{Pool: poolAddr, Authority: authority, New: newStaker})
}

func PoolDeposit(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	lamports, err := sol.ParseSolAmount(command.String("amount"))
	if err != nil {
		return err
	}
	funding, err := addressFlag(command, "from")
	if err != nil {
		return err
	}
	if err := App.requireSigner("funding", funding); err != nil {
		return err
	}
	destination, err := addressFlag(command, "to")
	if err != nil {
		return err
	}
	referrer, err := addressFlag(command, "referrer")
	if err != nil {
		return err
	}
	result, err := App.controller.DepositSol(ctx, stakepool.DepositParams{
		Pool:        poolAddr,
		Funding:     funding,
		Destination: destination,
		Referrer:    referrer,
		Lamports:    lamports,
	})
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "deposited %s SOL for %s pool tokens (manager fee:%s, referral fee:%s)",
		sol.FormattedSolAmount(lamports), sol.FormattedSolAmount(result.PoolTokens),
		sol.FormattedSolAmount(result.ManagerFee), sol.FormattedSolAmount(result.ReferralFee))
	return nil
}

func PoolWithdraw(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	// pool tokens use the same 9 decimals as SOL
	tokens, err := sol.ParseSolAmount(command.String("tokens"))
	if err != nil {
		return err
	}
	authority, err := addressFlag(command, "authority")
	if err != nil {
		return err
	}
	if err := App.requireSigner("token owner", authority); err != nil {
		return err
	}
	source, err := addressFlag(command, "from")
	if err != nil {
		return err
	}
	recipient, err := addressFlag(command, "to")
	if err != nil {
		return err
	}
	if recipient.IsZero() {
		recipient = authority
	}
	result, err := App.controller.WithdrawSol(ctx, stakepool.WithdrawParams{
		Pool:       poolAddr,
		Authority:  authority,
		Source:     source,
		Recipient:  recipient,
		PoolTokens: tokens,
	})
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "burned %s pool tokens for %s SOL (manager fee:%s tokens)",
		sol.FormattedSolAmount(tokens), sol.FormattedSolAmount(result.Lamports), sol.FormattedSolAmount(result.ManagerFee))
	return nil
}

func PoolUpdate(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	summary, err := newPoolRefresher(App).refresh(ctx, poolAddr)
	if err != nil {
		return err
	}
	if summary.Balance == nil {
		return nil
	}
	misc.Infof(App.logger, "epoch %d: %d validators refreshed, %d removals finished, %d entries cleaned up",
		summary.Epoch, summary.Refreshed, summary.Finalized, summary.Cleaned)
	misc.Infof(App.logger, "total %s SOL, reward %s SOL, fee %s pool tokens",
		sol.FormattedSolAmount(summary.Balance.TotalLamports), sol.FormattedSolAmount(summary.Balance.Reward),
		sol.FormattedSolAmount(summary.Balance.FeeTokens))
	return nil
}

func poolDecommission(ctx context.Context, command *cli.Command, begin bool) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	pool, err := App.controller.GetPool(ctx, poolAddr)
	if err != nil {
		return err
	}
	manager, err := authorityFor(ctx, command, "manager", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Manager })
	if err != nil {
		return err
	}
	params := stakepool.DecommissionParams{Pool: poolAddr, Manager: manager}
	if !begin {
		if err := App.controller.Decommission(ctx, params); err != nil {
			return err
		}
		misc.Infof(App.logger, "pool %s closed", poolAddr)
		return nil
	}
	if err := App.requireSigner("staker", pool.Staker); err != nil {
		return err
	}
	if y, _ := yesNo(fmt.Sprintf("Pool %s will stop accepting deposits and remove every validator, continue", poolAddr)); y != "y" {
		return nil
	}
	if err := App.controller.BeginDecommission(ctx, params); err != nil {
		return err
	}
	misc.Infof(App.logger, "pool %s is decommissioning, run 'pool update' (or the daemon) until validators are removed", poolAddr)
	return nil
}

func PoolHistory(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	records, err := App.local.History(ctx, poolAddr)
	if err != nil {
		return err
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Seq\tTime\tOperation\tSigners\tAccounts\t")
	for _, record := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t\n", record.Seq, time.Unix(record.Time, 0).UTC().Format(time.RFC3339),
			record.Op, strings.Join(record.Signers, ","), len(record.Accounts))
	}
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

// resolvePool maps the --pool flag to a pool address, trying the local registry first.
func resolvePool(command *cli.Command) (solana.PublicKey, error) {
	ref := command.String("pool")
	registry, err := LoadRegistry()
	if err != nil {
		return solana.PublicKey{}, err
	}
	if entry, found := registry.Find(App.network.Name, ref); found {
		return entry.PublicKey()
	}
	poolAddr, err := solana.PublicKeyFromBase58(ref)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("pool %q is neither a registered pool name nor an address", ref)
	}
	return poolAddr, nil
}

// addressFlag parses an optional address flag, returning the zero key when unset.
func addressFlag(command *cli.Command, name string) (solana.PublicKey, error) {
	value := command.String(name)
	if value == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return pk, fmt.Errorf("invalid --%s address %q: %w", name, value, err)
	}
	return pk, nil
}

// authorityFor reads the named flag, falling back to the pool's current holder of the role, and
// makes sure we can sign for it.
func authorityFor(ctx context.Context, command *cli.Command, flag string, poolAddr solana.PublicKey,
	current func(*stakepool.StakePool) solana.PublicKey) (solana.PublicKey, error) {
	account, err := addressFlag(command, flag)
	if err != nil {
		return account, err
	}
	if account.IsZero() {
		pool, err := App.controller.GetPool(ctx, poolAddr)
		if err != nil {
			return account, err
		}
		account = current(pool)
	}
	return account, App.requireSigner(flag, account)
}
