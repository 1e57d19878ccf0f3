package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/manifoldco/promptui"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/sol"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func voteFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "vote",
		Usage:    "Vote account of the validator",
		Required: true,
	}
}

func stakerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "staker",
		Usage: "Staker account signing the change. Defaults to the pool's current staker",
	}
}

func GetValidatorCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "validator",
		Aliases: []string{"v"},
		Usage:   "Manage the validators a pool delegates to",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List the validator list of a pool",
				Flags:   []cli.Flag{poolFlag()},
				Action:  ValidatorsList,
			},
			{
				Name:  "add",
				Usage: "Add a validator to the pool",
				Flags: []cli.Flag{
					poolFlag(),
					voteFlag(),
					stakerFlag(),
					&cli.StringFlag{
						Name:  "stake",
						Usage: "SOL to record as the validator's initial stake",
						Value: "0",
					},
				},
				Action: ValidatorAdd,
			},
			{
				Name:   "remove",
				Usage:  "Start removing a validator. Its stake deactivates over the next epoch",
				Flags:  []cli.Flag{poolFlag(), voteFlag(), stakerFlag()},
				Action: ValidatorRemove,
			},
			{
				Name:   "finalize",
				Usage:  "Finish removing a validator whose stake has deactivated",
				Flags:  []cli.Flag{poolFlag(), voteFlag()},
				Action: ValidatorFinalize,
			},
			{
				Name:   "refresh",
				Usage:  "Record the currently observed stake of every validator",
				Flags:  []cli.Flag{poolFlag()},
				Action: ValidatorsRefresh,
			},
			{
				Name:   "cleanup",
				Usage:  "Drop validators whose removal finished from the list",
				Flags:  []cli.Flag{poolFlag()},
				Action: ValidatorsCleanup,
			},
		},
	}
}

func ValidatorsList(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	_, list, err := App.controller.LoadState(ctx, poolAddr)
	if err != nil {
		return err
	}
	out := new(strings.Builder)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tVote Account\tStatus\tActive SOL\tTransient SOL\tLast Epoch\t")
	for i, info := range list.Validators {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t\n", i+1, info.VoteAccount, info.Status,
			sol.FormattedSolAmount(info.ActiveStakeLamports), sol.FormattedSolAmount(info.TransientStakeLamports),
			info.LastUpdateEpoch)
	}
	fmt.Fprintf(tw, "Total: %s SOL, %d of %d slots used\t\n", sol.FormattedSolAmount(list.TotalLamports()), list.Len(), list.MaxValidators)
	tw.Flush()
	fmt.Print(out.String())
	return nil
}

func ValidatorAdd(ctx context.Context, command *cli.Command) error {
	params, err := validatorParams(ctx, command, true)
	if err != nil {
		return err
	}
	params.Lamports, err = sol.ParseSolAmount(command.String("stake"))
	if err != nil {
		return err
	}
	if err := App.controller.AddValidator(ctx, params); err != nil {
		return err
	}
	misc.Infof(App.logger, "validator %s added to pool %s", params.Vote, params.Pool)
	return nil
}

func ValidatorRemove(ctx context.Context, command *cli.Command) error {
	params, err := validatorParams(ctx, command, true)
	if err != nil {
		return err
	}
	if err := App.controller.BeginRemoveValidator(ctx, params); err != nil {
		return err
	}
	misc.Infof(App.logger, "removal of validator %s started, finalize once its stake has deactivated", params.Vote)
	return nil
}

func ValidatorFinalize(ctx context.Context, command *cli.Command) error {
	params, err := validatorParams(ctx, command, false)
	if err != nil {
		return err
	}
	_, list, err := App.controller.LoadState(ctx, params.Pool)
	if err != nil {
		return err
	}
	info, err := list.Get(params.Vote)
	if err != nil {
		return err
	}
	// record what the ledger holds now so the drained transient stake is visible
	params.Lamports, params.Transient, err = App.observer.ObserveValidatorStake(ctx, params.Pool, info)
	if err != nil {
		return err
	}
	if err := App.controller.RefreshValidatorStake(ctx, params); err != nil {
		return err
	}
	if params.Transient != 0 {
		return fmt.Errorf("validator %s still has %s SOL deactivating, try again next epoch",
			params.Vote, sol.FormattedSolAmount(params.Transient))
	}
	if err := App.controller.FinalizeRemoveValidator(ctx, params); err != nil {
		return err
	}
	misc.Infof(App.logger, "validator %s is ready for removal, 'validator cleanup' drops it from the list", params.Vote)
	return nil
}

func ValidatorsRefresh(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	summary, err := newPoolRefresher(App).refreshValidators(ctx, poolAddr)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "epoch %d: %d validators refreshed, %d removals finished", summary.Epoch, summary.Refreshed, summary.Finalized)
	return nil
}

func ValidatorsCleanup(ctx context.Context, command *cli.Command) error {
	poolAddr, err := resolvePool(command)
	if err != nil {
		return err
	}
	dropped, err := App.controller.CleanupRemovedValidators(ctx, poolAddr)
	if err != nil {
		return err
	}
	misc.Infof(App.logger, "%d removed validators dropped from the list", dropped)
	return nil
}

// validatorParams collects pool, vote, epoch and (optionally) the staker from the command flags.
func validatorParams(ctx context.Context, command *cli.Command, withStaker bool) (stakepool.ValidatorParams, error) {
	var params stakepool.ValidatorParams
	poolAddr, err := resolvePool(command)
	if err != nil {
		return params, err
	}
	params.Pool = poolAddr
	params.Vote, err = solana.PublicKeyFromBase58(command.String("vote"))
	if err != nil {
		return params, fmt.Errorf("invalid vote account: %w", err)
	}
	if withStaker {
		params.Staker, err = authorityFor(ctx, command, "staker", poolAddr, func(p *stakepool.StakePool) solana.PublicKey { return p.Staker })
		if err != nil {
			return params, err
		}
	}
	params.Epoch, err = App.observer.CurrentEpoch(ctx)
	return params, err
}

func getInt(prompt string, defVal int, minVal int, maxVal int) (int, error) {
	validate := func(input string) error {
		value, err := strconv.Atoi(input)
		if err != nil {
			return err
		}
		if value < minVal || value > maxVal {
			return fmt.Errorf("value must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
	result, err := (&promptui.Prompt{
		Label:    prompt,
		Default:  strconv.Itoa(defVal),
		Validate: validate,
	}).Run()
	if err != nil {
		return 0, err
	}
	value, _ := strconv.Atoi(result)
	return value, nil
}

func getString(prompt string, defVal string, validate promptui.ValidateFunc) (string, error) {
	result, err := (&promptui.Prompt{
		Label:    prompt,
		Default:  defVal,
		Validate: validate,
	}).Run()
	return strings.TrimSpace(result), err
}

func getAddress(prompt string, defVal string) (string, error) {
	return getString(prompt, defVal, func(s string) error {
		_, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
		return err
	})
}

func getFee(prompt string, defVal string) (string, error) {
	return getString(prompt, defVal, func(s string) error {
		fee, err := stakepool.ParseFee(s)
		if err != nil {
			return err
		}
		return fee.Validate()
	})
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
