package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/mailgun/holster/v4/syncutil"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

const defaultObserveParallelism = 8

// poolRefresher brings a pool's recorded state in line with what the ledger holds: observed
// validator stake, finished removals and the pool balance.
type poolRefresher struct {
	logger     *slog.Logger
	controller *stakepool.Controller
	observer   stakepool.Observer

	parallelism int
	// closeWith, when set, is the manager allowed to close drained decommissioning pools.
	closeWith func(manager solana.PublicKey) bool
}

func newPoolRefresher(app *PoolApp) *poolRefresher {
	return &poolRefresher{
		logger:      app.logger,
		controller:  app.controller,
		observer:    app.observer,
		parallelism: defaultObserveParallelism,
	}
}

type refreshSummary struct {
	Epoch     uint64
	Refreshed int
	Finalized int
	Cleaned   int
	Balance   *stakepool.BalanceResult
	Closed    bool
}

type observation struct {
	active    uint64
	transient uint64
}

func (r *poolRefresher) refresh(ctx context.Context, poolAddr solana.PublicKey) (*refreshSummary, error) {
	pool, _, err := r.controller.LoadState(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	if pool.State == stakepool.StateClosed || pool.State == stakepool.StateUninitialized {
		misc.Debugf(r.logger, "pool %s is %s, nothing to refresh", poolAddr, pool.State)
		return &refreshSummary{}, nil
	}
	summary, err := r.refreshValidators(ctx, poolAddr)
	if err != nil {
		return nil, err
	}

	// reload, the validator updates changed the list
	pool, list, err := r.controller.LoadState(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	reserve, err := r.observer.ReserveBalance(ctx, poolAddr, pool)
	if err != nil {
		return nil, fmt.Errorf("reading reserve of pool %s: %w", poolAddr, err)
	}
	summary.Balance, err = r.controller.UpdatePoolBalance(ctx, stakepool.BalanceParams{
		Pool:            poolAddr,
		Epoch:           summary.Epoch,
		ReserveLamports: reserve,
	})
	if err != nil {
		return nil, err
	}

	switch pool.State {
	case stakepool.StateActive:
		summary.Cleaned, err = r.controller.CleanupRemovedValidators(ctx, poolAddr)
		if err != nil {
			return nil, err
		}
	case stakepool.StateDecommissioning:
		if !list.AllReadyForRemoval() {
			break
		}
		if r.closeWith == nil || !r.closeWith(pool.Manager) {
			misc.Infof(r.logger, "pool %s has drained and can be decommissioned by its manager %s", poolAddr, pool.Manager)
			break
		}
		err = r.controller.Decommission(ctx, stakepool.DecommissionParams{Pool: poolAddr, Manager: pool.Manager})
		if err != nil {
			return nil, err
		}
		summary.Closed = true
	}
	return summary, nil
}

// refreshValidators records observed stake for every entry that changed and finalizes removals
// whose transient stake has drained.
func (r *poolRefresher) refreshValidators(ctx context.Context, poolAddr solana.PublicKey) (*refreshSummary, error) {
	epoch, err := r.observer.CurrentEpoch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching current epoch: %w", err)
	}
	_, list, err := r.controller.LoadState(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	observed, err := r.observeAll(ctx, poolAddr, list)
	if err != nil {
		return nil, err
	}

	summary := &refreshSummary{Epoch: epoch}
	for i, info := range list.Validators {
		if info.Status == stakepool.StatusReadyForRemoval {
			continue
		}
		seen := observed[i]
		if seen.active != info.ActiveStakeLamports || seen.transient != info.TransientStakeLamports || epoch > info.LastUpdateEpoch {
			err = r.controller.RefreshValidatorStake(ctx, stakepool.ValidatorParams{
				Pool:      poolAddr,
				Vote:      info.VoteAccount,
				Lamports:  seen.active,
				Transient: seen.transient,
				Epoch:     epoch,
			})
			if err != nil {
				return nil, err
			}
			summary.Refreshed++
		}
		if info.Status == stakepool.StatusDeactivatingTransient && seen.transient == 0 {
			err = r.controller.FinalizeRemoveValidator(ctx, stakepool.ValidatorParams{Pool: poolAddr, Vote: info.VoteAccount})
			if err != nil {
				return nil, err
			}
			misc.Infof(r.logger, "validator %s removal finished for pool %s", info.VoteAccount, poolAddr)
			summary.Finalized++
		}
	}
	return summary, nil
}

// observeAll reads the stake of every list entry in parallel. Results are indexed like the list.
func (r *poolRefresher) observeAll(ctx context.Context, poolAddr solana.PublicKey, list *stakepool.ValidatorList) ([]observation, error) {
	var (
		fanOut   = syncutil.NewFanOut(max(r.parallelism, 1))
		observed = make([]observation, list.Len())
	)
	for i, info := range list.Validators {
		fanOut.Run(func(val any) error {
			idx := val.(int)
			active, transient, err := r.observer.ObserveValidatorStake(ctx, poolAddr, info)
			if err != nil {
				return fmt.Errorf("observing stake for validator %s: %w", info.VoteAccount, err)
			}
			observed[idx] = observation{active: active, transient: transient}
			return nil
		}, i)
	}
	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}
	return observed, nil
}
