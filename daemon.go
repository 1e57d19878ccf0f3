package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
)

var (
	promRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "stakepool",
		Name:      "refresh_total",
		Help:      "pool refresh passes by result",
	}, []string{"pool", "result"})
	promRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "stakepool",
		Name:      "refresh_duration_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)

// Daemon is initialized from the App global set up at process startup but keeps its own copy of
// the registered pools, reloading them every pass so pools added with the CLI get picked up.
type Daemon struct {
	logger      *slog.Logger
	network     string
	refresher   *poolRefresher
	interval    time.Duration
	metricsAddr string

	// embed mutex for locking state for members below the mutex
	sync.RWMutex
	pools []PoolEntry
}

func newDaemon(registry *Registry, interval time.Duration, metricsAddr string, closeDrained bool) *Daemon {
	refresher := newPoolRefresher(App)
	if closeDrained {
		refresher.closeWith = func(manager solana.PublicKey) bool {
			return App.requireSigner("manager", manager) == nil
		}
	}
	return &Daemon{
		logger:      App.logger,
		network:     App.network.Name,
		refresher:   refresher,
		interval:    interval,
		metricsAddr: metricsAddr,
		pools:       registry.ForNetwork(App.network.Name),
	}
}

func (d *Daemon) start(ctx context.Context, wg *sync.WaitGroup) error {
	d.logger.Info("Starting stake pool daemon", "network", d.network, "interval", d.interval.String())

	if d.metricsAddr != "" {
		if err := d.startMetricsServer(ctx, wg); err != nil {
			return err
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.PoolRefresher(ctx)
	}()
	return nil
}

// PoolRefresher refreshes every registered pool at startup and then at each interval boundary.
func (d *Daemon) PoolRefresher(ctx context.Context) {
	defer d.logger.Info("Exiting PoolRefresher")
	d.logger.Info("Starting PoolRefresher")

	epochMinutes := max(int(d.interval.Minutes()), 1)
	d.refreshPools(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(durationToNextEpoch(time.Now(), epochMinutes)):
			// Make sure our pool list is fresh in case the user updated it
			if err := d.refetchConfig(ctx); err != nil {
				misc.Warnf(d.logger, "unable to reload pool registry, using previous: %v", err)
			}
			d.refreshPools(ctx)
		}
	}
}

func (d *Daemon) Pools() []PoolEntry {
	d.RLock()
	defer d.RUnlock()
	return d.pools
}

func (d *Daemon) refreshPools(ctx context.Context) {
	pools := d.Pools()
	if len(pools) == 0 {
		misc.Infof(d.logger, "no pools registered for %s, nothing to refresh", d.network)
		return
	}
	start := time.Now()
	defer func() {
		promRefreshDuration.Observe(time.Since(start).Seconds())
	}()
	for _, entry := range pools {
		if ctx.Err() != nil {
			return
		}
		poolAddr, err := entry.PublicKey()
		if err != nil {
			misc.Errorf(d.logger, "registered pool %s has an invalid address: %v", entry.Name, err)
			continue
		}
		summary, err := d.refresher.refresh(ctx, poolAddr)
		if err != nil {
			promRefreshes.WithLabelValues(entry.Address, "error").Inc()
			d.logger.Error("pool refresh failed", "pool", entry.Name, "address", entry.Address, "error", err)
			continue
		}
		promRefreshes.WithLabelValues(entry.Address, "ok").Inc()
		if summary.Balance == nil {
			continue
		}
		misc.Infof(d.logger, "pool %s epoch:%d refreshed:%d finalized:%d cleaned:%d total:%d reward:%d fee tokens:%d closed:%v",
			entry.Name, summary.Epoch, summary.Refreshed, summary.Finalized, summary.Cleaned,
			summary.Balance.TotalLamports, summary.Balance.Reward, summary.Balance.FeeTokens, summary.Closed)
	}
}

func (d *Daemon) refetchConfig(ctx context.Context) error {
	return repeat.Repeat(
		repeat.Fn(func() error {
			registry, err := LoadRegistry()
			if err != nil {
				return repeat.HintTemporary(err)
			}
			d.Lock()
			d.pools = registry.ForNetwork(d.network)
			d.Unlock()
			return nil
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(10),
		repeat.FnOnError(func(err error) error {
			d.logger.Warn("retrying fetch of pool registry", "error", err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 5 * time.Second,
				MaxDelay:  10 * time.Second,
			}).Set(),
		),
	)
}

func (d *Daemon) startMetricsServer(ctx context.Context, wg *sync.WaitGroup) error {
	listener, err := net.Listen("tcp", d.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics addr [%v]: %w", d.metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			misc.Errorf(d.logger, "metrics server failed: %v", err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	misc.Infof(d.logger, "serving metrics on http://%s/metrics", listener.Addr())
	return nil
}

// durationToNextEpoch returns the time until the next epochMinutes boundary (aligned to the
// start of the day) after curTime. A time exactly on a boundary waits for the following one.
func durationToNextEpoch(curTime time.Time, epochMinutes int) time.Duration {
	epoch := time.Duration(epochMinutes) * time.Minute
	next := curTime.Truncate(epoch).Add(epoch)
	return next.Sub(curTime)
}
