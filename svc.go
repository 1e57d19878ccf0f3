package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run the application as a daemon, refreshing every registered pool each interval",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Refresh interval, passes are aligned to interval boundaries",
				Value:   15 * time.Minute,
				Sources: cli.EnvVars("STAKEPOOL_REFRESH_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "metrics",
				Usage:   "Address to serve prometheus /metrics on. Empty disables it",
				Value:   ":9200",
				Sources: cli.EnvVars("STAKEPOOL_METRICS_ADDR"),
			},
			&cli.BoolFlag{
				Name:  "close-drained",
				Usage: "Decommission pools once all their validators are removed (needs the manager key)",
				Value: false,
			},
		},
		Action: runAsDaemon,
	}
}

func runAsDaemon(ctx context.Context, cmd *cli.Command) error {
	var wg sync.WaitGroup

	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = newDaemon(registry, cmd.Duration("interval"), cmd.String("metrics"), cmd.Bool("close-drained")).start(ctx, &wg)
	if err != nil {
		return err
	}

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}
