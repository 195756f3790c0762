package cmd

import (
	"github.com/joeycumines/go-tickloop/internal/console"
	"github.com/joeycumines/go-tickloop/loop"
	"github.com/spf13/cobra"
)

func newLoopTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "looptest",
		Short: "Drive an update loop from stdin",
		Long: `Reads commands from stdin, see the console package for the full list:

  add NAME CHUNK   add a printing module
  adp NAME CHUNK   add a module that pauses until the next command
  s / e            start or stop the loop
  q                stop the loop and quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.newLoop()
			if err != nil {
				return err
			}
			err = console.New(l, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
			if m := l.Metrics(); m.Ticks != 0 {
				a.logger.Info().
					Uint64("ticks", m.Ticks).
					Uint64("tasks", m.Tasks).
					Uint64("faults", m.Faults).
					Dur("p99", m.TickLatency.P99).
					Log("looptest: finished")
			}
			return err
		},
	}
}

func (a *app) newLoop() (*loop.Loop, error) {
	opts := []loop.Option{
		loop.WithLogger(a.logger),
		loop.WithTickInterval(a.cfg.Loop.TickInterval()),
		loop.WithMetrics(a.cfg.Loop.Metrics),
		loop.WithFaultLogRate(a.cfg.Loop.FaultLogRateMap()),
	}
	if a.cfg.Loop.Workers > 0 {
		opts = append(opts, loop.WithWorkers(a.cfg.Loop.Workers))
	}
	return loop.New(opts...)
}
