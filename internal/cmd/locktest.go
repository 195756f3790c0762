package cmd

import (
	"github.com/joeycumines/go-tickloop/internal/lockscript"
	"github.com/spf13/cobra"
)

func newLockTestCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locktest",
		Short: "Run lock scripts read from stdin",
		Long: `Reads a lock script from stdin, see the lockscript package for the
full language:

  c              clear the pending threads
  n <cmd>... d   define a thread, e.g. "n l 0 s 10 u 0 d"
  s              run the pending threads, printing each lock event
  q              quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Debug().
				Dur("default_sleep", a.cfg.LockTest.DefaultSleep()).
				Log("locktest: starting")
			return lockscript.NewSession(
				cmd.InOrStdin(),
				cmd.OutOrStdout(),
				lockscript.WithDefaultSleep(a.cfg.LockTest.DefaultSleep()),
			).Run(cmd.Context())
		},
	}
}
