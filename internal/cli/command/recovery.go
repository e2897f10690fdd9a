package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/storage/recovery"
)

// RecoveryCommand returns the recovery subcommand group.
func RecoveryCommand() *cli.Command {
	return &cli.Command{
		Name:  "recovery",
		Usage: "Inspect and purge crash recovery records",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recovery records left by interrupted sessions",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: recoveryList,
			},
			{
				Name:   "summary",
				Usage:  "Count recovery records by kind",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: recoverySummary,
			},
			{
				Name:      "clear",
				Usage:     "Delete one recovery record",
				ArgsUsage: "ID",
				Flags:     []cli.Flag{baseDirFlag()},
				Action:    recoveryClear,
			},
			{
				Name:   "clear-all",
				Usage:  "Delete every recovery record",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: recoveryClearAll,
			},
			{
				Name:  "cleanup",
				Usage: "Delete records older than --max-age",
				Flags: []cli.Flag{
					baseDirFlag(),
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "age threshold (default: recovery.max_age)",
					},
				},
				Action: recoveryCleanup,
			},
		},
	}
}

// openLedger initializes the ledger of --base-dir.
func openLedger(c *cli.Context) (*recovery.Ledger, error) {
	dir, err := baseDir(c)
	if err != nil {
		return nil, err
	}
	ledger := recovery.NewLedger(
		recovery.WithLogger(state(c).log),
		recovery.WithErrorReporter(func(err error) {
			fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", err)
		}),
	)
	if err := ledger.Initialize(dir); err != nil {
		return nil, err
	}
	return ledger, nil
}

func recoveryList(c *cli.Context) error {
	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	records, err := ledger.List()
	if err != nil {
		return err
	}
	return render(c, records)
}

func recoverySummary(c *cli.Context) error {
	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	summary, err := ledger.Summary()
	if err != nil {
		return err
	}
	return render(c, summary)
}

func recoveryClear(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return domain.ErrMissingArgument.WithDetails("record ID")
	}
	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	if err := ledger.Clear(domain.RecoveryRecord{ID: id}); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "Recovery record %s cleared\n", id)
	return nil
}

func recoveryClearAll(c *cli.Context) error {
	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	if err := ledger.ClearAll(); err != nil {
		return err
	}
	fmt.Fprintln(writer(c), "All recovery records cleared")
	return nil
}

func recoveryCleanup(c *cli.Context) error {
	maxAge := state(c).cfg.Recovery.MaxAge
	if c.IsSet("max-age") {
		maxAge = c.Duration("max-age")
	}

	ledger, err := openLedger(c)
	if err != nil {
		return err
	}
	n, err := ledger.CleanupOlderThan(maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "Removed %d recovery record(s) older than %s\n", n, maxAge)
	return nil
}
