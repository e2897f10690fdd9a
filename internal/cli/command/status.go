package command

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/cli/connection"
)

// StatusCommand queries the status server of a running watch.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the state of a running watch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "status server address (default: metrics.addr)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: status,
	}
}

func status(c *cli.Context) error {
	addr := state(c).cfg.Metrics.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	if addr == "" {
		return cli.Exit("no status address: pass --addr or set metrics.addr", 1)
	}

	st, err := connection.NewHTTPClient(addr, c.Duration("timeout")).Status(c.Context)
	if err != nil {
		return err
	}
	return render(c, st)
}
