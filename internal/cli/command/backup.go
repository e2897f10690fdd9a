package command

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/core/domain"
	"github.com/yndnr/snapkeep/internal/infra/fsutil"
	"github.com/yndnr/snapkeep/internal/storage/autosave"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Inspect and restore autosave backups",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List backups, oldest first",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: backupList,
			},
			{
				Name:   "latest",
				Usage:  "Show the newest backup",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: backupLatest,
			},
			{
				Name:      "restore",
				Usage:     "Copy a backup (default: newest) to a file",
				ArgsUsage: "[ID]",
				Flags: []cli.Flag{
					baseDirFlag(),
					&cli.StringFlag{
						Name:     "to",
						Usage:    "destination file",
						Required: true,
					},
				},
				Action: backupRestore,
			},
			{
				Name:   "clear",
				Usage:  "Delete every backup of the project",
				Flags:  []cli.Flag{baseDirFlag()},
				Action: backupClear,
			},
		},
	}
}

func backupList(c *cli.Context) error {
	dir, err := baseDir(c)
	if err != nil {
		return err
	}
	infos, err := autosave.ListBackups(dir)
	if err != nil {
		return err
	}
	return render(c, infos)
}

func backupLatest(c *cli.Context) error {
	dir, err := baseDir(c)
	if err != nil {
		return err
	}
	info, err := autosave.LatestBackup(dir)
	if err != nil {
		return err
	}
	return render(c, info)
}

func backupRestore(c *cli.Context) error {
	dir, err := baseDir(c)
	if err != nil {
		return err
	}

	var info domain.BackupInfo
	if id := c.Args().First(); id != "" {
		info, err = autosave.FindBackup(dir, id)
	} else {
		info, err = autosave.LatestBackup(dir)
	}
	if err != nil {
		return err
	}

	var content json.RawMessage
	if err := autosave.LoadBackup(info.Path, &content); err != nil {
		return err
	}

	dest, err := filepath.Abs(c.String("to"))
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	if _, err := fsutil.WriteAtomic(filepath.Dir(dest), filepath.Base(dest), ".restore-*.tmp", content, 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", info.ID, err)
	}

	state(c).log.Info("backup restored", "id", info.ID, "path", dest)
	fmt.Fprintf(writer(c), "Restored backup %s to %s\n", info.ID, dest)
	return nil
}

func backupClear(c *cli.Context) error {
	dir, err := baseDir(c)
	if err != nil {
		return err
	}
	if err := autosave.RemoveBackups(dir); err != nil {
		return err
	}
	fmt.Fprintf(writer(c), "Backups cleared in %s\n", autosave.Dir(dir))
	return nil
}
