// Package command defines the snapkeep command tree on urfave/cli/v2.
//
//	snapkeep watch --project FILE     autosave a project until interrupted
//	snapkeep backup ...               inspect and restore autosave backups
//	snapkeep recovery ...             inspect and purge recovery records
//	snapkeep status                   query the status server of a watch
//	snapkeep config show              print the effective configuration
//	snapkeep version                  print build information
package command
