package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/ccm/internal/ccm/config"
)

// Runner starts external programs such as the editor or the assistant.
type Runner interface {
	Run(name string, args []string, env []string) error
}

type execRunner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (r execRunner) Run(name string, args []string, env []string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Env = append(os.Environ(), env...)
	return cmd.Run()
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run [-- args...]",
		Short: "Launch Claude Code with the current settings",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, set, err := a.mgr.Current()
			if err != nil {
				return err
			}
			if !set {
				fmt.Fprintln(a.stderr, "Warning: no current profile; using settings.json as is.")
			} else {
				a.mgr.Logger().Debug("launching assistant", "profile", name)
			}
			binary := a.mgr.Config().ClaudeBinary
			if err := a.opts.runner.Run(binary, args, nil); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return fmt.Errorf("%s exited with status %d", binary, exitErr.ExitCode())
				}
				return fmt.Errorf("run %s: %w", binary, err)
			}
			return nil
		},
	}
}

const pruneCancel = "Cancel"

func newPruneCommand(a *app) *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune-backups",
		Short: "Remove outdated backup files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := a.mgr.Config().BackupRetention
			var choice string
			switch {
			case olderThanStr != "":
				choice = olderThanStr
			case a.opts.interactive:
				options := []string{retention}
				for _, o := range []string{"30d", "90d", "180d"} {
					if o != retention {
						options = append(options, o)
					}
				}
				options = append(options, pruneCancel)
				_, selected, err := a.prompter.Select("Prune backups older than", options, retention)
				if err != nil {
					return err
				}
				if selected == pruneCancel {
					fmt.Fprintln(a.stdout, "Prune cancelled.")
					return nil
				}
				choice = selected
			default:
				choice = retention
			}

			duration, err := config.ParseRetentionInterval(choice)
			if err != nil {
				return err
			}

			if !force {
				if !a.opts.interactive {
					return fmt.Errorf("prune-backups: %w (use --force)", errNotInteractive)
				}
				confirm, err := a.prompter.Confirm(fmt.Sprintf("Delete backups older than %s", formatDuration(duration)), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(a.stdout, "Prune cancelled.")
					return nil
				}
			}

			count, err := a.mgr.PruneBackups(duration)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Deleted %d backup(s).\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "", "Delete backups older than the specified duration (e.g. 30d)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}

func formatDuration(d time.Duration) string {
	day := 24 * time.Hour
	if d >= day && d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}
