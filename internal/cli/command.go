package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/ccm/internal/ccm"
	"github.com/example/ccm/internal/ccm/profiles"
)

// Option customizes the command tree.
type Option func(*options)

type options struct {
	interactive bool
	runner      Runner
	level       *slog.LevelVar
	getenv      func(string) string
}

// WithInteractive overrides terminal detection.
func WithInteractive(interactive bool) Option {
	return func(o *options) { o.interactive = interactive }
}

// WithRunner replaces the launcher for the editor and the assistant.
func WithRunner(r Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithLogLevel lets --verbose lower the level of an existing logger.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(o *options) { o.level = level }
}

// WithGetenv replaces the environment lookup used for $EDITOR and $VISUAL.
func WithGetenv(getenv func(string) string) Option {
	return func(o *options) { o.getenv = getenv }
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// app carries the collaborators shared by every command.
type app struct {
	mgr      *ccm.Manager
	prompter Prompter
	stdout   io.Writer
	stderr   io.Writer
	opts     options
}

// NewRootCommand constructs the root Cobra command for ccm.
func NewRootCommand(mgr *ccm.Manager, prompter Prompter, stdout, stderr io.Writer, opts ...Option) *cobra.Command {
	a := &app{
		mgr:      mgr,
		prompter: prompter,
		stdout:   stdout,
		stderr:   stderr,
		opts: options{
			interactive: IsTerminal(os.Stdin),
			runner:      execRunner{stdin: os.Stdin, stdout: stdout, stderr: stderr},
			getenv:      os.Getenv,
		},
	}
	for _, opt := range opts {
		opt(&a.opts)
	}

	var verbose bool
	cmd := &cobra.Command{
		Use:           "ccm",
		Short:         "Claude Code profile manager",
		Long:          "ccm stores named Claude Code environment profiles and switches settings.json between them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose && a.opts.level != nil {
				a.opts.level.Set(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.opts.interactive {
				return cmd.Help()
			}
			return a.menu()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.AddCommand(newAddCommand(a))
	cmd.AddCommand(newListCommand(a))
	cmd.AddCommand(newShowCommand(a))
	cmd.AddCommand(newCurrentCommand(a))
	cmd.AddCommand(newRemoveCommand(a))
	cmd.AddCommand(newSwitchCommand(a))
	cmd.AddCommand(newSyncCommand(a))
	cmd.AddCommand(newDiffCommand(a))
	cmd.AddCommand(newImportCommand(a))
	cmd.AddCommand(newRenameCommand(a))
	cmd.AddCommand(newEditCommand(a))
	cmd.AddCommand(newSetCommand(a))
	cmd.AddCommand(newUnsetCommand(a))
	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newPruneCommand(a))

	return cmd
}

const (
	menuSwitch = "Switch profile"
	menuList   = "List profiles"
	menuAdd    = "Add profile"
	menuSync   = "Sync current profile from settings.json"
	menuDiff   = "Show differences"
	menuRemove = "Remove profile"
	menuQuit   = "Quit"
)

func (a *app) menu() error {
	items := []string{menuSwitch, menuList, menuAdd, menuSync, menuDiff, menuRemove, menuQuit}
	_, choice, err := a.prompter.Select("What would you like to do?", items, menuSwitch)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return nil
		}
		return err
	}

	switch choice {
	case menuSwitch:
		return a.switchTo("", "")
	case menuList:
		return a.list()
	case menuAdd:
		name, err := a.prompter.Prompt("Profile name")
		if err != nil {
			return err
		}
		return a.add(name, nil, "")
	case menuSync:
		return a.sync()
	case menuDiff:
		return a.diff("", false)
	case menuRemove:
		name, err := a.selectProfile("Select profile to remove")
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				fmt.Fprintln(a.stdout, "Aborted.")
				return nil
			}
			return err
		}
		return a.remove(name, false)
	}
	return nil
}

// selectProfile asks the user to pick a stored profile, current first.
func (a *app) selectProfile(label string) (string, error) {
	if !a.opts.interactive {
		return "", errNotInteractive
	}
	names, err := a.mgr.Profiles().List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no profiles stored in %s", a.mgr.Profiles().Dir())
	}
	current, _, err := a.mgr.Current()
	if err != nil {
		return "", err
	}
	names = reorderWithDefault(names, current)
	_, selected, err := a.prompter.Select(label, names, current)
	if err != nil {
		return "", err
	}
	return selected, nil
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.list()
		},
	}
}

func (a *app) list() error {
	entries, err := a.mgr.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No profiles found. Use 'ccm add' or 'ccm import-current' to create one.")
		return nil
	}
	th := newTheme(a.stdout)
	for _, entry := range entries {
		switch {
		case entry.Missing:
			fmt.Fprintln(a.stdout, th.warning.Render(fmt.Sprintf("! %s (current, missing)", entry.Name)))
		case entry.Current && entry.Modified:
			fmt.Fprintln(a.stdout, th.current.Render(fmt.Sprintf("* %s (current, modified)", entry.Name)))
		case entry.Current:
			fmt.Fprintln(a.stdout, th.current.Render(fmt.Sprintf("* %s (current)", entry.Name)))
		default:
			fmt.Fprintf(a.stdout, "  %s\n", entry.Name)
		}
	}
	return nil
}

func newShowCommand(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.mgr.Show(args[0])
			if err != nil {
				return err
			}
			if !reveal {
				doc = maskedDocument(doc)
			}
			data, err := doc.Marshal()
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print "+profiles.KeyAuthToken+" unmasked")
	return cmd
}

func newCurrentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current profile name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, set, err := a.mgr.Current()
			if err != nil {
				return err
			}
			if !set {
				fmt.Fprintln(a.stdout, "No current profile.")
				return nil
			}
			fmt.Fprintln(a.stdout, name)
			return nil
		},
	}
}

func newDiffCommand(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "diff [name]",
		Short: "Compare a profile (default: current) with settings.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return a.diff(name, reveal)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print "+profiles.KeyAuthToken+" unmasked")
	return cmd
}

func (a *app) diff(name string, reveal bool) error {
	report, err := a.mgr.Diff(name)
	if err != nil {
		return err
	}
	if report.Comparison.Equal() {
		fmt.Fprintf(a.stdout, "Profile '%s' matches %s.\n", report.Profile, a.mgr.Layout().SettingsPath)
		return nil
	}
	renderComparison(a.stdout, report.Profile, a.mgr.Layout().SettingsPath, report.Stored, report.Live, report.Comparison, reveal)
	return nil
}

// reorderWithDefault moves the default value to the front of the list.
// If defaultValue is empty or not found, or already first, returns items unchanged.
func reorderWithDefault(items []string, defaultValue string) []string {
	if defaultValue == "" {
		return items
	}
	idx := -1
	for i, item := range items {
		if item == defaultValue {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return items
	}
	reordered := make([]string, 0, len(items))
	reordered = append(reordered, defaultValue)
	reordered = append(reordered, items[:idx]...)
	reordered = append(reordered, items[idx+1:]...)
	return reordered
}
