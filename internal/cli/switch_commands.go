package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/ccm/internal/ccm"
	"github.com/example/ccm/internal/ccm/domain"
)

func newSwitchCommand(a *app) *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:     "switch [name]",
		Aliases: []string{"swc"},
		Short:   "Make a profile current and write it to settings.json",
		Long: "Make a profile current and write it to settings.json.\n\n" +
			"When settings.json was edited since the current profile was applied, ccm shows the\n" +
			"differences and asks whether to discard them, save them into the current profile\n" +
			"first, or cancel. --on-conflict answers that question up front.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return a.switchTo(name, policy)
		},
	}
	cmd.Flags().StringVar(&policy, "on-conflict", "", "prompt, switch, absorb or cancel (default from config.yaml)")
	return cmd
}

func (a *app) switchTo(name, policy string) error {
	if name == "" {
		selected, err := a.selectProfile("Select profile to switch to")
		if err != nil {
			if errors.Is(err, ErrPromptCancelled) {
				fmt.Fprintln(a.stdout, "Switch operation cancelled.")
				return nil
			}
			return err
		}
		name = selected
	}
	if policy == "" {
		policy = a.mgr.Config().OnConflict
	}
	resolver, err := newResolver(strings.ToLower(policy), a.prompter, a.stdout, a.mgr.Layout().SettingsPath, a.opts.interactive)
	if err != nil {
		return err
	}

	outcome, err := a.mgr.Switch(name, resolver)
	if errors.Is(err, domain.ErrCancelledByUser) {
		fmt.Fprintln(a.stdout, "Switch operation cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	if outcome.Decision == ccm.DecisionAbsorb {
		fmt.Fprintf(a.stdout, "Updated profile '%s' with changes from %s.\n",
			outcome.Previous, filepath.Base(a.mgr.Layout().SettingsPath))
	}
	fmt.Fprintf(a.stdout, "Switched to profile: %s\n", outcome.Target)
	return nil
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Save edits made to settings.json into the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sync()
		},
	}
}

func (a *app) sync() error {
	outcome, err := a.mgr.Sync()
	if err != nil {
		return err
	}
	switch outcome.Status {
	case ccm.SyncNothing:
		fmt.Fprintf(a.stdout, "Nothing to sync: %s.\n", outcome.Reason)
	case ccm.SyncAlreadyInSync:
		fmt.Fprintf(a.stdout, "Profile '%s' is already in sync.\n", outcome.Profile)
	case ccm.SyncUpdated:
		renderComparison(a.stdout, outcome.Profile, a.mgr.Layout().SettingsPath,
			outcome.Stored, outcome.Live, outcome.Comparison, false)
		fmt.Fprintf(a.stdout, "Updated profile '%s' from %s.\n",
			outcome.Profile, filepath.Base(a.mgr.Layout().SettingsPath))
	}
	return nil
}
