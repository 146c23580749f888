package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/example/ccm/internal/ccm"
	"github.com/example/ccm/internal/ccm/config"
)

// promptResolver shows the divergence and asks the user how to proceed.
type promptResolver struct {
	prompter     Prompter
	out          io.Writer
	settingsPath string
	interactive  bool
}

func (r *promptResolver) Resolve(c ccm.Conflict) (ccm.Decision, error) {
	renderComparison(r.out, c.Current, r.settingsPath, c.Stored, c.Live, c.Comparison, false)
	if !r.interactive {
		fmt.Fprintln(r.out, "No terminal attached; use --on-conflict to choose a resolution.")
		return ccm.DecisionCancel, nil
	}

	settingsName := filepath.Base(r.settingsPath)
	options := []string{
		fmt.Sprintf("Switch to '%s' and discard the changes in %s", c.Target, settingsName),
		fmt.Sprintf("Update '%s' with %s, then switch to '%s'", c.Current, settingsName, c.Target),
		"Cancel",
	}
	decisions := []ccm.Decision{ccm.DecisionDirect, ccm.DecisionAbsorb, ccm.DecisionCancel}

	label := fmt.Sprintf("%s has changed since '%s' was applied", settingsName, c.Current)
	idx, _, err := r.prompter.Select(label, options, options[2])
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return ccm.DecisionCancel, nil
		}
		return ccm.DecisionCancel, err
	}
	if idx < 0 || idx >= len(decisions) {
		return ccm.DecisionCancel, nil
	}
	return decisions[idx], nil
}

// newResolver picks the resolver for an on_conflict policy.
func newResolver(policy string, prompter Prompter, out io.Writer, settingsPath string, interactive bool) (ccm.Resolver, error) {
	if err := config.ValidateOnConflict(policy); err != nil {
		return nil, err
	}
	if decision, ok := ccm.DecisionForPolicy(policy); ok {
		return ccm.FixedResolver(decision), nil
	}
	return &promptResolver{
		prompter:     prompter,
		out:          out,
		settingsPath: settingsPath,
		interactive:  interactive,
	}, nil
}
