package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/profiles"
)

func newAddCommand(a *app) *cobra.Command {
	var envPairs []string
	var envFile string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new profile",
		Long: "Create a new profile. The base URL and token are prompted for unless given with --env;\n" +
			"--env-file reads KEY=VALUE lines in dotenv format.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.add(args[0], envPairs, envFile)
		},
	}
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "Set KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Read variables from a dotenv file")
	return cmd
}

func (a *app) add(name string, envPairs []string, envFile string) error {
	name = strings.TrimSpace(name)
	exists, err := a.mgr.Profiles().Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("profile '%s': %w", name, domain.ErrProfileAlreadyExists)
	}

	env := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil {
			return fmt.Errorf("read env file %s: %w", envFile, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	for _, pair := range envPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
		}
		env[strings.TrimSpace(key)] = value
	}

	if env[profiles.KeyBaseURL] == "" {
		value, err := a.prompter.Prompt(profiles.KeyBaseURL)
		if err != nil {
			return err
		}
		env[profiles.KeyBaseURL] = strings.TrimSpace(value)
	}
	if env[profiles.KeyAuthToken] == "" {
		value, err := a.prompter.PromptSecret(profiles.KeyAuthToken)
		if err != nil {
			return err
		}
		env[profiles.KeyAuthToken] = strings.TrimSpace(value)
	}
	if a.opts.interactive {
		for _, key := range profiles.OptionalKeys {
			if _, ok := env[key]; ok {
				continue
			}
			value, err := a.prompter.Prompt(key + " (optional, empty to skip)")
			if err != nil {
				return err
			}
			if value = strings.TrimSpace(value); value != "" {
				env[key] = value
			}
		}
	}

	for key := range env {
		if err := profiles.ValidateEnvKey(key); err != nil {
			return err
		}
	}
	if err := a.mgr.Add(name, profiles.NewDocument(env)); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Profile '%s' added.\n", name)
	return nil
}

func newRemoveCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.remove(args[0], force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func (a *app) remove(name string, force bool) error {
	if !force && a.opts.interactive {
		confirm, err := a.prompter.Confirm(fmt.Sprintf("Remove profile '%s'", name), false)
		if err != nil {
			return err
		}
		if !confirm {
			fmt.Fprintln(a.stdout, "Aborted.")
			return nil
		}
	}
	if err := a.mgr.Remove(name); err != nil {
		if errors.Is(err, domain.ErrActiveProfile) {
			return fmt.Errorf("%w; switch to another profile first", err)
		}
		return err
	}
	fmt.Fprintf(a.stdout, "Profile '%s' removed.\n", strings.TrimSpace(name))
	return nil
}

func newImportCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import-current <name>",
		Short: "Save the live settings.json as a profile and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.ImportCurrent(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Imported %s as profile '%s'.\n", a.mgr.Layout().SettingsPath, strings.TrimSpace(args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing profile")
	return cmd
}

func newRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.Rename(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Renamed profile '%s' to '%s'.\n", args[0], args[1])
			return nil
		},
	}
}

func newEditCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <name>",
		Short: "Open a profile in $EDITOR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path, err := a.mgr.Profiles().Path(name)
			if err != nil {
				return err
			}
			exists, err := a.mgr.Profiles().Exists(name)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("profile '%s': %w", name, domain.ErrProfileNotFound)
			}

			editor := strings.Fields(a.editor())
			if err := a.opts.runner.Run(editor[0], append(editor[1:], path), nil); err != nil {
				return fmt.Errorf("run editor %s: %w", editor[0], err)
			}

			doc, err := a.mgr.Show(name)
			if err != nil {
				return fmt.Errorf("profile is invalid after editing: %w", err)
			}
			if err := doc.Validate(); err != nil {
				fmt.Fprintf(a.stderr, "Warning: %v\n", err)
			}
			fmt.Fprintf(a.stdout, "Profile '%s' saved.\n", strings.TrimSpace(name))
			return nil
		},
	}
}

// editor picks config.yaml's editor, then $VISUAL, then $EDITOR, then vi.
func (a *app) editor() string {
	candidates := []string{a.mgr.Config().Editor, a.opts.getenv("VISUAL"), a.opts.getenv("EDITOR")}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "vi"
}

func newSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <KEY> <VALUE>",
		Short: "Set one environment variable in a profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.SetEnv(args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Set %s in profile '%s'.\n", args[1], args[0])
			return nil
		},
	}
}

func newUnsetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <name> <KEY>",
		Short: "Remove one environment variable from a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.UnsetEnv(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Removed %s from profile '%s'.\n", args[1], args[0])
			return nil
		},
	}
}
