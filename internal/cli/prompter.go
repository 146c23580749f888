package cli

// Prompter is the interactive input surface used by commands.
type Prompter interface {
	Select(label string, items []string, defaultValue string) (int, string, error)
	Prompt(label string) (string, error)
	// PromptSecret reads a value without echoing it.
	PromptSecret(label string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
