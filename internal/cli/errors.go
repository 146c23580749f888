package cli

import "errors"

// ErrPromptCancelled indicates that the user aborted an interactive prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

// errNotInteractive is returned when a command needs input but stdin is not
// a terminal.
var errNotInteractive = errors.New("no terminal attached; pass the value as an argument or flag")
