package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/example/ccm/internal/ccm"
	"github.com/example/ccm/internal/ccm/config"
	"github.com/example/ccm/internal/ccm/paths"
	"github.com/example/ccm/internal/cli"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], paths.OSEnv(), cli.IsTerminal(os.Stdin), os.Stdout, os.Stderr))
}

// run executes one ccm invocation and returns the process exit code.
func run(args []string, env paths.Env, interactive bool, stdout, stderr io.Writer) int {
	fs := afero.NewOsFs()

	configDir, err := paths.ResolveConfigDir(env)
	if err != nil {
		fmt.Fprintf(stderr, "Error: resolve config directory: %v\n", err)
		return 1
	}
	cfg, err := config.Load(fs, (paths.Layout{ConfigDir: configDir}).ConfigPath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	layout, err := paths.Resolve(env, cfg.SettingsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: resolve settings path: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger, closeLog := newLogger(stderr, level, cfg.LogFile)
	defer closeLog()

	mgr, err := ccm.NewManager(fs, layout, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	root := cli.NewRootCommand(mgr, cli.NewPromptUIWithIO(os.Stdin, stdout), stdout, stderr,
		cli.WithInteractive(interactive),
		cli.WithLogLevel(level))
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
