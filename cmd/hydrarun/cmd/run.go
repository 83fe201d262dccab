package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/proxsoc/hydra-runner/internal/profile"
	"github.com/proxsoc/hydra-runner/internal/runner"
	"github.com/proxsoc/hydra-runner/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run [-- orchestrator args...]",
	Short: "Trigger one run of the orchestrator",
	Long: `Trigger one run of the Hydra orchestrator.

All arguments after the command name are forwarded verbatim to the
orchestrator (--nmap, --ms365, discovery ...). Two flags are consumed
here instead of being forwarded:

  --interactive, -i   run in the foreground, attached to the terminal,
                      without taking the lock or writing audit entries
  --profile NAME      expand a named argument profile from profiles.yaml

Background runs (the default, and what cron should call) take a
non-blocking lock; if another run holds it this command exits 0 without
doing anything.`,
	// Orchestrator flags are opaque to us; parse nothing, forward everything.
	DisableFlagParsing: true,
	RunE:               runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	// DisableFlagParsing also swallows --help, so handle it ourselves
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return cmd.Help()
		}
	}

	args, profileName, err := extractProfile(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if profileName != "" {
		profiles, err := profile.Load(cfg.ProfilesPath())
		if err != nil {
			return err
		}
		expanded, err := profiles.Expand(profileName)
		if err != nil {
			return err
		}
		args = append(expanded, args...)
	}

	_, interactive := runner.ExtractInteractive(args)

	var logger *logging.Logger
	if interactive {
		logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), false)
	} else {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory %s: %w", cfg.LogDir, err)
		}
		logger, err = logging.NewFileLogger(cfg.LogDir, "runner", logging.ParseLevel(cfg.LogLevel), false)
		if err != nil {
			return fmt.Errorf("failed to open runner log: %w", err)
		}
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Warn("received signal, stopping run", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	r := runner.New(runner.Options{Config: cfg, Logger: logger})
	res, err := r.Execute(ctx, args)
	if err != nil {
		return err
	}

	exitCode = res.ExitCode
	return nil
}

// extractProfile strips --profile NAME / --profile=NAME from the argument
// list, which is otherwise forwarded untouched to the orchestrator.
func extractProfile(args []string) ([]string, string, error) {
	out := make([]string, 0, len(args))
	name := ""
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--profile":
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("--profile requires a value")
			}
			i++
			name = args[i]
		case strings.HasPrefix(a, "--profile="):
			name = strings.TrimPrefix(a, "--profile=")
			if name == "" {
				return nil, "", fmt.Errorf("--profile requires a value")
			}
		default:
			out = append(out, a)
		}
	}
	return out, name, nil
}
