// Package main provides the kollzsh CLI: it turns one natural-language task
// into shell commands, printed one per line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oraraka-deko/kollzsh/internal/config"
	"github.com/oraraka-deko/kollzsh/internal/logger"
	"github.com/oraraka-deko/kollzsh/kollzsh"
)

const (
	exitOK         = 0
	exitNoCommands = 1
	exitConfig     = 2
)

var version = "0.1.0" // This could be set at build time

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code. No commands means
// exit 1 with nothing printed; a configuration error means exit 2.
func execute(args []string, stdout, stderr io.Writer) int {
	code := exitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		if kollzsh.IsConfigError(err) {
			return exitConfig
		}
		return exitNoCommands
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:   "kollzsh <task>",
		Short: "Turn a task description into shell commands",
		Long: `kollzsh asks a language model for shell commands that accomplish a task
and prints each one on its own line. Nothing is printed and the exit status
is 1 when no commands could be extracted.`,
		Args:          cobra.ExactArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, v, args[0], code)
		},
	}

	config.RegisterFlags(cmd.Flags())
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		// Flags are registered just above; a failure here is a programming error.
		panic(err)
	}
	return cmd
}

func runQuery(cmd *cobra.Command, v *viper.Viper, query string, code *int) error {
	if err := config.LoadEnvFile(v); err != nil {
		return err
	}
	settings, err := config.Load(v)
	if err != nil {
		return err
	}

	sink, err := logger.Open(settings.LogFile, settings.LogLevel)
	if err != nil {
		// Diagnostics must never block command extraction.
		sink = logger.Discard()
	}
	defer sink.Close()

	client, err := kollzsh.New(settings.Client, kollzsh.WithLogger(sink))
	if err != nil {
		sink.Error("Invalid configuration", "error", err)
		return err
	}

	commands := client.ProduceCommands(cmd.Context(), query)
	if len(commands) == 0 {
		sink.Debug("No valid commands found")
		*code = exitNoCommands
		return nil
	}

	out := cmd.OutOrStdout()
	for _, c := range commands {
		fmt.Fprintln(out, c)
	}
	sink.Debug("Successfully output commands", "count", len(commands))
	return nil
}
