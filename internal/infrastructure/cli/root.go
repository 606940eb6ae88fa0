package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/aish/internal/app"
	"github.com/doeshing/aish/internal/application/doctor"
	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/version"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitAborted = 1
	ExitSetup   = 2
)

// Options holds the process streams. Nil fields default to os.Stdin/Stdout/Stderr.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Build replaces app.BuildContainer in tests.
	Build func(context.Context, app.Overrides) (*app.Container, error)
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type flags struct {
	history     bool
	limit       int
	search      string
	model       string
	backend     string
	maxRetries  int
	timeout     time.Duration
	onFailure   string
	confirmPlan bool
	debug       bool
	configPath  string
	doctor      bool
}

// Execute runs the root command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	root := NewRootCmd(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil && exit.err.Error() != "" {
			fmt.Fprintln(opts.Stderr, "error:", exit.err)
		}
		return exit.code
	}
	// flag parsing and other cobra errors
	fmt.Fprintln(opts.Stderr, "error:", err)
	return ExitSetup
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	var f flags

	root := &cobra.Command{
		Use:   "aish [request...]",
		Short: "aish - plan and run shell tasks from natural language",
		Long: "aish turns a natural-language request into a plan of steps, generates a shell command\n" +
			"for each step, checks it against safety rules, asks before running it and streams\n" +
			"its output. Without a request it starts an interactive session.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ov := f.overrides(cmd)

			if f.doctor {
				return runDoctor(ctx, opts.Stdout, app.BuildDoctor(ov))
			}

			container, err := opts.Build(ctx, ov)
			if err != nil {
				return &exitError{code: ExitSetup, err: err}
			}
			defer container.Close()

			if f.history {
				if err := printHistory(ctx, opts.Stdout, container, f.search, f.limit); err != nil {
					return &exitError{code: ExitSetup, err: err}
				}
				return nil
			}

			s := newSession(container, opts)
			if len(args) > 0 {
				run, err := s.run(ctx, strings.Join(args, " "))
				return exitFor(run, err)
			}
			return s.repl(ctx)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	root.SetIn(opts.Stdin)

	fl := root.Flags()
	fl.BoolVar(&f.history, "history", false, "Show recent history entries and exit")
	fl.IntVar(&f.limit, "limit", domain.DefaultHistoryLimit, "Entries to show with --history")
	fl.StringVar(&f.search, "search", "", "Filter --history by request or command text")
	fl.StringVarP(&f.model, "model", "m", "", "Model name from the config file")
	fl.StringVar(&f.backend, "backend", "", "Force a backend (openai|anthropic|ollama|gemini|heuristic)")
	fl.IntVar(&f.maxRetries, "max-retries", domain.DefaultMaxRetries, "Retries per step after a failed command")
	fl.DurationVar(&f.timeout, "timeout", 0, "Per-command timeout (default from config)")
	fl.StringVar(&f.onFailure, "on-failure", "", "What to do when a step fails: abort|skip")
	fl.BoolVar(&f.confirmPlan, "confirm-plan", false, "Ask before running the plan at all")
	fl.BoolVar(&f.debug, "debug", false, "Log diagnostics to stderr")
	fl.StringVar(&f.configPath, "config", "", "Config file (default ~/.aish/config.yaml)")
	fl.BoolVar(&f.doctor, "doctor", false, "Diagnose the environment and exit")
	return root
}

func (f flags) overrides(cmd *cobra.Command) app.Overrides {
	ov := app.Overrides{
		ConfigPath:  f.configPath,
		Model:       f.model,
		Backend:     f.backend,
		Timeout:     f.timeout,
		OnFailure:   f.onFailure,
		ConfirmPlan: f.confirmPlan,
		Debug:       f.debug,
	}
	if cmd.Flags().Changed("max-retries") {
		n := f.maxRetries
		ov.MaxRetries = &n
	}
	return ov
}

// exitFor maps a finished run onto the process exit code.
func exitFor(run *domain.RunState, err error) error {
	if run != nil && run.Status == domain.RunAborted {
		// the renderer already explained the failure
		return &exitError{code: ExitAborted, err: errors.New("")}
	}
	if err != nil {
		return &exitError{code: ExitAborted, err: err}
	}
	return nil
}

func runDoctor(ctx context.Context, out io.Writer, svc *doctor.Service) error {
	report, err := svc.Run(ctx)
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	if err != nil {
		return &exitError{code: ExitSetup, err: fmt.Errorf("diagnostics completed with errors: %w", err)}
	}
	if doctor.Failed(report) {
		return &exitError{code: ExitAborted, err: fmt.Errorf("%d checks failed", report.Count(domain.HealthError))}
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Build == nil {
		o.Build = app.BuildContainer
	}
	return o
}
