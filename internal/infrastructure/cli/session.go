package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/doeshing/aish/internal/app"
	"github.com/doeshing/aish/internal/domain"
)

const replHelp = `Type a request in plain language, for example "show disk usage of this folder".

Commands:
  help      show this help
  history   show the last entries of the audit log
  clear     clear the screen
  exit      leave (also: quit, Ctrl-D)

Ctrl-C while a command runs stops that command only.`

const replHistoryLimit = 10

// session runs requests against one container. Prompts and the interactive
// loop share a single reader.
type session struct {
	container   *app.Container
	in          *bufio.Reader
	out         io.Writer
	renderer    *Renderer
	interactive bool
}

func newSession(c *app.Container, opts Options) *session {
	in := bufio.NewReader(opts.Stdin)
	s := &session{
		container:   c,
		in:          in,
		out:         opts.Stdout,
		renderer:    NewRenderer(opts.Stdout, opts.Stderr, isTerminal(opts.Stdout) && isTerminal(opts.Stderr)),
		interactive: isTerminal(opts.Stdin),
	}
	orch := c.Orchestrator
	orch.Prompter = NewPrompter(in, opts.Stdout)
	orch.Observer = s.renderer
	orch.CommandContext = interruptible
	return s
}

func (s *session) run(ctx context.Context, text string) (*domain.RunState, error) {
	s.container.Prepare(ctx)
	s.renderer.BeginPlanning()
	return s.container.Orchestrator.Run(ctx, domain.NewRequest(text))
}

// repl reads requests until exit or end of input. Failed runs are reported
// and the loop goes on.
func (s *session) repl(ctx context.Context) error {
	if s.interactive {
		fmt.Fprintln(s.out, "aish interactive mode. Type 'help' for commands, 'exit' to quit.")
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if s.interactive {
			fmt.Fprint(s.out, "aish> ")
		}
		line, readErr := s.in.ReadString('\n')
		if quit := s.handle(ctx, strings.TrimSpace(line)); quit {
			return nil
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if s.interactive {
					fmt.Fprintln(s.out)
				}
				return nil
			}
			return &exitError{code: ExitSetup, err: fmt.Errorf("read input: %w", readErr)}
		}
	}
}

// handle processes one input line and reports whether the loop should end.
func (s *session) handle(ctx context.Context, text string) bool {
	switch strings.ToLower(text) {
	case "":
		return false
	case "exit", "quit":
		return true
	case "help":
		fmt.Fprintln(s.out, replHelp)
	case "history":
		if err := printHistory(ctx, s.out, s.container, "", replHistoryLimit); err != nil {
			s.renderer.Warning(err.Error())
		}
	case "clear":
		fmt.Fprint(s.out, "\033[H\033[2J")
	default:
		// the renderer has already shown how the run ended
		_, _ = s.run(ctx, text)
	}
	return false
}

// interruptible scopes one command to Ctrl-C. While it is active the signal
// cancels the command instead of killing aish.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
