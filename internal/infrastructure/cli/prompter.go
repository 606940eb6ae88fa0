package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// Prompter implements ConfirmationPrompter on a line reader. The reader is
// shared with the interactive loop so buffered input is never lost.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter constructs a prompter.
func NewPrompter(in *bufio.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// ConfirmPlan implements ports.ConfirmationPrompter.
func (p *Prompter) ConfirmPlan(plan domain.Plan) (bool, error) {
	return p.ask(fmt.Sprintf("Run this plan (%d steps)? [y/N]: ", plan.Len()))
}

// ConfirmCommand implements ports.ConfirmationPrompter. The command text is
// always shown before the question. Warnings and destructive steps need the
// full word "yes".
func (p *Prompter) ConfirmCommand(step domain.Step, candidate domain.CommandCandidate, verdict domain.Verdict, explicit bool) (bool, error) {
	fmt.Fprintf(p.out, "  $ %s\n", candidate.Text)
	if candidate.Explanation != "" {
		fmt.Fprintf(p.out, "  # %s\n", candidate.Explanation)
	}
	if !candidate.IsPrimary() {
		fmt.Fprintf(p.out, "  (fallback %d)\n", candidate.Rank)
	}
	if verdict.IsWarning() {
		fmt.Fprintf(p.out, "  WARNING: %s\n", verdict.Reason)
	}
	if step.Risk == domain.RiskDestructive {
		fmt.Fprintln(p.out, "  WARNING: this step is marked destructive")
	}
	if explicit {
		return p.askExplicit()
	}
	return p.ask("  Run it? [y/N]: ")
}

func (p *Prompter) ask(prompt string) (bool, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (p *Prompter) askExplicit() (bool, error) {
	fmt.Fprint(p.out, "  Type 'yes' to run (anything else cancels): ")
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	return line == "yes", nil
}

// readLine returns a trimmed line. A final line without newline still counts.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
