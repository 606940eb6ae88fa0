package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/aish/internal/app"
	"github.com/doeshing/aish/internal/domain"
)

const msgNoHistoryRecorded = "No history recorded yet."

// searchScanLimit bounds the jsonl scan when no SQLite index is available.
const searchScanLimit = 5000

func printHistory(ctx context.Context, out io.Writer, c *app.Container, query string, limit int) error {
	entries, err := loadHistory(ctx, c, query, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, msgNoHistoryRecorded)
		return nil
	}
	now := time.Now()
	for _, e := range entries {
		fmt.Fprintln(out, formatEntry(e, now))
	}
	return nil
}

// loadHistory returns up to limit entries, oldest first.
func loadHistory(ctx context.Context, c *app.Container, query string, limit int) ([]domain.HistoryEntry, error) {
	query = strings.TrimSpace(query)
	if query != "" && c.HistorySearch != nil {
		entries, err := c.HistorySearch.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		// the index returns newest first
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
		return entries, nil
	}
	if c.HistoryReader == nil {
		return nil, fmt.Errorf("history store unavailable")
	}
	if query == "" {
		return c.HistoryReader.Recent(ctx, limit)
	}
	entries, err := c.HistoryReader.Recent(ctx, searchScanLimit)
	if err != nil {
		return nil, err
	}
	return filterEntries(entries, query, limit), nil
}

func filterEntries(entries []domain.HistoryEntry, query string, limit int) []domain.HistoryEntry {
	needle := strings.ToLower(query)
	var out []domain.HistoryEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Request), needle) || strings.Contains(strings.ToLower(e.Command()), needle) {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// formatEntry renders one history entry as one or two lines.
func formatEntry(e domain.HistoryEntry, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-9s  %s", humanize.RelTime(e.Timestamp, now, "ago", "from now"), e.RunStatus, e.Request)
	if e.Step != nil {
		fmt.Fprintf(&b, "\n    step %d/%d %s", e.Step.Step.Index, e.StepCount, e.Step.Status)
		if cmd := e.Command(); cmd != "" {
			fmt.Fprintf(&b, ": %s", cmd)
		}
		if e.Step.Retries > 0 {
			fmt.Fprintf(&b, " (%d retries)", e.Step.Retries)
		}
	} else if e.Error != "" {
		fmt.Fprintf(&b, "\n    %s", e.Error)
	}
	return b.String()
}
