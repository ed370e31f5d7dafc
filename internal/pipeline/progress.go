package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dverhagen/pharmsync/internal/models"
)

// failedItemDisplayLimit caps how many failed items the final summary
// enumerates before collapsing to a remainder count.
const failedItemDisplayLimit = 10

// Theme holds the color scheme for terminal output.
type Theme struct {
	Phase   lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Phase:   lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) phaseStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Phase).Bold(true)
}

func (t Theme) successStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// Reporter prints phase banners, periodic progress lines with throughput,
// and the final run summary. Tick is safe to call from multiple workers.
type Reporter struct {
	log      *slog.Logger
	theme    Theme
	interval int

	mu         sync.Mutex
	phaseStart time.Time
}

// NewReporter creates a reporter logging a progress line every interval
// completions.
func NewReporter(logger *slog.Logger, interval int) *Reporter {
	if interval <= 0 {
		interval = 50
	}
	return &Reporter{
		log:      logger,
		theme:    defaultTheme,
		interval: interval,
	}
}

// PhaseBanner announces a phase transition.
func (r *Reporter) PhaseBanner(phase string) {
	r.mu.Lock()
	r.phaseStart = time.Now()
	r.mu.Unlock()
	fmt.Println(r.theme.phaseStyle().Render("==> " + phase))
}

// Tick reports progress every interval completions (and on the last one)
// with a running rate.
func (r *Reporter) Tick(phase string, done, total int) {
	if done%r.interval != 0 && done != total {
		return
	}

	r.mu.Lock()
	elapsed := time.Since(r.phaseStart)
	r.mu.Unlock()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	r.log.Info("progress", "phase", phase,
		"done", done, "total", total,
		"rate", fmt.Sprintf("%.1f/s", rate))
}

// Summary prints the per-phase outcome table and enumerates failed items
// with their last error, truncated past the display limit.
func (r *Reporter) Summary(state *models.WorkState) {
	fmt.Println()
	fmt.Println(r.theme.phaseStyle().Render(fmt.Sprintf("Run %s, dataset %q (id %d)", state.RunID, state.DatasetTag, state.DatasetID)))
	fmt.Printf("  files: %d  with image: %d\n", state.TotalFiles, state.TotalImages)

	for _, phase := range models.Phases {
		ps := state.Phase(phase)
		line := fmt.Sprintf("  %-10s %-10s processed=%d completed=%d failed=%d skipped=%d (%.1fs)",
			phase, ps.Status, ps.Processed, ps.Completed, ps.Failed, ps.Skipped, ps.DurationSeconds)
		if ps.Status == models.PhaseFailed || ps.Failed > 0 {
			fmt.Println(r.theme.errorStyle().Render(line))
		} else {
			fmt.Println(line)
		}
	}

	failed := make([]*models.WorkItem, 0)
	for _, item := range state.Items {
		if item.Status == models.ItemFailed {
			failed = append(failed, item)
		}
	}
	if len(failed) == 0 {
		fmt.Println(r.theme.successStyle().Render("  no failed items"))
		return
	}

	fmt.Println(r.theme.errorStyle().Render(fmt.Sprintf("  %d failed items:", len(failed))))
	for i, item := range failed {
		if i == failedItemDisplayLimit {
			fmt.Println(r.theme.hintStyle().Render(fmt.Sprintf("    ... and %d more", len(failed)-failedItemDisplayLimit)))
			break
		}
		msg := ""
		if item.LastError != nil {
			msg = *item.LastError
		}
		fmt.Printf("    %s: %s\n", item.WorkID, msg)
	}
}
