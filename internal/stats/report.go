package stats

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/smartchr/internal/model"
)

const defaultTerminalWidth = 80

// UsageSource provides recorded activations.
type UsageSource interface {
	ListKeyUsage(ctx context.Context, cfg model.UsageConfig) ([]model.KeyUsage, error)
	ListDailyActivity(ctx context.Context, cfg model.UsageConfig) ([]model.DayActivity, error)
}

// Report contains precomputed data for usage rendering.
type Report struct {
	Usage []model.KeyUsage
	Days  []model.DayActivity
}

// BuildReport loads and prepares data for usage rendering.
func BuildReport(ctx context.Context, src UsageSource, cfg model.UsageConfig) (Report, error) {
	usage, err := src.ListKeyUsage(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	days, err := src.ListDailyActivity(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{Usage: usage, Days: days}, nil
}

// RenderReport prints the summary, per-key table and activity sparkline.
func RenderReport(w io.Writer, r Report, now time.Time, window, width int) error {
	if err := RenderSummary(w, r.Usage); err != nil {
		return err
	}
	if err := RenderUsage(w, r.Usage, now, width); err != nil {
		return err
	}
	return RenderActivity(w, r.Days, window, width)
}

// TerminalWidth reports the width of f when it is a terminal.
func TerminalWidth(f *os.File) int {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return width
}
