// Package stats contains usage calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/smartchr/internal/model"
)

var sparkChars = []rune("▁▂▃▄▅▆▇█")

// CycleRate is the share of activations that replaced a previous candidate.
func CycleRate(u model.KeyUsage) float64 {
	if u.Activations <= 0 {
		return 0
	}
	return float64(u.Replaced) / float64(u.Activations)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i := range values {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line block sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if maxVal-minVal < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - minVal) / (maxVal - minVal) * float64(last)))
		idx = max(0, min(idx, last))
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}

// DailySeries expands activity into one value per day between the first and
// last recorded day, filling quiet days with zero.
func DailySeries(days []model.DayActivity) []float64 {
	if len(days) == 0 {
		return nil
	}
	first := days[0].Day
	span := int(days[len(days)-1].Day.Sub(first).Round(24*time.Hour)/(24*time.Hour)) + 1
	out := make([]float64, span)
	for _, d := range days {
		idx := int(d.Day.Sub(first).Round(24*time.Hour) / (24 * time.Hour))
		if idx >= 0 && idx < span {
			out[idx] += float64(d.Activations)
		}
	}
	return out
}

// RenderSummary prints totals across all triggers.
func RenderSummary(w io.Writer, usage []model.KeyUsage) error {
	if len(usage) == 0 {
		_, err := fmt.Fprintln(w, "No activations recorded.")
		return err
	}
	var total, replaced int
	sessions := 0
	for _, u := range usage {
		total += u.Activations
		replaced += u.Replaced
		sessions = max(sessions, u.Sessions)
	}
	rate := 0.0
	if total > 0 {
		rate = float64(replaced) / float64(total)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Keys: %d", len(usage)),
		fmt.Sprintf("Activations: %s", humanize.Comma(int64(total))),
		fmt.Sprintf("Cycled: %s (%.1f%%)", humanize.Comma(int64(replaced)), rate*100),
		fmt.Sprintf("Busiest key sessions: %d", sessions),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderUsage prints the per-key usage table. Candidate cells are truncated
// to fit width when width is positive.
func RenderUsage(w io.Writer, usage []model.KeyUsage, now time.Time, width int) error {
	if len(usage) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Key Usage"); err != nil {
		return err
	}
	headers := []string{"Key", "Uses", "Cycled", "Sessions", "Last used", "Top insertion"}
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{
			u.Trigger,
			humanize.Comma(int64(u.Activations)),
			fmt.Sprintf("%.1f%%", CycleRate(u)*100),
			fmt.Sprintf("%d", u.Sessions),
			humanize.RelTime(u.LastUsed, now, "ago", "from now"),
			visible(u.TopInserted),
		})
	}
	if width > 0 {
		lines := formatTable(headers, rows, nil)
		if overflow := maxLineWidth(lines) - width; overflow > 0 {
			last := len(headers) - 1
			colWidth := displayWidth(headers[last])
			for _, row := range rows {
				colWidth = max(colWidth, displayWidth(row[last]))
			}
			target := max(displayWidth(headers[last]), colWidth-overflow)
			for _, row := range rows {
				row[last] = truncateCell(row[last], target)
			}
		}
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderActivity prints a sparkline of activations per day.
func RenderActivity(w io.Writer, days []model.DayActivity, window, width int) error {
	series := DailySeries(days)
	if len(series) == 0 {
		return nil
	}
	series = MovingAverage(series, window)
	if width > 0 && len(series) > width {
		series = series[len(series)-width:]
	}
	first := days[0].Day
	if n := len(DailySeries(days)); n > len(series) {
		first = first.AddDate(0, 0, n-len(series))
	}
	last := days[len(days)-1].Day
	lines := []string{
		"Daily Activity",
		Sparkline(series),
		fmt.Sprintf("%s .. %s", first.Format("2006-01-02"), last.Format("2006-01-02")),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
