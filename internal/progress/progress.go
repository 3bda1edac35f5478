// Package progress renders git progress reports and batch completion on a
// terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/gitpipe/internal/plugin/builtin"
)

const barWidth = 30

// Config holds configuration for progress indicator
type Config struct {
	Writer io.Writer
	// IsCI prints one line per stage instead of redrawing a single line.
	IsCI bool
}

func (c Config) withDefaults() Config {
	if c.Writer == nil {
		c.Writer = os.Stderr
	}
	if !c.IsCI {
		c.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}
	return c
}

// Indicator draws the progress events of one or more git processes.
type Indicator struct {
	mu     sync.Mutex
	writer io.Writer
	isCI   bool
	stage  string
	open   bool
}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	cfg = cfg.withDefaults()
	return &Indicator{writer: cfg.Writer, isCI: cfg.IsCI}
}

// Update draws ev. It matches the callback expected by the progress plugin.
func (p *Indicator) Update(ev builtin.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stage := ev.Method + " " + ev.Stage
	if p.isCI {
		// one line when a stage starts and one when it completes
		if stage != p.stage || ev.Progress == 100 {
			fmt.Fprintln(p.writer, renderLine(ev))
		}
		p.stage = stage
		return
	}

	if p.open && stage != p.stage {
		fmt.Fprintln(p.writer)
	}
	fmt.Fprintf(p.writer, "\r%s", renderLine(ev))
	p.stage = stage
	p.open = true
}

// Stop terminates the current line.
func (p *Indicator) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		fmt.Fprintln(p.writer)
		p.open = false
	}
}

func renderLine(ev builtin.ProgressEvent) string {
	line := fmt.Sprintf("%s %-22s %s %3d%%", ev.Method, ev.Stage, bar(ev.Progress), ev.Progress)
	if ev.Total > 0 {
		line += fmt.Sprintf(" (%d/%d)", ev.Processed, ev.Total)
	}
	return line
}

func bar(percent int) string {
	percent = max(0, min(percent, 100))
	filled := barWidth * percent / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

// BarIndicator counts finished units of a batch.
type BarIndicator struct {
	writer    io.Writer
	isCI      bool
	total     int
	completed int
	failed    int
	startTime time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewBarIndicator creates a bar for total units.
func NewBarIndicator(cfg Config, total int) *BarIndicator {
	cfg = cfg.withDefaults()
	return &BarIndicator{
		writer:    cfg.Writer,
		isCI:      cfg.IsCI,
		total:     total,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Increment records one finished unit.
func (b *BarIndicator) Increment(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.completed++
	} else {
		b.failed++
	}

	b.render()
}

func (b *BarIndicator) render() {
	done := b.completed + b.failed
	percent := 100
	if b.total > 0 {
		percent = 100 * done / b.total
	}

	prefix := "\r"
	if b.isCI {
		prefix = ""
	}
	fmt.Fprintf(b.writer, "%s%s %3d%% | %d/%d | ✓ %d | ✗ %d | %s",
		prefix,
		bar(percent),
		percent,
		done,
		b.total,
		b.completed,
		b.failed,
		formatDuration(b.now().Sub(b.startTime)),
	)
	if b.isCI {
		fmt.Fprintln(b.writer)
	}
}

// Finish completes the progress bar
func (b *BarIndicator) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isCI {
		fmt.Fprintln(b.writer)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
