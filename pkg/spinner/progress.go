package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressConfig holds configuration options for a progress bar.
type ProgressConfig struct {
	// Total is the number of steps. Defaults to 100 when <= 0.
	Total int

	// Message is the text displayed before the bar.
	Message string

	// Width is the bar width in characters. Defaults to 20.
	Width int

	ShowPercentage bool
	ShowCount      bool
	ShowElapsed    bool

	// ShowETA displays the estimated time remaining once MinSamplesForETA
	// steps are done.
	ShowETA          bool
	MinSamplesForETA int

	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer

	// IsTTY overrides terminal detection. Without a terminal the bar prints a
	// line at every tenth of progress instead of redrawing.
	IsTTY *bool
}

// DefaultProgressConfig returns a progress bar configuration with sensible defaults.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		Total:            100,
		Message:          "Running",
		Width:            20,
		ShowPercentage:   true,
		ShowCount:        true,
		ShowElapsed:      true,
		ShowETA:          true,
		MinSamplesForETA: 2,
		Writer:           os.Stderr,
	}
}

// Unicode characters for the bar.
const (
	barFilled = "█"
	barEmpty  = "░"
)

// ProgressBar displays progress towards a known total.
type ProgressBar struct {
	mu sync.Mutex

	config    ProgressConfig
	isTTY     bool
	current   int
	suffix    string
	startTime time.Time
	active    bool
	out       line
}

// NewProgress creates a progress bar with default options.
func NewProgress(total int, message string) *ProgressBar {
	cfg := DefaultProgressConfig()
	cfg.Total = total
	cfg.Message = message
	return NewProgressWithConfig(cfg)
}

// NewProgressWithConfig creates a progress bar with custom configuration.
func NewProgressWithConfig(config ProgressConfig) *ProgressBar {
	if config.Total <= 0 {
		config.Total = 100
	}
	if config.Width <= 0 {
		config.Width = 20
	}
	if config.MinSamplesForETA <= 0 {
		config.MinSamplesForETA = 2
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	return &ProgressBar{
		config: config,
		isTTY:  resolveTTY(config.Writer, config.IsTTY),
		out:    line{w: config.Writer},
	}
}

// Total returns the step count.
func (p *ProgressBar) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.Total
}

// Current returns the steps done.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// IsActive returns true between Start and Complete or Fail.
func (p *ProgressBar) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Percentage returns the current progress as a percentage (0-100).
func (p *ProgressBar) Percentage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.current) / float64(p.config.Total) * 100
}

// Start shows the empty bar. Starting an active bar is a no-op.
func (p *ProgressBar) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return
	}
	p.active = true
	p.startTime = time.Now()
	p.current = 0

	if p.isTTY {
		fmt.Fprint(p.config.Writer, hideCursor)
		p.out.write(p.buildOutput())
		return
	}
	fmt.Fprintln(p.config.Writer, p.buildOutput())
}

// Increment advances the progress by one step.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(p.current + 1)
}

// Set moves the progress to n, clamped to [0, Total].
func (p *ProgressBar) Set(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(n)
}

// SetSuffix replaces the free text shown after the bar, such as the current
// phase or a paused marker.
func (p *ProgressBar) SetSuffix(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suffix == s {
		return
	}
	p.suffix = s
	if p.active && p.isTTY {
		p.out.write(p.buildOutput())
	}
}

func (p *ProgressBar) setLocked(n int) {
	if !p.active {
		return
	}
	n = max(0, min(n, p.config.Total))
	old := p.current
	p.current = n

	if p.isTTY {
		p.out.write(p.buildOutput())
		return
	}
	// Non-TTY: one line per tenth crossed, plus completion.
	if (n*10)/p.config.Total > (old*10)/p.config.Total || (n == p.config.Total && old != n) {
		fmt.Fprintln(p.config.Writer, p.buildOutput())
	}
}

// buildOutput renders: Message [████░░░░] 40% (8/20) (2.4s) ETA: 3s suffix
func (p *ProgressBar) buildOutput() string {
	var parts []string
	if p.config.Message != "" {
		parts = append(parts, p.config.Message)
	}
	parts = append(parts, p.buildBar())

	if p.config.ShowPercentage {
		parts = append(parts, fmt.Sprintf("%.0f%%", float64(p.current)/float64(p.config.Total)*100))
	}
	if p.config.ShowCount {
		parts = append(parts, fmt.Sprintf("(%d/%d)", p.current, p.config.Total))
	}
	if p.config.ShowElapsed && !p.startTime.IsZero() {
		parts = append(parts, formatElapsed(time.Since(p.startTime)))
	}
	if p.config.ShowETA && p.current >= p.config.MinSamplesForETA {
		if eta := p.calculateETA(); eta > 0 {
			parts = append(parts, formatETA(eta))
		}
	}
	if p.suffix != "" {
		parts = append(parts, p.suffix)
	}
	return strings.Join(parts, " ")
}

func (p *ProgressBar) buildBar() string {
	width := p.config.Width
	filled := max(0, min((p.current*width)/p.config.Total, width))
	return "[" + strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled) + "]"
}

// calculateETA extrapolates the average time per step.
func (p *ProgressBar) calculateETA() time.Duration {
	remaining := p.config.Total - p.current
	if p.current <= 0 || remaining <= 0 || p.startTime.IsZero() {
		return 0
	}
	return time.Since(p.startTime) / time.Duration(p.current) * time.Duration(remaining)
}

func formatETA(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("ETA: %ds", max(1, int(d.Seconds()+0.5)))
	case d < time.Hour:
		if s := int(d.Seconds()) % 60; s > 0 {
			return fmt.Sprintf("ETA: %dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("ETA: %dm", int(d.Minutes()))
	}
	if m := int(d.Minutes()) % 60; m > 0 {
		return fmt.Sprintf("ETA: %dh %dm", int(d.Hours()), m)
	}
	return fmt.Sprintf("ETA: %dh", int(d.Hours()))
}

// Complete stops the bar and prints a success line. An empty message uses
// "<Message> complete".
func (p *ProgressBar) Complete(message string) {
	p.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the bar and prints a failure line.
func (p *ProgressBar) Fail(message string) {
	p.finish(message, symbolFailure, colorRed)
}

// Abort stops the bar and prints an aborted line.
func (p *ProgressBar) Abort(message string) {
	p.finish(message, symbolAborted, colorYellow)
}

func (p *ProgressBar) finish(message, symbol, color string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if message == "" {
		message = p.config.Message + " complete"
	}
	var elapsed time.Duration
	if p.config.ShowElapsed && !p.startTime.IsZero() {
		elapsed = time.Since(p.startTime)
	}

	if p.active {
		p.active = false
		if p.isTTY {
			p.out.clear()
			fmt.Fprint(p.config.Writer, showCursor)
		}
	}
	fmt.Fprint(p.config.Writer, statusLine(p.isTTY, symbol, color, message, elapsed))
}
