// Package spinner provides terminal feedback for long-running work: an
// animated spinner for open-ended waits and a progress bar that can follow a
// simulation batch phase by phase.
package spinner

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// CharSet defines a set of characters for spinner animation.
type CharSet []string

// Common spinner character sets.
var (
	// Braille provides smooth animation using braille characters.
	Braille = CharSet{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

	// Line is the classic rotating line; works in most terminals.
	Line = CharSet{"|", "/", "-", "\\"}
)

// Config holds configuration options for a spinner.
type Config struct {
	// CharSet defines the animation characters to cycle through.
	// Defaults to Braille if not specified.
	CharSet CharSet

	// Message is the text displayed next to the spinner.
	Message string

	// RefreshRate controls how fast the spinner animates.
	// Defaults to 80ms.
	RefreshRate time.Duration

	// ShowElapsed displays elapsed time next to the message.
	ShowElapsed bool

	// Writer is the output destination.
	// Defaults to os.Stderr if not specified.
	Writer io.Writer

	// IsTTY overrides terminal detection on Writer. Without a terminal the
	// spinner prints one static line instead of animating.
	IsTTY *bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CharSet:     Braille,
		Message:     "Working...",
		RefreshRate: 80 * time.Millisecond,
		ShowElapsed: true,
		Writer:      os.Stderr,
	}
}

// Spinner displays an animated spinner in the terminal.
type Spinner struct {
	mu sync.Mutex

	config    Config
	isTTY     bool
	active    bool
	startTime time.Time
	frame     int
	out       line

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a new spinner with the given message.
func New(message string) *Spinner {
	cfg := DefaultConfig()
	cfg.Message = message
	return NewWithConfig(cfg)
}

// NewWithConfig creates a new spinner with custom configuration.
func NewWithConfig(config Config) *Spinner {
	if len(config.CharSet) == 0 {
		config.CharSet = Braille
	}
	if config.RefreshRate == 0 {
		config.RefreshRate = 80 * time.Millisecond
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	return &Spinner{
		config: config,
		isTTY:  resolveTTY(config.Writer, config.IsTTY),
		out:    line{w: config.Writer},
	}
}

// Message returns the current spinner message.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Message
}

// IsActive returns true if the spinner is currently running.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsTTY returns whether the spinner animates.
func (s *Spinner) IsTTY() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTTY
}

// Start begins the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	s.active = true
	s.startTime = time.Now()
	s.frame = 0

	if !s.isTTY {
		fmt.Fprintf(s.config.Writer, "%s\n", s.config.Message)
		return
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	fmt.Fprint(s.config.Writer, hideCursor)
	go s.spin(s.stopCh, s.doneCh)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.config.RefreshRate)
	defer ticker.Stop()

	s.render()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	char := s.config.CharSet[s.frame%len(s.config.CharSet)]
	s.frame++

	output := char + " " + s.config.Message
	if s.config.ShowElapsed {
		output += " " + formatElapsed(time.Since(s.startTime))
	}
	s.out.write(output)
}

// Update changes the message shown on the next frame.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Message = message
}

// Stop halts the animation and clears its line. Stopping an idle spinner is
// a no-op.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner and prints a green check with message, or the
// spinner's own message when empty.
func (s *Spinner) Success(message string) {
	s.finish(message, symbolSuccess, colorGreen)
}

// Fail stops the spinner and prints a red cross with message.
func (s *Spinner) Fail(message string) {
	s.finish(message, symbolFailure, colorRed)
}

// halt stops the animation goroutine and reports the elapsed time, or zero
// if the spinner was not running.
func (s *Spinner) halt() time.Duration {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return 0
	}
	s.active = false
	elapsed := time.Since(s.startTime)
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	if !s.isTTY {
		return elapsed
	}

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.out.clear()
	fmt.Fprint(s.config.Writer, showCursor)
	s.mu.Unlock()
	return elapsed
}

func (s *Spinner) finish(message, symbol, color string) {
	elapsed := s.halt()

	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		message = s.config.Message
	}
	if !s.config.ShowElapsed {
		elapsed = 0
	}
	fmt.Fprint(s.config.Writer, statusLine(s.isTTY, symbol, color, message, elapsed))
}
