package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// Prompter asks the user to confirm destructive commands such as /abort.
type Prompter interface {
	// Confirm shows message and reports whether the user answered yes.
	Confirm(message string) (bool, error)
}

// InteractivePrompter reads answers line by line from a reader.
type InteractivePrompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewInteractivePrompter creates a prompter on stdin and stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO creates a prompter on the given streams.
func NewInteractivePrompterWithIO(reader io.Reader, writer io.Writer) *InteractivePrompter {
	return &InteractivePrompter{
		reader: bufio.NewReader(reader),
		writer: writer,
	}
}

// Confirm prints message followed by " [y/N]: ". Only "y" or "yes" confirm;
// an empty answer or end of input means no.
func (p *InteractivePrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.writer, "%s [y/N]: ", message)

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, cerrors.IOWrap(err, cerrors.ErrIOReadFailed, "failed to read confirmation")
	}
	return isYes(line), nil
}

var _ Prompter = (*InteractivePrompter)(nil)

// readlinePrompter asks on the shell's own line editor so the answer does
// not compete with it for stdin.
type readlinePrompter struct {
	rl *readline.Instance
}

func (p *readlinePrompter) Confirm(message string) (bool, error) {
	p.rl.SetPrompt(message + " [y/N]: ")
	defer p.rl.SetPrompt(prompt)

	line, err := p.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// MockPrompter returns a fixed answer and records every prompt.
type MockPrompter struct {
	Response bool
	Error    error
	Prompts  []string
}

// NewMockPrompter creates a MockPrompter that answers response.
func NewMockPrompter(response bool) *MockPrompter {
	return &MockPrompter{Response: response}
}

// Confirm implements Prompter.
func (m *MockPrompter) Confirm(message string) (bool, error) {
	m.Prompts = append(m.Prompts, message)
	if m.Error != nil {
		return false, m.Error
	}
	return m.Response, nil
}

// CallCount returns how many times Confirm was called.
func (m *MockPrompter) CallCount() int {
	return len(m.Prompts)
}

var _ Prompter = (*MockPrompter)(nil)
