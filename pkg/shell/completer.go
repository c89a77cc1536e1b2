package shell

import (
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/r3d91ll/consensus/pkg/help"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

// ShellCompleter completes command names, and the arguments of commands
// that take a run ID, an instance index or another command.
type ShellCompleter struct {
	registry *simulation.Registry
	attached func() *simulation.Batch
}

// NewShellCompleter creates a completer that looks up run IDs in reg. reg
// may be nil.
func NewShellCompleter(reg *simulation.Registry) *ShellCompleter {
	return &ShellCompleter{registry: reg}
}

// withAttached lets instance indices complete against the attached batch.
func (c *ShellCompleter) withAttached(f func() *simulation.Batch) *ShellCompleter {
	c.attached = f
	return c
}

var _ readline.AutoCompleter = (*ShellCompleter)(nil)

// Do implements readline.AutoCompleter. It returns candidate suffixes for
// the word under the cursor and the length of that word.
func (c *ShellCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	if len(line) == 0 || pos <= 0 {
		return nil, 0
	}
	pos = min(pos, len(line))

	lineStr := string(line[:pos])
	wordStart := strings.LastIndexAny(lineStr, " \t") + 1
	currentWord := lineStr[wordStart:]

	if wordStart == 0 {
		if strings.HasPrefix(currentWord, "/") {
			return complete(strings.TrimPrefix(currentWord, "/"), help.Names()), len(currentWord)
		}
		return nil, 0
	}

	// Only the first argument completes.
	fields := strings.Fields(lineStr[:wordStart])
	if len(fields) != 1 {
		return nil, 0
	}
	cmd, ok := help.GetCommand(fields[0])
	if !ok {
		return nil, 0
	}

	var candidates []string
	switch cmd.Args {
	case help.ArgRun:
		candidates = c.runIDs()
	case help.ArgInstance:
		candidates = c.instances()
	case help.ArgCommand:
		candidates = help.Names()
	default:
		return nil, 0
	}
	return complete(currentWord, candidates), len(currentWord)
}

// complete returns the remainder of every candidate that starts with
// prefix, each followed by a space.
func complete(prefix string, candidates []string) [][]rune {
	var matches [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(cand, prefix) {
			matches = append(matches, []rune(cand[len(prefix):]+" "))
		}
	}
	return matches
}

func (c *ShellCompleter) runIDs() []string {
	if c.registry == nil {
		return nil
	}
	var ids []string
	for _, b := range c.registry.List() {
		ids = append(ids, b.ID())
	}
	sort.Strings(ids)
	return ids
}

func (c *ShellCompleter) instances() []string {
	if c.attached == nil {
		return nil
	}
	b := c.attached()
	if b == nil {
		return nil
	}
	n := int(b.Config().SimulationCount)
	out := make([]string, n)
	for i := range n {
		out[i] = strconv.Itoa(i)
	}
	return out
}
