// Package shell provides the interactive REPL for steering simulation
// batches: pause, resume or abort the attached batch and inspect its plot
// and entropy curve while other work continues.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/help"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

const (
	prompt = "\033[32mconsensus>\033[0m "

	// statusWidth is the inner width of the /status panel.
	statusWidth = 58

	// maxEntropyRows bounds the rows /entropy prints; longer curves are
	// sampled evenly.
	maxEntropyRows = 20
)

// Shell is the interactive command-line interface.
type Shell struct {
	runner   *runner.Runner
	out      io.Writer
	errOut   *cerrors.Formatter
	prompter Prompter
	csv      *export.CSVConfig
	history  string

	mu    sync.Mutex
	batch *simulation.Batch

	// rl is set while Run is active.
	rl *readline.Instance
}

// Config holds shell configuration.
type Config struct {
	HistoryFile string

	// Prompter confirms /abort. Run defaults it to a prompt on the line
	// editor.
	Prompter Prompter

	// CSV controls /export. Defaults to export.DefaultCSVConfig.
	CSV *export.CSVConfig

	// Out receives command output. Run defaults it to the line editor's
	// stdout.
	Out io.Writer
}

// New creates a shell over r attached to b. b may be nil; /attach selects a
// batch later.
func New(r *runner.Runner, b *simulation.Batch, cfg Config) *Shell {
	if cfg.CSV == nil {
		cfg.CSV = export.DefaultCSVConfig()
	}
	s := &Shell{
		runner:   r,
		out:      cfg.Out,
		prompter: cfg.Prompter,
		csv:      cfg.CSV,
		history:  cfg.HistoryFile,
		batch:    b,
	}
	s.errOut = &cerrors.Formatter{Writer: os.Stderr, Indent: "  "}
	return s
}

// Batch returns the attached batch.
func (s *Shell) Batch() *simulation.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch
}

func (s *Shell) attach(b *simulation.Batch) {
	s.mu.Lock()
	s.batch = b
	s.mu.Unlock()
}

// Run starts the interactive loop. It returns nil on /quit or end of input,
// and ctx.Err() once ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     s.history,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete:    NewShellCompleter(s.runner.Registry()).withAttached(s.Batch),
	})
	if err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOReadFailed, "failed to start line editor")
	}
	defer rl.Close()

	s.rl = rl
	if s.out == nil {
		s.out = rl.Stdout()
	}
	if s.prompter == nil {
		s.prompter = &readlinePrompter{rl: rl}
	}
	s.errOut.UseColor = cerrors.IsTTY(os.Stderr)
	s.errOut.Writer = rl.Stderr()

	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()

	if b := s.Batch(); b != nil {
		s.watch(ctx, b)
		fmt.Fprintf(s.out, "Attached to batch %s. Type /help for commands.\n\n", shortID(b.ID()))
	} else {
		fmt.Fprintln(s.out, "No batch attached. Use /runs and /attach <id>.")
		fmt.Fprintln(s.out)
	}

	for {
		line, err := rl.Readline()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			s.errOut.Display(err)
		}
	}
}

var errQuit = errors.New("quit")

// Exec runs one input line. Blank lines are ignored; anything that is not a
// slash command is rejected.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return cerrors.Commandf(cerrors.ErrCommandUnknown, "not a command: %q", line).
			WithSuggestion("Commands start with /, e.g. /status")
	}

	parts := strings.Fields(line)
	cmd, ok := help.GetCommand(parts[0])
	if !ok {
		return cerrors.Commandf(cerrors.ErrCommandUnknown, "unknown command: %s", parts[0])
	}
	args := parts[1:]

	switch cmd.Name {
	case "/quit":
		return errQuit
	case "/help":
		return s.handleHelp(args)
	case "/pause":
		return s.handleControl(simulation.ControlPause, args)
	case "/play":
		return s.handleControl(simulation.ControlPlay, args)
	case "/abort":
		return s.handleControl(simulation.ControlAbort, args)
	case "/status":
		return s.handleStatus()
	case "/plot":
		return s.handlePlot(args)
	case "/entropy":
		return s.handleEntropy(args)
	case "/runs":
		return s.handleRuns()
	case "/attach":
		return s.handleAttach(ctx, args)
	case "/export":
		return s.handleExport(args)
	}
	return cerrors.Commandf(cerrors.ErrCommandUnknown, "unhandled command: %s", cmd.Name)
}

func (s *Shell) handleHelp(args []string) error {
	r := help.NewRenderer(s.out)
	if len(args) > 0 {
		r.RenderCommand(args[0])
		return nil
	}
	r.RenderFull()
	return nil
}

func (s *Shell) requireBatch() (*simulation.Batch, error) {
	b := s.Batch()
	if b == nil {
		return nil, cerrors.Command(cerrors.ErrCommandInvalidArgs, "no batch attached").
			WithSuggestion("Use /runs to list batches and /attach <id> to select one")
	}
	return b, nil
}

// handleControl sends msg to the attached batch. /abort asks first unless
// given -y.
func (s *Shell) handleControl(msg simulation.ControlMessage, args []string) error {
	b, err := s.requireBatch()
	if err != nil {
		return err
	}

	if msg == simulation.ControlAbort && !hasFlag(args, "-y") && s.prompter != nil {
		ok, err := s.prompter.Confirm(fmt.Sprintf("Abort batch %s?", shortID(b.ID())))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out, "Abort cancelled.")
			return nil
		}
	}

	delivered, err := s.runner.Control(b.ID(), msg)
	if err != nil {
		return err
	}
	if delivered == 0 && b.Status().Status == simulation.BatchPending {
		if msg == simulation.ControlAbort {
			fmt.Fprintf(s.out, "abort queued for batch %s (not started yet)\n", shortID(b.ID()))
		} else {
			fmt.Fprintf(s.out, "batch %s has not started; nothing to %s\n", shortID(b.ID()), msg)
		}
		return nil
	}
	fmt.Fprintf(s.out, "%s sent to %d instance(s) of batch %s\n", msg, delivered, shortID(b.ID()))
	return nil
}

func (s *Shell) handleStatus() error {
	b, err := s.requireBatch()
	if err != nil {
		return err
	}
	sum := b.Status()
	cfg := sum.Config

	box := help.NewBox(statusWidth)
	lines := []string{
		box.Top(),
		box.KeyValue("batch", sum.ID, 8),
		box.KeyValue("status", help.Status(string(sum.Status)), 8),
		box.KeyValue("config", describeConfig(cfg), 8),
		box.KeyValue("phases", fmt.Sprintf("%d/%d", sum.PhasesDone, sum.PhasesTotal), 8),
	}
	if !sum.Started.IsZero() {
		end := sum.Finished
		if end.IsZero() {
			end = time.Now()
		}
		lines = append(lines, box.KeyValue("elapsed", end.Sub(sum.Started).Round(time.Millisecond).String(), 8))
	}
	if sum.Error != "" {
		lines = append(lines, box.KeyValue("error", sum.Error, 8))
	}
	if len(sum.Latest) > 0 {
		lines = append(lines, box.Mid())
		for i, snap := range sum.Latest {
			lines = append(lines, box.Row(fmt.Sprintf(" #%-3d K=%-4d interactions=%-12d H=%.4f",
				i, snap.K, snap.Interactions, snap.Entropy)))
		}
	}
	lines = append(lines, box.Bottom())

	for _, l := range lines {
		fmt.Fprintln(s.out, l)
	}
	return nil
}

// finishedResults returns the batch results, or an error while it runs.
func (s *Shell) finishedResults() ([]simulation.Result, error) {
	b, err := s.requireBatch()
	if err != nil {
		return nil, err
	}
	select {
	case <-b.Done():
	default:
		return nil, cerrors.Commandf(cerrors.ErrCommandInvalidArgs, "batch %s is %s", shortID(b.ID()), b.Status().Status).
			WithSuggestion("Results are available once the batch finishes; /status shows live progress")
	}
	results := b.Results()
	if len(results) == 0 {
		return nil, cerrors.Simulation(cerrors.ErrEmptySample, "batch produced no results")
	}
	return results, nil
}

// instanceArg parses an optional instance index. It returns -1 when absent.
func instanceArg(args []string, n int) (int, error) {
	if len(args) == 0 {
		return -1, nil
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 || i >= n {
		return 0, cerrors.Commandf(cerrors.ErrCommandInvalidArgs, "invalid instance %q", args[0]).
			WithContext("instances", strconv.Itoa(n))
	}
	return i, nil
}

func (s *Shell) handlePlot(args []string) error {
	results, err := s.finishedResults()
	if err != nil {
		return err
	}
	i, err := instanceArg(args, len(results))
	if err != nil {
		return err
	}

	if i >= 0 {
		res := results[i]
		fmt.Fprintf(s.out, "Instance %d (seed %d)%s\n", i, res.Seed, abortedMark(res.Aborted))
		fmt.Fprintf(s.out, "  %4s  %14s\n", "K", "interactions")
		for _, p := range res.Plot.Points {
			fmt.Fprintf(s.out, "  %4d  %14d\n", p.K, p.Interactions)
		}
		return nil
	}

	records := export.Average(results)
	if len(records) == 0 {
		fmt.Fprintln(s.out, "No completed instances to average.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(s.out, "Mean over %d run(s), %s\n", rec.Runs, describeConfig(rec.Config))
		fmt.Fprintf(s.out, "  %4s  %14s  %7s\n", "K", "interactions", "samples")
		for _, p := range rec.Plot {
			fmt.Fprintf(s.out, "  %4d  %14.1f  %7d\n", p.K, p.Interactions, p.Samples)
		}
	}
	return nil
}

func (s *Shell) handleEntropy(args []string) error {
	results, err := s.finishedResults()
	if err != nil {
		return err
	}
	i, err := instanceArg(args, len(results))
	if err != nil {
		return err
	}
	if i < 0 {
		i = 0
	}

	curve := results[i].Entropy
	points := curve.CoveredMean()
	fmt.Fprintf(s.out, "Instance %d entropy over %d phase(s), %d checkpoint(s)\n", i, curve.Phases, len(points))
	if len(points) == 0 {
		return nil
	}
	fmt.Fprintf(s.out, "  %14s  %8s  %5s\n", "interactions", "entropy", "hits")
	step := max(1, (len(points)+maxEntropyRows-1)/maxEntropyRows)
	for j := 0; j < len(points); j += step {
		p := points[j]
		fmt.Fprintf(s.out, "  %14d  %8.4f  %5d\n", p.Interactions, p.Entropy, p.Hits)
	}
	return nil
}

func (s *Shell) handleRuns() error {
	batches := s.runner.Registry().List()
	if len(batches) == 0 {
		fmt.Fprintln(s.out, "No batches.")
		return nil
	}
	current := s.Batch()
	for _, b := range batches {
		sum := b.Status()
		mark := " "
		if current != nil && b.ID() == current.ID() {
			mark = "*"
		}
		fmt.Fprintf(s.out, "%s %s  %-9s %d/%d  %s\n", mark, shortID(sum.ID),
			sum.Status, sum.PhasesDone, sum.PhasesTotal, describeConfig(sum.Config))
	}
	return nil
}

func (s *Shell) handleAttach(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return cerrors.Command(cerrors.ErrCommandInvalidArgs, "usage: /attach <run-id>")
	}
	b, err := findBatch(s.runner.Registry(), args[0])
	if err != nil {
		return err
	}
	s.attach(b)
	if s.rl != nil {
		s.watch(ctx, b)
	}
	fmt.Fprintf(s.out, "Attached to batch %s (%s)\n", shortID(b.ID()), b.Status().Status)
	return nil
}

// findBatch resolves a full ID or a unique prefix.
func findBatch(reg *simulation.Registry, id string) (*simulation.Batch, error) {
	if b, err := reg.Get(id); err == nil {
		return b, nil
	}
	var match *simulation.Batch
	for _, b := range reg.List() {
		if strings.HasPrefix(b.ID(), id) {
			if match != nil {
				return nil, cerrors.Commandf(cerrors.ErrCommandInvalidArgs, "ambiguous run id %q", id)
			}
			match = b
		}
	}
	if match == nil {
		return nil, cerrors.Simulation(cerrors.ErrRunNotFound, "run not found").WithContext("id", id)
	}
	return match, nil
}

func (s *Shell) handleExport(args []string) error {
	if len(args) == 0 {
		return cerrors.Command(cerrors.ErrCommandInvalidArgs, "usage: /export <file> [instance]")
	}
	results, err := s.finishedResults()
	if err != nil {
		return err
	}
	i, err := instanceArg(args[1:], len(results))
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to create export file").
			WithContext("path", args[0])
	}
	defer f.Close()

	if i >= 0 {
		err = export.WritePlotCSV(f, results[i].Plot, s.csv)
	} else {
		err = export.WriteRecordsCSV(f, export.Average(results), s.csv)
	}
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to write export file").
			WithContext("path", args[0])
	}
	fmt.Fprintf(s.out, "Wrote %s\n", args[0])
	return nil
}

// watch announces when b ends, as long as it is still attached.
func (s *Shell) watch(ctx context.Context, b *simulation.Batch) {
	go func() {
		select {
		case <-b.Done():
		case <-ctx.Done():
			return
		}
		if s.Batch() != b {
			return
		}
		sum := b.Status()
		fmt.Fprintf(s.out, "batch %s %s (%d/%d phases)\n", shortID(sum.ID),
			help.Status(string(sum.Status)), sum.PhasesDone, sum.PhasesTotal)
		if s.rl != nil {
			s.rl.Refresh()
		}
	}()
}

func describeConfig(cfg simulation.Config) string {
	return fmt.Sprintf("n=%d j=%d K=%d x%d %s/%s", cfg.AgentCount, cfg.SampleSize,
		cfg.UpperBoundK, cfg.SimulationCount, cfg.Model, cfg.InitialDistribution)
}

func abortedMark(aborted bool) string {
	if aborted {
		return " [aborted]"
	}
	return ""
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
