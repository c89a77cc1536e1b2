package simulation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/logging"
)

// Result is what an instance reports when it finishes or is aborted.
type Result struct {
	RunID    string       `json:"run_id"`
	Instance int          `json:"instance"`
	Config   Config       `json:"config"`
	Seed     uint64       `json:"seed"`
	Plot     Plot         `json:"plot"`
	Entropy  EntropyCurve `json:"entropy"`
	Aborted  bool         `json:"aborted"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds the instance's PCG source.
func WithSeed(seed uint64) Option {
	return func(s *Simulation) { s.seed = seed }
}

// WithRandomSource injects the random source directly, overriding the seed.
func WithRandomSource(rng RandomSource) Option {
	return func(s *Simulation) { s.rng = rng }
}

// WithObserver sets the receiver of outbound events.
func WithObserver(o Observer) Option {
	return func(s *Simulation) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithRunID sets the run ID stamped on events.
func WithRunID(id string) Option {
	return func(s *Simulation) { s.runID = id }
}

// WithInstance sets the instance index within its batch.
func WithInstance(i int) Option {
	return func(s *Simulation) { s.instance = i }
}

// startingAt begins the sweep at k instead of 2. With k=1 the entry phase
// holds a single opinion and is at consensus before any interaction.
func startingAt(k uint16) Option {
	return func(s *Simulation) { s.firstK = k }
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Simulation is one instance of a K-sweep. Run must be called at most once.
type Simulation struct {
	cfg      Config
	runID    string
	instance int
	seed     uint64
	rng      RandomSource
	rule     InteractionRule
	control  *SharedControlState
	observer Observer
	logger   *slog.Logger

	// firstK is the K of the entry phase, 2 unless set by startingAt.
	firstK uint16

	// Owned by the execution goroutine.
	k            uint16
	pop          *Population
	dist         *OpinionDistribution
	entropy      *EntropyTracker
	plot         Plot
	consensus    bool
	observerDown bool
}

// New validates cfg and prepares an instance.
func New(cfg Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{
		cfg:     cfg,
		control: NewSharedControlState(),
		firstK:  2,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = NewRunID()
	}
	if s.rng == nil {
		if s.seed == 0 {
			s.seed = RandomSeed()
		}
		s.rng = NewSource(s.seed)
	}
	s.logger = logging.OrDefault(s.logger).With("run", s.runID, "instance", s.instance)
	s.rule = NewRule(cfg.Model, int(cfg.SampleSize))
	return s, nil
}

// RunID returns the instance's run ID.
func (s *Simulation) RunID() string { return s.runID }

// Seed returns the seed the instance was created with. Zero if a random
// source was injected.
func (s *Simulation) Seed() uint64 { return s.seed }

// Control returns the instance's shared control state.
func (s *Simulation) Control() *SharedControlState { return s.control }

// Run executes the K-sweep until the last phase reaches consensus, an Abort
// arrives on controls, or ctx is cancelled. controls may be nil.
// A Finish event is always published before Run returns; an aborted run
// returns its partial result and a nil error.
func (s *Simulation) Run(ctx context.Context, controls <-chan ControlMessage) (Result, error) {
	started := time.Now().UTC()

	done := make(chan struct{})
	defer close(done)
	if controls != nil {
		drain(controls, s.control)
		go listen(controls, s.control, done)
	}
	if ctx.Err() != nil {
		s.control.Exit()
	}
	stop := context.AfterFunc(ctx, s.control.Exit)
	defer stop()

	s.entropy = NewEntropyTracker()
	s.plot = Plot{}
	s.startPhase(s.firstK)

	for {
		// A phase that reached consensus is recorded before the control
		// state is consulted, so an Abort cannot discard it.
		if s.consensus {
			if s.completePhase() {
				return s.finish(started, false), nil
			}
		}

		switch s.control.Await() {
		case StateExit:
			s.logger.Info("simulation aborted", "k", s.k, "interactions", s.dist.InteractionCount())
			return s.finish(started, true), nil
		case StateReadyForNext:
			if !s.control.ConsumeReadyForNext() {
				continue
			}
			s.startPhase(s.k + 1)
			s.publish(Event{Type: EventNext, K: s.k})
			continue
		}

		if err := s.step(); err != nil {
			if cerrors.IsCode(err, cerrors.ErrEmptySample) {
				s.logger.Warn("interaction skipped", "error", err)
				continue
			}
			s.logger.Error("simulation failed", "error", err)
			return s.finish(started, true), err
		}
	}
}

// startPhase rebuilds the population and distribution for k opinions.
func (s *Simulation) startPhase(k uint16) {
	s.k = k

	var counts []uint64
	switch s.cfg.InitialDistribution {
	case DistributionUniform:
		counts = UniformCounts(s.cfg.AgentCount, k, s.rng)
	case DistributionWeighted:
		counts = WeightedCounts(s.cfg.AgentCount, s.cfg.Weights[:k])
	default:
		counts = EvenCounts(s.cfg.AgentCount, k)
	}
	s.pop = NewPopulation(counts)
	s.dist = NewOpinionDistribution(counts)
	s.consensus = s.dist.HasConsensus()

	s.entropy.BeginPhase()
	s.entropy.Observe(s.dist, s.epoch())

	s.logger.Debug("phase started", "k", k, "agents", s.cfg.AgentCount)
	s.publishUpdate()
}

// step performs one interaction or round and updates the bookkeeping.
func (s *Simulation) step() error {
	changes, err := s.rule.Interact(s.pop, s.rng)
	if err != nil {
		return err
	}
	s.dist.RecordInteraction()

	n := s.dist.N()
	hit := false
	for _, c := range changes {
		if s.dist.Update(c.Old, c.New) == n {
			hit = true
		}
	}
	if hit {
		s.consensus = s.dist.HasConsensus()
	}

	s.entropy.Observe(s.dist, s.epoch())

	if s.consensus || s.dist.InteractionCount()%s.cfg.updateInterval() == 0 {
		s.publishUpdate()
	}
	return nil
}

// completePhase records the plot point and reports whether the sweep is done.
func (s *Simulation) completePhase() bool {
	interactions := s.dist.InteractionCount()
	s.plot.Append(s.k, interactions)
	s.consensus = false
	s.logger.Info("consensus reached", "k", s.k, "interactions", interactions)

	if s.k >= s.cfg.UpperBoundK {
		return true
	}
	s.control.MarkReadyForNext()
	return false
}

func (s *Simulation) finish(started time.Time, aborted bool) Result {
	s.control.Exit()
	res := Result{
		RunID:    s.runID,
		Instance: s.instance,
		Config:   s.cfg,
		Seed:     s.seed,
		Plot:     s.plot.Clone(),
		Entropy:  s.entropy.Curve(),
		Aborted:  aborted,
		Started:  started,
		Finished: time.Now().UTC(),
	}
	s.publish(Event{Type: EventFinish, K: s.k, Result: &res})
	return res
}

func (s *Simulation) epoch() uint64 {
	return s.rule.Epoch(s.cfg.AgentCount)
}

func (s *Simulation) publishUpdate() {
	if s.observer == nil {
		return
	}
	snap := s.dist.Snapshot()
	s.publish(Event{Type: EventUpdate, K: s.k, Snapshot: &snap})
}

func (s *Simulation) publish(ev Event) {
	if s.observer == nil {
		return
	}
	ev.RunID = s.runID
	ev.Instance = s.instance
	if err := s.observer.Publish(ev); err != nil {
		if !s.observerDown {
			s.logger.Warn("observer rejected event", "type", ev.Type, "error", err)
			s.observerDown = true
		}
	}
}
