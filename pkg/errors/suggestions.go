package errors

import (
	"sort"
	"strings"
)

// Suggestion is a remediation hint with optional context conditions.
type Suggestion struct {
	// Text is the suggestion message displayed to the user.
	Text string

	// Conditions must all match the error context for the suggestion to apply.
	// Empty conditions match any context.
	Conditions map[string]string

	// Priority orders suggestions; higher first.
	Priority int
}

// Matches returns true if this suggestion's conditions match the given context.
func (s *Suggestion) Matches(ctx map[string]string) bool {
	for key, value := range s.Conditions {
		if ctx[key] != value {
			return false
		}
	}
	return true
}

// Registry maps error codes to their remediation suggestions.
type Registry struct {
	suggestions map[string][]Suggestion
}

// NewRegistry creates a new suggestion registry.
func NewRegistry() *Registry {
	return &Registry{
		suggestions: make(map[string][]Suggestion),
	}
}

// Register adds a suggestion for an error code.
func (r *Registry) Register(code, text string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text})
}

// RegisterWithCondition adds a suggestion that only applies when the context matches.
func (r *Registry) RegisterWithCondition(code, text string, conditions map[string]string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text, Conditions: conditions})
}

// RegisterSuggestion adds a complete Suggestion.
func (r *Registry) RegisterSuggestion(code string, suggestion Suggestion) *Registry {
	r.suggestions[code] = append(r.suggestions[code], suggestion)
	return r
}

// Get returns the suggestions for code that match ctx, highest priority first.
func (r *Registry) Get(code string, ctx map[string]string) []string {
	var matching []Suggestion
	for _, s := range r.suggestions[code] {
		if s.Matches(ctx) {
			matching = append(matching, s)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Priority > matching[j].Priority
	})

	result := make([]string, len(matching))
	for i, s := range matching {
		result[i] = s.Text
	}
	return result
}

// HasSuggestions returns true if any suggestions exist for the error code.
func (r *Registry) HasSuggestions(code string) bool {
	return len(r.suggestions[code]) > 0
}

// Context keys used to select conditional suggestions.
const (
	ContextField = "field"
	ContextModel = "model"
)

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide suggestion registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func init() {
	r := defaultRegistry

	r.Register(ErrConfigNotFound, "Create a default config with: consensus config init")
	r.Register(ErrConfigNotFound, "Or pass an explicit file with --config <path>")
	r.Register(ErrConfigParseFailed, "Check the YAML indentation; use spaces, not tabs")
	r.Register(ErrConfigReadFailed, "Check file permissions on the config file")
	r.Register(ErrConfigWriteFailed, "Check that the config directory is writable")

	r.RegisterWithCondition(ErrConfigInvalid, "sample_size must be at least 1 and smaller than agent_count",
		map[string]string{ContextField: "sample_size"})
	r.RegisterWithCondition(ErrConfigInvalid, "agent_count must be positive",
		map[string]string{ContextField: "agent_count"})
	r.RegisterWithCondition(ErrConfigInvalid, "upper_bound_k must be 2 or greater; the sweep starts at K=2",
		map[string]string{ContextField: "upper_bound_k"})
	r.RegisterWithCondition(ErrConfigInvalid, "simulation_count must be at least 1",
		map[string]string{ContextField: "simulation_count"})
	r.RegisterWithCondition(ErrConfigInvalid, "model must be one of: population, gossip",
		map[string]string{ContextField: "model"})
	r.RegisterWithCondition(ErrConfigInvalid, "initial_distribution must be one of: even, uniform",
		map[string]string{ContextField: "initial_distribution"})
	r.RegisterSuggestion(ErrConfigInvalid, Suggestion{
		Text:     "Show the effective configuration with: consensus config show",
		Priority: -1,
	})

	r.Register(ErrEmptyAgents, "This indicates a bug: the population must never be empty after validation")
	r.Register(ErrEmptySample, "Set sample_size to at least 1")

	r.Register(ErrRunNotFound, "List active runs with GET /api/runs or /status in the shell")
	r.Register(ErrCommandUnknown, "Type /help for available commands")

	r.Register(ErrNetworkListenFailed, "Check that the port is free or choose another with --port")

	r.Register(ErrIOParseFailed, "The results file may be corrupt; move it aside to start a new one")
	r.Register(ErrIOWriteFailed, "Check that the output directory exists and is writable")
	r.Register(ErrStoreFailed, "Check the archive path in export.archive_path")
}

// AttachSuggestions adds the registry's suggestions for err's code and context.
func AttachSuggestions(err *ConsensusError) *ConsensusError {
	if err == nil {
		return nil
	}
	err.Suggestions = append(err.Suggestions, defaultRegistry.Get(err.Code, err.Context)...)
	return err
}

// FormatSuggestionList renders suggestions as an arrow-prefixed list.
func FormatSuggestionList(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, s := range suggestions {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("→ ")
		sb.WriteString(s)
	}
	return sb.String()
}
