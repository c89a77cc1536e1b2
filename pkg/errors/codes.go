package errors

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	// Usually a YAML syntax error or invalid structure.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are out of range.
	// Raised before any simulation goroutine starts.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigReadFailed indicates the config file exists but is not readable.
	ErrConfigReadFailed = "CONFIG_READ_FAILED"

	// ErrConfigWriteFailed indicates the config file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Simulation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrEmptyAgents indicates an interaction was attempted on an empty population.
	// Fatal for the instance.
	ErrEmptyAgents = "SIM_EMPTY_AGENTS"

	// ErrEmptySample indicates a sample was requested from zero candidates.
	// The interaction is skipped and the agent keeps its opinion.
	ErrEmptySample = "SIM_EMPTY_SAMPLE"

	// ErrChannelClosed indicates an observer stopped accepting events.
	ErrChannelClosed = "SIM_CHANNEL_CLOSED"

	// ErrRunNotFound indicates no run with the requested ID is registered.
	ErrRunNotFound = "SIM_RUN_NOT_FOUND"

	// ErrRunFinished indicates a control message targeted a finished run.
	ErrRunFinished = "SIM_RUN_FINISHED"
)

// -----------------------------------------------------------------------------
// Command Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrCommandUnknown indicates the shell command is not recognised.
	ErrCommandUnknown = "COMMAND_UNKNOWN"

	// ErrCommandInvalidArgs indicates the command arguments are malformed.
	ErrCommandInvalidArgs = "COMMAND_INVALID_ARGS"
)

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrValidationInvalidValue indicates a request field has an invalid value.
	ErrValidationInvalidValue = "VALIDATION_INVALID_VALUE"

	// ErrValidationOutOfRange indicates a numeric value is outside its bounds.
	ErrValidationOutOfRange = "VALIDATION_OUT_OF_RANGE"
)

// -----------------------------------------------------------------------------
// Network Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrNetworkListenFailed indicates the HTTP server could not bind.
	ErrNetworkListenFailed = "NETWORK_LISTEN_FAILED"
)

// -----------------------------------------------------------------------------
// IO Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrIOReadFailed indicates a results file could not be read.
	ErrIOReadFailed = "IO_READ_FAILED"

	// ErrIOWriteFailed indicates an export could not be written.
	ErrIOWriteFailed = "IO_WRITE_FAILED"

	// ErrIOParseFailed indicates a results file is not valid JSON.
	ErrIOParseFailed = "IO_PARSE_FAILED"

	// ErrStoreFailed indicates the run archive rejected an operation.
	ErrStoreFailed = "IO_STORE_FAILED"
)

// -----------------------------------------------------------------------------
// Internal Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrInternalInvariant indicates a bookkeeping invariant was violated.
	ErrInternalInvariant = "INTERNAL_INVARIANT"
)
