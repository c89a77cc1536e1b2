package help

// Category groups commands in help output.
type Category string

const (
	// CategoryControl steers the attached batch: /pause, /play, /abort
	CategoryControl Category = "control"

	// CategoryInspect reads batch state: /status, /plot, /entropy, /runs, /attach, /export
	CategoryInspect Category = "inspect"

	// CategoryGeneral contains /help and /quit
	CategoryGeneral Category = "general"
)

// CategoryInfo provides display metadata for a command category.
type CategoryInfo struct {
	DisplayName string
	Icon        string
}

// CategoryOrder defines the order in which categories appear in help output.
var CategoryOrder = []Category{
	CategoryControl,
	CategoryInspect,
	CategoryGeneral,
}

// Categories maps each Category to its display information.
var Categories = map[Category]CategoryInfo{
	CategoryControl: {DisplayName: "Run Control", Icon: "⏯"},
	CategoryInspect: {DisplayName: "Inspection", Icon: "🔍"},
	CategoryGeneral: {DisplayName: "General", Icon: "ℹ"},
}

// DisplayName returns the human-readable display name for the category.
func (c Category) DisplayName() string {
	if info, ok := Categories[c]; ok {
		return info.DisplayName
	}
	return string(c)
}

// Icon returns the icon for the category.
func (c Category) Icon() string {
	if info, ok := Categories[c]; ok {
		return info.Icon
	}
	return ""
}

// Command is a shell command and its help metadata.
type Command struct {
	// Name includes the leading slash, e.g. "/pause".
	Name string

	// Shortcut is an optional alias, e.g. "/resume" for "/play".
	Shortcut string

	Category    Category
	Description string

	// Usage shows the syntax, e.g. "/plot [instance]".
	Usage string

	Examples []Example

	// Args names what the command's first argument completes against:
	// "instance", "run" or "command". Empty means no completion.
	Args string
}

// Example is a concrete invocation of a command.
type Example struct {
	Command     string
	Description string
}

// Argument kinds for Command.Args.
const (
	ArgInstance = "instance"
	ArgRun      = "run"
	ArgCommand  = "command"
)

// Commands is the registry of shell commands. The shell dispatches and
// completes against it.
var Commands = []Command{
	{
		Name:        "/pause",
		Category:    CategoryControl,
		Description: "Pause every instance of the attached batch",
		Usage:       "/pause",
	},
	{
		Name:        "/play",
		Shortcut:    "/resume",
		Category:    CategoryControl,
		Description: "Resume a paused batch",
		Usage:       "/play",
	},
	{
		Name:        "/abort",
		Shortcut:    "/stop",
		Category:    CategoryControl,
		Description: "Stop the batch; instances keep the plot gathered so far",
		Usage:       "/abort [-y]",
		Examples: []Example{
			{Command: "/abort", Description: "Ask for confirmation, then abort"},
			{Command: "/abort -y", Description: "Abort without asking"},
		},
	},

	{
		Name:        "/status",
		Shortcut:    "/s",
		Category:    CategoryInspect,
		Description: "Show batch state, phases done and the latest snapshots",
		Usage:       "/status",
	},
	{
		Name:        "/plot",
		Category:    CategoryInspect,
		Description: "Show interactions per K for a finished instance",
		Usage:       "/plot [instance]",
		Args:        ArgInstance,
		Examples: []Example{
			{Command: "/plot", Description: "Mean interactions per K over all instances"},
			{Command: "/plot 2", Description: "Interactions per K for instance 2"},
		},
	},
	{
		Name:        "/entropy",
		Category:    CategoryInspect,
		Description: "Show the entropy curve of a finished instance",
		Usage:       "/entropy [instance]",
		Args:        ArgInstance,
		Examples: []Example{
			{Command: "/entropy 0", Description: "Entropy checkpoints of instance 0"},
		},
	},
	{
		Name:        "/runs",
		Category:    CategoryInspect,
		Description: "List the batches known to this process",
		Usage:       "/runs",
	},
	{
		Name:        "/attach",
		Category:    CategoryInspect,
		Description: "Switch the shell to another batch",
		Usage:       "/attach <run-id>",
		Args:        ArgRun,
		Examples: []Example{
			{Command: "/attach 3f2a", Description: "Attach to the batch whose ID starts with 3f2a"},
		},
	},
	{
		Name:        "/export",
		Category:    CategoryInspect,
		Description: "Write averaged records, or one instance's plot, as CSV",
		Usage:       "/export <file> [instance]",
		Examples: []Example{
			{Command: "/export runs.csv", Description: "Averaged interactions per K"},
			{Command: "/export plot.csv 1", Description: "Plot of instance 1"},
		},
	},

	{
		Name:        "/help",
		Shortcut:    "/h",
		Category:    CategoryGeneral,
		Description: "Show this help message",
		Usage:       "/help [command]",
		Args:        ArgCommand,
		Examples: []Example{
			{Command: "/help", Description: "Show all commands"},
			{Command: "/help abort", Description: "Show detailed /abort help"},
		},
	},
	{
		Name:        "/quit",
		Shortcut:    "/q",
		Category:    CategoryGeneral,
		Description: "Leave the shell and abort the batch if it is still running",
		Usage:       "/quit",
	},
}

// GetCommandsByCategory returns all commands in a given category.
func GetCommandsByCategory(cat Category) []Command {
	var result []Command
	for _, cmd := range Commands {
		if cmd.Category == cat {
			result = append(result, cmd)
		}
	}
	return result
}

// GetCommand returns a command by name or shortcut, with or without the
// leading slash.
func GetCommand(name string) (Command, bool) {
	if len(name) > 0 && name[0] != '/' {
		name = "/" + name
	}
	for _, cmd := range Commands {
		if cmd.Name == name || cmd.Shortcut == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// Names returns every command name and shortcut without the slash, in
// registry order.
func Names() []string {
	var names []string
	for _, cmd := range Commands {
		names = append(names, cmd.Name[1:])
		if cmd.Shortcut != "" {
			names = append(names, cmd.Shortcut[1:])
		}
	}
	return names
}
