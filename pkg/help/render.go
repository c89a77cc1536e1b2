package help

import (
	"fmt"
	"strings"
)

// Layout for 80-column terminals.
const (
	// commandColumnWidth fits the longest name with alias: "/play (or /resume)".
	commandColumnWidth = 22

	indentCategory = "  "
	indentCommand  = "    "
	indentExample  = "      "

	// maxInlineExamples limits examples shown in the full listing.
	maxInlineExamples = 2
)

// RenderFull renders every category followed by the shortcuts section.
func (r *Renderer) RenderFull() {
	r.writeln("")
	r.writeln(Header(indentCategory + "Consensus Shell Commands"))
	r.writeln("")

	for _, cat := range CategoryOrder {
		r.renderCategory(cat)
	}
	r.RenderShortcuts()
}

// RenderCommand renders usage and every example for one command. It
// returns false if the command is not found.
func (r *Renderer) RenderCommand(name string) bool {
	cmd, found := GetCommand(name)
	if !found {
		r.writeln(fmt.Sprintf(indentCategory+"Command '%s' not found. Use /help to see all commands.", name))
		return false
	}

	r.writeln("")
	r.writeln(indentCategory + CommandWithShortcut(cmd.Name, cmd.Shortcut))
	r.writeln(indentCategory + Dim(cmd.Description))
	r.writeln("")
	r.writeln(indentCategory + Bold("Usage:") + " " + StyleExample(cmd.Usage))
	r.writeln("")

	if len(cmd.Examples) > 0 {
		r.writeln(indentCategory + Bold("Examples:"))
		for _, ex := range cmd.Examples {
			r.writeln(indentCommand + ExampleLine(ex.Command, ex.Description))
		}
		r.writeln("")
	}
	return true
}

// RenderShortcuts renders aliases and key bindings.
func (r *Renderer) RenderShortcuts() {
	r.writeln("")
	r.writeln(indentCategory + StyleCategory("💡 Shortcuts & Tips"))
	r.writeln(indentCategory + separator())

	r.writeln(indentCommand + Dim(BoxVertical+" ") + Dim("Aliases: ") +
		Shortcut("/h") + Dim("→help  ") +
		Shortcut("/s") + Dim("→status  ") +
		Shortcut("/stop") + Dim("→abort  ") +
		Shortcut("/q") + Dim("→quit"))

	r.writeln(indentCommand + Dim(BoxVertical+" ") + Dim("Keys:    ") +
		Shortcut("Tab") + Dim(" complete  ") +
		Shortcut("Ctrl+D") + Dim(" quit  ") +
		Shortcut("↑↓") + Dim(" history"))

	r.writeln("")
}

func (r *Renderer) renderCategory(cat Category) {
	commands := GetCommandsByCategory(cat)
	if len(commands) == 0 {
		return
	}

	r.writeln(indentCategory + StyleCategory(cat.Icon()+" "+cat.DisplayName()))
	r.writeln(indentCategory + separator())
	for _, cmd := range commands {
		r.renderCommandLine(cmd)
	}
	r.writeln("")
}

// renderCommandLine writes "│ /name (or /alias)   description" plus up to
// maxInlineExamples examples.
func (r *Renderer) renderCommandLine(cmd Command) {
	cmdPart := PadRight(CommandWithShortcut(cmd.Name, cmd.Shortcut), commandColumnWidth)
	r.writeln(indentCommand + Dim(BoxVertical+" ") + cmdPart + Dim(cmd.Description))

	for _, ex := range cmd.Examples[:min(len(cmd.Examples), maxInlineExamples)] {
		r.writeln(indentExample + Dim(BoxVertical+"   e.g. ") + HighlightExampleCommand(ex.Command))
	}
}

func separator() string {
	return Dim(BoxTeeLeft + strings.Repeat(BoxHorizontal, commandColumnWidth+20))
}

func (r *Renderer) writeln(s string) {
	fmt.Fprintln(r.w, s)
}
