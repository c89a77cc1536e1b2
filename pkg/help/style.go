package help

import "strings"

// Header returns text styled as a header (bold + cyan).
func Header(text string) string {
	return ColorBold + ColorCyan + text + ColorReset
}

// StyleCategory returns text styled as a category label (bold + green).
func StyleCategory(text string) string {
	return ColorBold + ColorGreen + text + ColorReset
}

// StyleCommand returns text styled as a command name (cyan).
func StyleCommand(text string) string {
	return ColorCyan + text + ColorReset
}

// StyleExample returns text styled as an example command (yellow).
func StyleExample(text string) string {
	return ColorYellow + text + ColorReset
}

// Shortcut returns text styled as a keyboard shortcut or alias (bold + yellow).
func Shortcut(text string) string {
	return ColorBold + ColorYellow + text + ColorReset
}

// Dim returns text in muted gray.
func Dim(text string) string {
	return ColorGray + text + ColorReset
}

// Bold returns text in bold style.
func Bold(text string) string {
	return ColorBold + text + ColorReset
}

// Argument returns text styled as a command argument (yellow).
func Argument(text string) string {
	return ColorYellow + text + ColorReset
}

// Status colours a batch status: green when finished, yellow when paused or
// aborted, red when failed.
func Status(status string) string {
	switch status {
	case "finished":
		return ColorGreen + status + ColorReset
	case "aborted", "paused":
		return ColorYellow + status + ColorReset
	case "failed":
		return ColorRed + status + ColorReset
	}
	return status
}

// Arrow returns a dim " -> " separator.
func Arrow() string {
	return Dim(" -> ")
}

// CommandWithShortcut formats a command with its alias: "/help (or /h)".
func CommandWithShortcut(cmd, shortcut string) string {
	if shortcut == "" {
		return StyleCommand(cmd)
	}
	return StyleCommand(cmd) + Dim(" (or ") + Shortcut(shortcut) + Dim(")")
}

// HighlightExampleCommand shows the command word in cyan and its arguments
// in yellow.
func HighlightExampleCommand(cmd string) string {
	name, args, _ := strings.Cut(cmd, " ")
	if name == "" {
		return ""
	}
	result := StyleCommand(name)
	if args = strings.TrimLeft(args, " "); args != "" {
		result += Argument(" " + args)
	}
	return result
}

// ExampleLine formats an example with its description:
// "  /plot 2  -> Interactions per K for instance 2".
func ExampleLine(cmd, desc string) string {
	return "  " + HighlightExampleCommand(cmd) + Arrow() + Dim(desc)
}
