// Package help provides formatted help output for the consensus run shell.
//
// Commands are listed by category with inline examples, drawn with Unicode
// box characters and ANSI colours. Without colour support the output stays
// readable as plain text.
//
//	renderer := help.NewRenderer(os.Stdout)
//	renderer.RenderFull()             // every category
//	renderer.RenderCommand("pause")   // one command in detail
//
// The Commands registry is also the source the shell completes against.
package help

import "io"

// Box drawing characters. Corners are rounded.
const (
	BoxTopLeft     = "╭"
	BoxTopRight    = "╮"
	BoxBottomLeft  = "╰"
	BoxBottomRight = "╯"

	BoxHorizontal = "─"
	BoxVertical   = "│"

	BoxTeeLeft  = "├"
	BoxTeeRight = "┤"
)

// ANSI color codes for styled output.
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorRed    = "\033[31m"
	ColorGray   = "\033[90m"
)

// Renderer formats and writes help output.
type Renderer struct {
	w io.Writer
}

// NewRenderer creates a new help renderer that writes to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}
