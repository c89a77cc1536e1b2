package help

import "strings"

// Box renders bordered panels of a fixed inner width.
type Box struct {
	// Width is the inner content width (excluding border characters)
	Width int
}

// NewBox creates a new Box with the specified inner content width.
func NewBox(width int) *Box {
	return &Box{Width: width}
}

// Top returns the top border of the box: ╭───────────╮
func (b *Box) Top() string {
	return BoxTopLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxTopRight
}

// Mid returns a middle separator line: ├───────────┤
func (b *Box) Mid() string {
	return BoxTeeLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxTeeRight
}

// Bottom returns the bottom border of the box: ╰───────────╯
func (b *Box) Bottom() string {
	return BoxBottomLeft + strings.Repeat(BoxHorizontal, b.Width) + BoxBottomRight
}

// Row returns a left-aligned content row padded to the box width. Longer
// content is truncated.
func (b *Box) Row(content string) string {
	visibleLen := visibleLength(content)
	if visibleLen >= b.Width {
		return BoxVertical + truncateVisible(content, b.Width) + BoxVertical
	}
	return BoxVertical + content + strings.Repeat(" ", b.Width-visibleLen) + BoxVertical
}

// KeyValue returns a row of the form "│ key    value │" with keys padded to
// keyWidth.
func (b *Box) KeyValue(key, value string, keyWidth int) string {
	return b.Row(" " + PadRight(Dim(key), keyWidth) + " " + value)
}

// visibleLength returns the visible length of a string, excluding ANSI escape codes.
func visibleLength(s string) int {
	length := 0
	inEscape := false

	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if r == 'm' {
				inEscape = false
			}
			continue
		}
		length++
	}

	return length
}

// truncateVisible truncates a string to the specified visible width,
// preserving ANSI escape codes and appending a reset code if needed.
func truncateVisible(s string, width int) string {
	var result strings.Builder
	visible := 0
	inEscape := false
	hasOpenEscape := false

	for _, r := range s {
		if r == '\033' {
			inEscape = true
			hasOpenEscape = true
			result.WriteRune(r)
			continue
		}
		if inEscape {
			result.WriteRune(r)
			if r == 'm' {
				inEscape = false
				if strings.HasSuffix(result.String(), ColorReset) {
					hasOpenEscape = false
				}
			}
			continue
		}

		if visible >= width {
			break
		}
		result.WriteRune(r)
		visible++
	}

	if hasOpenEscape {
		result.WriteString(ColorReset)
	}
	return result.String()
}

// PadRight pads a string to the specified visible width with spaces on the right.
func PadRight(s string, width int) string {
	visLen := visibleLength(s)
	if visLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visLen)
}
