package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// latexSpecialChars have special meaning in LaTeX and must be escaped.
var latexSpecialChars = map[rune]string{
	'\\': `\textbackslash{}`,
	'{':  `\{`,
	'}':  `\}`,
	'$':  `\$`,
	'&':  `\&`,
	'#':  `\#`,
	'%':  `\%`,
	'_':  `\_`,
	'^':  `\textasciicircum{}`,
	'~':  `\textasciitilde{}`,
}

// LaTeX table column alignments.
const (
	AlignLeft   = "l"
	AlignCenter = "c"
	AlignRight  = "r"
)

// LaTeX table style options.
const (
	StylePlain    = "plain"    // Standard LaTeX tabular
	StyleBooktabs = "booktabs" // Professional booktabs style
)

// Escape converts a string to be safely included in LaTeX documents.
// Newlines become spaces.
func Escape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) * 2)

	for _, r := range s {
		if r == '\n' {
			sb.WriteRune(' ')
			continue
		}
		if escaped, ok := latexSpecialChars[r]; ok {
			sb.WriteString(escaped)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// TableConfig specifies options for LaTeX table generation.
type TableConfig struct {
	// Style determines the table formatting style.
	// Supported: "plain", "booktabs" (default)
	Style string

	// Caption is the table caption (optional).
	Caption string

	// Label is the LaTeX label for cross-references (optional).
	// Example: "tab:convergence"
	Label string

	// ColumnAlignments specifies alignment for each column.
	// Missing entries default to AlignLeft.
	ColumnAlignments []string
}

// DefaultTableConfig returns a booktabs TableConfig.
func DefaultTableConfig() *TableConfig {
	return &TableConfig{Style: StyleBooktabs}
}

// TableBuilder constructs LaTeX tables from data.
type TableBuilder struct {
	config  *TableConfig
	headers []string
	rows    [][]string
}

// NewTableBuilder creates a new table builder with the given configuration.
// If config is nil, DefaultTableConfig() is used.
func NewTableBuilder(config *TableConfig) *TableBuilder {
	if config == nil {
		config = DefaultTableConfig()
	}
	return &TableBuilder{config: config}
}

// SetHeaders sets the column headers for the table.
func (tb *TableBuilder) SetHeaders(headers ...string) *TableBuilder {
	tb.headers = escapeAll(headers)
	return tb
}

// AddRow adds a data row to the table.
func (tb *TableBuilder) AddRow(values ...string) *TableBuilder {
	tb.rows = append(tb.rows, escapeAll(values))
	return tb
}

func escapeAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = Escape(strings.TrimSpace(v))
	}
	return out
}

// Build generates the complete LaTeX table code.
func (tb *TableBuilder) Build() string {
	numCols := len(tb.headers)
	if numCols == 0 && len(tb.rows) > 0 {
		numCols = len(tb.rows[0])
	}
	if numCols == 0 {
		return ""
	}

	top, mid, bottom := `\hline`, `\hline`, `\hline`
	if tb.config.Style == StyleBooktabs {
		top, mid, bottom = `\toprule`, `\midrule`, `\bottomrule`
	}

	wrapped := tb.config.Caption != "" || tb.config.Label != ""

	var sb strings.Builder
	if wrapped {
		sb.WriteString("\\begin{table}[htbp]\n\\centering\n")
	}

	sb.WriteString("\\begin{tabular}{")
	for i := 0; i < numCols; i++ {
		if i < len(tb.config.ColumnAlignments) {
			sb.WriteString(tb.config.ColumnAlignments[i])
		} else {
			sb.WriteString(AlignLeft)
		}
	}
	sb.WriteString("}\n")
	sb.WriteString(top + "\n")

	if len(tb.headers) > 0 {
		writeRow(&sb, tb.headers, numCols)
		sb.WriteString(mid + "\n")
	}
	for _, row := range tb.rows {
		writeRow(&sb, row, numCols)
	}

	sb.WriteString(bottom + "\n")
	sb.WriteString("\\end{tabular}\n")

	if tb.config.Caption != "" {
		sb.WriteString("\\caption{" + Escape(tb.config.Caption) + "}\n")
	}
	if tb.config.Label != "" {
		sb.WriteString("\\label{" + tb.config.Label + "}\n")
	}
	if wrapped {
		sb.WriteString("\\end{table}\n")
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, row []string, numCols int) {
	for i := 0; i < numCols; i++ {
		if i > 0 {
			sb.WriteString(" & ")
		}
		if i < len(row) {
			sb.WriteString(row[i])
		}
	}
	sb.WriteString(" \\\\\n")
}

// FormatNumber formats a float64 for LaTeX output with specified precision.
func FormatNumber(value float64, precision int) string {
	return strconv.FormatFloat(value, 'f', precision, 64)
}

// ConvergenceTable renders mean interactions per K, one column per sample
// size. Records with different agent counts or models are listed as
// separate columns, headed "j-Maj." with the agent count appended when the
// records span more than one.
func ConvergenceTable(records []Record, config *TableConfig) string {
	if len(records) == 0 {
		return ""
	}
	if config == nil {
		config = DefaultTableConfig()
	}

	ordered := append([]Record(nil), records...)
	sortRecords(ordered)

	multiN := false
	for _, rec := range ordered[1:] {
		if rec.Config.AgentCount != ordered[0].Config.AgentCount {
			multiN = true
		}
	}

	var ks []uint16
	seen := make(map[uint16]bool)
	for _, rec := range ordered {
		for _, p := range rec.Plot {
			if !seen[p.K] {
				seen[p.K] = true
				ks = append(ks, p.K)
			}
		}
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })

	headers := []string{"K"}
	for _, rec := range ordered {
		h := fmt.Sprintf("%d-Maj.", rec.Config.SampleSize)
		if multiN {
			h += fmt.Sprintf(" (n=%d)", rec.Config.AgentCount)
		}
		headers = append(headers, h)
	}

	cfg := *config
	if cfg.ColumnAlignments == nil {
		cfg.ColumnAlignments = []string{AlignLeft}
		for range ordered {
			cfg.ColumnAlignments = append(cfg.ColumnAlignments, AlignRight)
		}
	}

	tb := NewTableBuilder(&cfg).SetHeaders(headers...)
	for _, k := range ks {
		row := []string{strconv.Itoa(int(k))}
		for _, rec := range ordered {
			if mean, ok := rec.Mean(k); ok {
				row = append(row, FormatNumber(mean, 0))
			} else {
				row = append(row, "--")
			}
		}
		tb.AddRow(row...)
	}
	return tb.Build()
}

// Coordinate is one pgfplots data point.
type Coordinate struct {
	X, Y float64
}

// Coordinates renders points as a pgfplots coordinates block.
func Coordinates(points []Coordinate) string {
	var sb strings.Builder
	sb.WriteString("coordinates {")
	for i, p := range points {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("(")
		sb.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
		sb.WriteString(")")
	}
	sb.WriteString("}")
	return sb.String()
}

// markShapes maps sample sizes to pgfplots marks, starting at j=3.
var markShapes = []string{"+", "x", "asterisk", "square", "square*", "o", "*", "triangle", "triangle*", "diamond"}

func markFor(j uint8) string {
	if j >= 3 && int(j-3) < len(markShapes) {
		return markShapes[j-3]
	}
	return "diamond*"
}

// KPlot renders a pgfplots axis of opinions K against mean interactions,
// one only-marks series per record.
func KPlot(records []Record) string {
	ordered := append([]Record(nil), records...)
	sortRecords(ordered)

	var sb strings.Builder
	var legend []string
	sb.WriteString("\\begin{tikzpicture}\n")
	sb.WriteString("\\begin{axis}[xlabel={Opinions}, ylabel={Interactions}, xmode=log, log ticks with fixed point, legend columns=-1]\n")
	for _, rec := range ordered {
		points := make([]Coordinate, len(rec.Plot))
		for i, p := range rec.Plot {
			points[i] = Coordinate{X: float64(p.K), Y: p.Interactions}
		}
		fmt.Fprintf(&sb, "\\addplot+[only marks, mark=%s] %s;\n", markFor(rec.Config.SampleSize), Coordinates(points))
		legend = append(legend, fmt.Sprintf("%d-Maj.", rec.Config.SampleSize))
	}
	if len(legend) > 0 {
		sb.WriteString("\\legend{" + strings.Join(legend, ",") + "}\n")
	}
	sb.WriteString("\\end{axis}\n")
	sb.WriteString("\\end{tikzpicture}\n")
	return sb.String()
}

// EntropyPlot renders a pgfplots axis of interactions against mean entropy,
// one line per record.
func EntropyPlot(records []Record) string {
	ordered := append([]Record(nil), records...)
	sortRecords(ordered)

	var sb strings.Builder
	var legend []string
	sb.WriteString("\\begin{tikzpicture}\n")
	sb.WriteString("\\begin{axis}[xlabel={Interactions}, ylabel={Entropy}, ymin=0, ymax=1]\n")
	for _, rec := range ordered {
		points := make([]Coordinate, len(rec.Entropy))
		for i, e := range rec.Entropy {
			points[i] = Coordinate{X: float64(e.Interactions), Y: e.Entropy}
		}
		fmt.Fprintf(&sb, "\\addplot+[no marks] %s;\n", Coordinates(points))
		legend = append(legend, fmt.Sprintf("%d-Maj. (n=%d)", rec.Config.SampleSize, rec.Config.AgentCount))
	}
	if len(legend) > 0 {
		sb.WriteString("\\legend{" + strings.Join(legend, ",") + "}\n")
	}
	sb.WriteString("\\end{axis}\n")
	sb.WriteString("\\end{tikzpicture}\n")
	return sb.String()
}
