package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/r3d91ll/consensus/pkg/simulation"
)

// CSVDialect specifies the CSV format variant.
type CSVDialect string

const (
	// DialectStandard uses RFC 4180 compliant CSV.
	DialectStandard CSVDialect = "standard"

	// DialectExcel writes a UTF-8 BOM and CRLF line endings.
	DialectExcel CSVDialect = "excel"

	// DialectTSV uses tab-separated values instead of comma.
	DialectTSV CSVDialect = "tsv"
)

// utf8BOM lets Excel detect the encoding.
const utf8BOM = "\ufeff"

// CSVConfig specifies options for CSV export.
type CSVConfig struct {
	// Dialect specifies the CSV format variant.
	// Default: DialectStandard
	Dialect CSVDialect

	// IncludeHeader writes column headers as the first row.
	// Default: true
	IncludeHeader bool

	// Precision is the number of decimal places for floating-point values.
	// -1 uses the shortest representation.
	// Default: 6
	Precision int
}

// DefaultCSVConfig returns a CSVConfig with sensible defaults.
func DefaultCSVConfig() *CSVConfig {
	return &CSVConfig{
		Dialect:       DialectStandard,
		IncludeHeader: true,
		Precision:     6,
	}
}

// CSVWriter writes rows under a fixed header.
type CSVWriter struct {
	config      *CSVConfig
	out         io.Writer
	writer      *csv.Writer
	header      []string
	started     bool
	rowsWritten int
}

// NewCSVWriter creates a new CSVWriter that writes to the given io.Writer.
// If config is nil, DefaultCSVConfig() is used.
func NewCSVWriter(w io.Writer, config *CSVConfig, header ...string) *CSVWriter {
	if config == nil {
		config = DefaultCSVConfig()
	}

	csvWriter := csv.NewWriter(w)
	switch config.Dialect {
	case DialectTSV:
		csvWriter.Comma = '\t'
	case DialectExcel:
		csvWriter.UseCRLF = true
	}

	return &CSVWriter{
		config: config,
		out:    w,
		writer: csvWriter,
		header: header,
	}
}

// start emits the BOM and header before the first row.
func (cw *CSVWriter) start() error {
	if cw.started {
		return nil
	}
	cw.started = true

	if cw.config.Dialect == DialectExcel {
		if _, err := io.WriteString(cw.out, utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	if cw.config.IncludeHeader && len(cw.header) > 0 {
		if err := cw.writer.Write(cw.header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	return nil
}

// WriteRow writes one data row.
func (cw *CSVWriter) WriteRow(values ...string) error {
	if err := cw.start(); err != nil {
		return err
	}
	if err := cw.writer.Write(values); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	cw.rowsWritten++
	return nil
}

// Flush flushes any buffered data to the underlying writer. A writer with no
// rows still emits its header.
func (cw *CSVWriter) Flush() error {
	if err := cw.start(); err != nil {
		return err
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// RowsWritten returns the number of data rows written (excluding header).
func (cw *CSVWriter) RowsWritten() int {
	return cw.rowsWritten
}

// Float formats f with the configured precision.
func (cw *CSVWriter) Float(f float64) string {
	return strconv.FormatFloat(f, 'f', cw.config.Precision, 64)
}

// WritePlotCSV writes one run's plot as k,interactions rows.
func WritePlotCSV(w io.Writer, plot simulation.Plot, config *CSVConfig) error {
	cw := NewCSVWriter(w, config, "k", "interactions")
	for _, p := range plot.Points {
		if err := cw.WriteRow(strconv.Itoa(int(p.K)), strconv.FormatUint(p.Interactions, 10)); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteEntropyCSV writes an entropy curve as interactions,entropy rows.
func WriteEntropyCSV(w io.Writer, points []simulation.EntropyPoint, config *CSVConfig) error {
	cw := NewCSVWriter(w, config, "interactions", "entropy")
	for _, p := range points {
		if err := cw.WriteRow(strconv.FormatUint(p.Interactions, 10), cw.Float(p.Entropy)); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteRecordsCSV writes the averaged plots of several records, one row per
// record and K.
func WriteRecordsCSV(w io.Writer, records []Record, config *CSVConfig) error {
	cw := NewCSVWriter(w, config,
		"fingerprint", "agent_count", "sample_size", "model", "initial_distribution",
		"k", "interactions", "samples", "runs")
	for _, rec := range records {
		for _, p := range rec.Plot {
			err := cw.WriteRow(
				ShortFingerprint(rec.Fingerprint),
				strconv.FormatUint(rec.Config.AgentCount, 10),
				strconv.Itoa(int(rec.Config.SampleSize)),
				string(rec.Config.Model),
				string(rec.Config.InitialDistribution),
				strconv.Itoa(int(p.K)),
				cw.Float(p.Interactions),
				strconv.Itoa(p.Samples),
				strconv.Itoa(rec.Runs),
			)
			if err != nil {
				return err
			}
		}
	}
	return cw.Flush()
}
