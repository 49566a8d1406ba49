package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"flora/internal/fileutil"
	"flora/internal/services"
	"flora/internal/species"
)

// Column names of the canonical ledger layout.
const (
	ColumnFilename   = "filename"
	ColumnSpecies    = "species_name"
	ColumnConfidence = "confidence_score"
)

// Header is the canonical column order written by Save.
var Header = []string{ColumnFilename, ColumnSpecies, ColumnConfidence}

// Row is the accepted identification for one image.
type Row struct {
	Filename   string  `json:"filename"`
	Species    string  `json:"species_name"`
	Confidence float64 `json:"confidence_score"`
}

// Unidentified reports whether the row carries the sentinel species.
func (r Row) Unidentified() bool {
	return species.IsUnidentified(r.Species)
}

// Ledger is an ordered set of rows unique by case-insensitive filename.
type Ledger struct {
	rows  []Row
	index map[string]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

func key(filename string) string {
	return strings.ToLower(strings.TrimSpace(filename))
}

// Upsert replaces the row with the same filename or appends a new one. Empty
// species become the sentinel and confidence is clamped to [0,1].
func (l *Ledger) Upsert(row Row) {
	row.Filename = strings.TrimSpace(row.Filename)
	if row.Filename == "" {
		return
	}
	if strings.TrimSpace(row.Species) == "" {
		row.Species = species.Unidentified
	}
	row.Confidence = clamp(row.Confidence)
	k := key(row.Filename)
	if idx, ok := l.index[k]; ok {
		l.rows[idx] = row
		return
	}
	l.index[k] = len(l.rows)
	l.rows = append(l.rows, row)
}

// Lookup finds the row for filename using a case-insensitive match.
func (l *Ledger) Lookup(filename string) (Row, bool) {
	if l == nil {
		return Row{}, false
	}
	idx, ok := l.index[key(filename)]
	if !ok {
		return Row{}, false
	}
	return l.rows[idx], true
}

// Rows returns a copy of the rows in insertion order.
func (l *Ledger) Rows() []Row {
	if l == nil {
		return nil
	}
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.rows)
}

// Load reads the ledger at path.
func Load(path string) (*Ledger, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "ledger", "load", fmt.Sprintf("ledger %s does not exist", path), err)
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()
	l, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// LoadOrNew reads the ledger at path, returning an empty ledger when the file
// does not exist yet.
func LoadOrNew(path string) (*Ledger, error) {
	l, err := Load(path)
	if errors.Is(err, services.ErrNotFound) {
		return New(), nil
	}
	return l, err
}

// Read parses ledger CSV from r.
func Read(r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed("missing header row")
		}
		return nil, services.Wrap(services.ErrMalformedLedger, "ledger", "read header", "invalid CSV", err)
	}
	columns := indexHeader(header)
	fileCol, ok := columns[ColumnFilename]
	if !ok {
		return nil, malformed(fmt.Sprintf("missing required column %q", ColumnFilename))
	}
	speciesCol, ok := columns[ColumnSpecies]
	if !ok {
		return nil, malformed(fmt.Sprintf("missing required column %q", ColumnSpecies))
	}
	confCol, hasConf := columns[ColumnConfidence]
	if !hasConf {
		confCol = -1
	}

	l := New()
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrMalformedLedger, "ledger", "read row", "invalid CSV", err)
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		filename := field(record, fileCol)
		if filename == "" {
			return nil, malformed(fmt.Sprintf("line %d: empty filename", line))
		}
		confidence := 0.0
		if raw := field(record, confCol); raw != "" {
			confidence, err = strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
				return nil, malformed(fmt.Sprintf("line %d: invalid confidence %q", line, raw))
			}
		}
		l.Upsert(Row{
			Filename:   filename,
			Species:    species.NormalizeOrSentinel(field(record, speciesCol)),
			Confidence: confidence,
		})
	}
	return l, nil
}

// Write emits the canonical CSV form of the ledger.
func (l *Ledger) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, row := range l.Rows() {
		record := []string{row.Filename, row.Species, FormatConfidence(row.Confidence)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Save atomically replaces the file at path with the ledger contents.
func (l *Ledger) Save(path string) error {
	if err := fileutil.WriteFileAtomic(path, 0o644, l.Write); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// FormatConfidence renders a confidence with the shortest exact representation.
func FormatConfidence(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func indexHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}
	return columns
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func malformed(message string) error {
	return services.Wrap(services.ErrMalformedLedger, "ledger", "load", message, nil)
}
