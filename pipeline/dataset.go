package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// RawTable is the vehicle-count table as read from disk: rows are time
// steps, the first column is the time-step index, and every remaining
// column is one road segment.
type RawTable struct {
	Segments []string    // segment identifiers, header order
	Counts   [][]float64 // time-major: Counts[t][s], raw vehicle counts
}

// Dataset is the model-ready view of a RawTable plus the raw-unit side
// channel the report ranking needs. Immutable after Preprocess.
type Dataset struct {
	Segments  []string
	TimeSteps int

	// Scaled is segment-major: Scaled[s] is one standardized series of
	// length TimeSteps. Conceptually the (segments, timesteps, 1) tensor;
	// the trailing channel dimension is implied.
	Scaled [][]float64

	// RawMeans[s] is the mean raw vehicle count of segment s, computed
	// before any scaling. Clustering happens in scaled latent space but
	// ranking happens in raw units, so this must survive preprocessing.
	RawMeans []float64
}

// LoadVehicleCounts loads the raw table from a CSV file.
func LoadVehicleCounts(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vehicle counts: %w", err)
	}
	defer f.Close()
	return ReadVehicleCounts(f)
}

// ReadVehicleCounts parses the raw table from an io.Reader. The first
// header field names the time-step index and is dropped; the rest are
// segment identifiers.
func ReadVehicleCounts(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &DataFormatError{Reason: "empty input"}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, &DataFormatError{Reason: "need at least one segment column besides the index"}
	}

	segments := make([]string, len(header)-1)
	for i, h := range header[1:] {
		segments[i] = strings.TrimSpace(h)
	}

	var counts [][]float64
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &DataFormatError{Reason: err.Error(), Row: row}
		}
		if len(record) != len(header) {
			return nil, &DataFormatError{Reason: fmt.Sprintf("expected %d fields, got %d", len(header), len(record)), Row: row}
		}
		vals := make([]float64, len(segments))
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, &DataFormatError{Reason: fmt.Sprintf("non-numeric count %q for segment %s", field, segments[i]), Row: row}
			}
			vals[i] = v
		}
		counts = append(counts, vals)
	}

	if len(counts) == 0 {
		return nil, &DataFormatError{Reason: "no data rows"}
	}

	return &RawTable{Segments: segments, Counts: counts}, nil
}

// Preprocess transposes the table to segment-major order, records the
// raw per-segment means, and standardizes each time-step feature to zero
// mean and unit variance across segments. Pure transform.
func Preprocess(table *RawTable) (*Dataset, error) {
	if table == nil || len(table.Segments) == 0 {
		return nil, &DataFormatError{Reason: "zero segments"}
	}
	if len(table.Counts) == 0 {
		return nil, &DataFormatError{Reason: "zero time steps"}
	}

	nSegments := len(table.Segments)
	nSteps := len(table.Counts)

	// Transpose to segment-major.
	raw := make([][]float64, nSegments)
	for s := 0; s < nSegments; s++ {
		raw[s] = make([]float64, nSteps)
		for t := 0; t < nSteps; t++ {
			raw[s][t] = table.Counts[t][s]
		}
	}

	rawMeans := make([]float64, nSegments)
	for s := 0; s < nSegments; s++ {
		rawMeans[s] = stat.Mean(raw[s], nil)
	}

	// Standardize per time step across segments. A constant time step
	// (zero variance) scales to all zeros rather than dividing by zero.
	col := make([]float64, nSegments)
	scaled := make([][]float64, nSegments)
	for s := range scaled {
		scaled[s] = make([]float64, nSteps)
	}
	for t := 0; t < nSteps; t++ {
		for s := 0; s < nSegments; s++ {
			col[s] = raw[s][t]
		}
		mean := stat.Mean(col, nil)
		std := stat.PopStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		for s := 0; s < nSegments; s++ {
			scaled[s][t] = (raw[s][t] - mean) / std
		}
	}

	segments := make([]string, nSegments)
	copy(segments, table.Segments)

	return &Dataset{
		Segments:  segments,
		TimeSteps: nSteps,
		Scaled:    scaled,
		RawMeans:  rawMeans,
	}, nil
}
