// Package dataio loads spectra and reference values from CSV files.
package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
)

// Table is a spectral dataset together with its wavelength labels.
type Table struct {
	// Wavelengths are the header labels of the spectral columns.
	Wavelengths []string
	Target      string
	Dataset     *model.SpectralDataset
}

// LoadCSV reads a CSV file with a header row. The column named target holds
// the reference values and every other column is one wavelength. An empty
// target selects the last column.
func LoadCSV(path, target string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f, target)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadCSV parses CSV data as described for LoadCSV.
func ReadCSV(r io.Reader, target string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse CSV")
	}
	if len(records) < 2 {
		return nil, errors.Wrap(errors.ErrEmptyData, "CSV needs a header and at least one row")
	}

	header := records[0]
	targetCol := len(header) - 1
	if target != "" {
		targetCol = -1
		for j, name := range header {
			if strings.TrimSpace(name) == target {
				targetCol = j
				break
			}
		}
		if targetCol < 0 {
			return nil, errors.NewInvalidParameterError("target", "column not found in header", target)
		}
	}
	if len(header) < 2 {
		return nil, errors.NewInvalidParameterError("X", "CSV needs at least one wavelength column besides the target", len(header))
	}

	rows := records[1:]
	n, p := len(rows), len(header)-1
	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, rec := range rows {
		k := 0
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d, column %q", i+2, header[j])
			}
			if j == targetCol {
				y.SetVec(i, v)
				continue
			}
			X.Set(i, k, v)
			k++
		}
	}

	ds, err := model.NewSpectralDataset(X, y)
	if err != nil {
		return nil, err
	}
	wavelengths := make([]string, 0, p)
	for j, name := range header {
		if j != targetCol {
			wavelengths = append(wavelengths, strings.TrimSpace(name))
		}
	}
	return &Table{Wavelengths: wavelengths, Target: strings.TrimSpace(header[targetCol]), Dataset: ds}, nil
}

// WriteSelectionCSV writes one row per wavelength with its label, score and
// whether it was retained.
func WriteSelectionCSV(w io.Writer, wavelengths []string, result *model.SelectionResult) error {
	if len(wavelengths) != len(result.Support) {
		return errors.NewDimensionError("WriteSelectionCSV", len(result.Support), len(wavelengths), 1)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "wavelength", "score", "selected"}); err != nil {
		return err
	}
	for j, label := range wavelengths {
		score := ""
		if j < len(result.Scores) {
			score = strconv.FormatFloat(result.Scores[j], 'g', -1, 64)
		}
		if err := cw.Write([]string{strconv.Itoa(j), label, score, strconv.FormatBool(result.Support[j])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
