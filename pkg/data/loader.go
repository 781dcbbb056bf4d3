package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-gota/gota/dataframe"
)

var (
	// ErrEmptyFile is returned when a CSV carries no data rows below its header.
	ErrEmptyFile = errors.New("data: no data rows")
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("data: missing column")
)

// LoadOptions configures how raw CSV text becomes a data frame.
type LoadOptions struct {
	// NAStrings are cell values read as missing.
	NAStrings []string
}

// LoadCSV reads the CSV file at path into a data frame.
func LoadCSV(path string, opts LoadOptions) (dataframe.DataFrame, error) {
	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	df, err := ReadCSV(bufio.NewReader(file), opts)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read %s: %w", path, err)
	}
	return df, nil
}

// ReadCSV reads CSV text with a header row into a data frame. Values listed in
// opts.NAStrings become NaN; column types are detected from the data.
func ReadCSV(r io.Reader, opts LoadOptions) (dataframe.DataFrame, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return dataframe.DataFrame{}, ErrEmptyFile
	}

	loadOpts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	}
	if len(opts.NAStrings) > 0 {
		loadOpts = append(loadOpts, dataframe.NaNValues(opts.NAStrings))
	}

	df := dataframe.LoadRecords(records, loadOpts...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load records: %w", df.Err)
	}
	return df, nil
}

// RequireColumns checks that every name is a column of df.
func RequireColumns(df dataframe.DataFrame, names ...string) error {
	have := df.Names()
	for _, name := range names {
		if !slices.Contains(have, name) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

// Column returns the raw records of the named column.
func Column(df dataframe.DataFrame, name string) ([]string, error) {
	if err := RequireColumns(df, name); err != nil {
		return nil, err
	}
	return df.Col(name).Records(), nil
}
