package report

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrInvalidID is returned for a problem id that cannot name an answer file.
var ErrInvalidID = errors.New("report: invalid problem id")

// WritePredictionsCSV writes a problem_id,prediction table.
func WritePredictionsCSV(path string, ids, labels []string) error {
	if len(ids) != len(labels) {
		return fmt.Errorf("report: %d ids for %d predictions", len(ids), len(labels))
	}
	df := dataframe.New(
		series.New(ids, series.String, "problem_id"),
		series.New(labels, series.String, "prediction"),
	)
	if df.Err != nil {
		return fmt.Errorf("report: predictions frame: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return f.Close()
}

// WriteAnswerFiles writes problem_id_<id>.txt into dir for every prediction,
// each holding only the predicted label.
func WriteAnswerFiles(dir string, ids, labels []string) ([]string, error) {
	if len(ids) != len(labels) {
		return nil, fmt.Errorf("report: %d ids for %d predictions", len(ids), len(labels))
	}
	for _, id := range ids {
		if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create %s: %w", dir, err)
	}
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = filepath.Join(dir, "problem_id_"+id+".txt")
		if err := os.WriteFile(paths[i], []byte(labels[i]+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("report: answer %s: %w", id, err)
		}
	}
	return paths, nil
}

// WriteModel persists a fitted model in its binary form.
func WriteModel(path string, m encoding.BinaryMarshaler) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("report: encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
