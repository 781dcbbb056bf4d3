package pipeline

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"

	"github.com/easterhanu/practicalmachinelearning/pkg/dataprep"
)

// Schema describes the structure of a dataset.
type Schema struct {
	FeatureNames []string
	Types        []string // e.g., "float", "int", "string"
}

// SchemaOf reads the column names and detected types of df.
func SchemaOf(df dataframe.DataFrame) Schema {
	types := df.Types()
	s := Schema{FeatureNames: df.Names(), Types: make([]string, len(types))}
	for i, t := range types {
		s.Types[i] = string(t)
	}
	return s
}

func numeric(t string) bool { return t == "int" || t == "float" }

// Validate checks that other has the same features in the same order and that
// every feature is numeric on both sides.
func (s Schema) Validate(other Schema) error {
	if len(s.FeatureNames) != len(other.FeatureNames) {
		return fmt.Errorf("%w: %d features against %d", dataprep.ErrSchemaMismatch, len(s.FeatureNames), len(other.FeatureNames))
	}
	for i, name := range s.FeatureNames {
		if other.FeatureNames[i] != name {
			return fmt.Errorf("%w: column %d is %q against %q", dataprep.ErrSchemaMismatch, i, name, other.FeatureNames[i])
		}
		if !numeric(s.Types[i]) || !numeric(other.Types[i]) {
			return fmt.Errorf("%w: %q is %s against %s, want numeric", dataprep.ErrSchemaMismatch, name, s.Types[i], other.Types[i])
		}
	}
	return nil
}
