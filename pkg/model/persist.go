package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// treeState is the gob form of a fitted tree.
type treeState struct {
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	Criterion           string
	MaxFeatures         int
	MinImpurityDecrease float64
	RandomState         int64
	NClasses            int
	NFeatures           int
	Importances         []float64
	Root                *Node
}

// forestState is the gob form of a fitted forest.
type forestState struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Criterion       string
	Bootstrap       bool
	RandomState     int64
	NClasses        int
	NFeatures       int
	OOBError        float64
	OOBConfusion    [][]int
	Gini            []float64
	MDA             []float64
	Trees           []treeState
}

func (t *DecisionTreeClassifier) state() treeState {
	return treeState{
		MaxDepth:            t.MaxDepth,
		MinSamplesSplit:     t.MinSamplesSplit,
		MinSamplesLeaf:      t.MinSamplesLeaf,
		Criterion:           t.Criterion,
		MaxFeatures:         t.MaxFeatures,
		MinImpurityDecrease: t.MinImpurityDecrease,
		RandomState:         t.RandomState,
		NClasses:            t.nClasses,
		NFeatures:           t.nFeatures,
		Importances:         t.importances,
		Root:                t.root,
	}
}

func (t *DecisionTreeClassifier) restore(s treeState) {
	t.MaxDepth = s.MaxDepth
	t.MinSamplesSplit = s.MinSamplesSplit
	t.MinSamplesLeaf = s.MinSamplesLeaf
	t.Criterion = s.Criterion
	t.MaxFeatures = s.MaxFeatures
	t.MinImpurityDecrease = s.MinImpurityDecrease
	t.RandomState = s.RandomState
	t.nClasses = s.NClasses
	t.nFeatures = s.NFeatures
	t.importances = s.Importances
	t.root = s.Root
}

// MarshalBinary implements encoding.BinaryMarshaler using gob. OOB predictions
// per training row are not kept.
func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	s := forestState{
		NEstimators:     rf.NEstimators,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		Criterion:       rf.Criterion,
		Bootstrap:       rf.Bootstrap,
		RandomState:     rf.RandomState,
		NClasses:        rf.NClasses,
		NFeatures:       rf.nFeatures,
		OOBError:        rf.oob.errRate,
		OOBConfusion:    rf.oob.confusion,
		Gini:            rf.gini,
		MDA:             rf.mda,
		Trees:           make([]treeState, len(rf.Trees)),
	}
	for i, t := range rf.Trees {
		s.Trees[i] = t.state()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("randomforest: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	var s forestState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("randomforest: decode: %w", err)
	}
	rf.NEstimators = s.NEstimators
	rf.MaxDepth = s.MaxDepth
	rf.MinSamplesSplit = s.MinSamplesSplit
	rf.MinSamplesLeaf = s.MinSamplesLeaf
	rf.MaxFeatures = s.MaxFeatures
	rf.Criterion = s.Criterion
	rf.Bootstrap = s.Bootstrap
	rf.RandomState = s.RandomState
	rf.NClasses = s.NClasses
	rf.nFeatures = s.NFeatures
	rf.oob = oobSummary{errRate: s.OOBError, confusion: s.OOBConfusion}
	rf.gini = s.Gini
	rf.mda = s.MDA
	rf.Trees = make([]*DecisionTreeClassifier, len(s.Trees))
	for i, ts := range s.Trees {
		t := &DecisionTreeClassifier{}
		t.restore(ts)
		rf.Trees[i] = t
	}
	return nil
}
