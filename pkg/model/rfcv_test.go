package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNVarSequence(t *testing.T) {
	tests := []struct {
		name  string
		p     int
		step  float64
		scale string
		want  []int
	}{
		{"log halves", 52, 0.5, "log", []int{52, 26, 13, 6, 3, 1}},
		{"log ten", 10, 0.5, "log", []int{10, 5, 2, 1}},
		{"empty scale means log", 4, 0.5, "", []int{4, 2, 1}},
		{"single feature", 1, 0.5, "log", []int{1}},
		{"step scale", 7, 3, "step", []int{7, 4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NVarSequence(tt.p, tt.step, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNVarSequenceErrors(t *testing.T) {
	_, err := NVarSequence(0, 0.5, "log")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NVarSequence(10, 1.5, "log")
	assert.Error(t, err)

	_, err = NVarSequence(10, 0.5, "step")
	assert.Error(t, err)

	_, err = NVarSequence(10, 0.5, "linear")
	assert.Error(t, err)
}

func TestRFCV(t *testing.T) {
	X, y := generateBlobs(11, 240, 3, 6)
	opts := CVOptions{Folds: 3, Step: 0.5, Scale: "log", Trees: 25, Seed: 11, Workers: 2}

	res, err := RFCV(context.Background(), X, y, opts)
	require.NoError(t, err)

	assert.Equal(t, []int{8, 4, 2, 1}, res.NVar)
	require.Len(t, res.ErrorCV, len(res.NVar))
	require.Len(t, res.Predicted, len(res.NVar))
	for k, e := range res.ErrorCV {
		assert.GreaterOrEqual(t, e, 0.0)
		assert.LessOrEqual(t, e, 1.0)
		assert.Len(t, res.Predicted[k], len(y))
	}
	// all features and the two informative ones both separate the blobs
	assert.Less(t, res.ErrorCV[0], 0.1)
	assert.Less(t, res.ErrorCV[2], 0.1)

	again, err := RFCV(context.Background(), X, y, opts)
	require.NoError(t, err)
	assert.Equal(t, res.ErrorCV, again.ErrorCV)
}

func TestRFCVRecursive(t *testing.T) {
	X, y := generateBlobs(12, 120, 2, 2)
	res, err := RFCV(context.Background(), X, y, CVOptions{Folds: 4, Step: 0.5, Recursive: true, Trees: 10, Seed: 12})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 1}, res.NVar)
}

func TestRFCVErrors(t *testing.T) {
	X, y := generateBlobs(13, 30, 2, 1)
	ctx := context.Background()

	_, err := RFCV(ctx, X, y, CVOptions{Folds: 1, Step: 0.5, Trees: 5})
	assert.Error(t, err)

	_, err = RFCV(ctx, X, y[:10], CVOptions{Folds: 3, Step: 0.5, Trees: 5})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = RFCV(ctx, X, y, CVOptions{Folds: 3, Step: 2, Scale: "log", Trees: 5})
	assert.Error(t, err)
}

func TestRankByImportance(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, RankByImportance([]float64{0.5, 0.1, 0.9, 0.5}))
	assert.Empty(t, RankByImportance(nil))
}
