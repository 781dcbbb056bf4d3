package dataprep

import (
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainCSV = `idx,user_name,raw_timestamp_part_1,new_window,roll_belt,yaw_belt,kurtosis_roll_belt,classe
1,carlitos,1323084231,no,1.41,-94.4,NA,A
2,carlitos,1323084231,no,1.42,-94.4,NA,A
3,pedro,1323084232,yes,1.48,-94.3,-0.0168,B
4,pedro,1323084232,no,1.50,-94.1,NA,C
`

const testCSV = `idx,user_name,raw_timestamp_part_1,new_window,roll_belt,yaw_belt,kurtosis_roll_belt,problem_id
1,pedro,1323095002,no,123,-4.75,NA,1
2,jeremy,1322673067,no,1.02,-88.9,NA,2
`

func frame(t *testing.T, body string) dataframe.DataFrame {
	t.Helper()
	df := dataframe.ReadCSV(strings.NewReader(body), dataframe.NaNValues([]string{"NA", ""}))
	require.NoError(t, df.Err)
	return df
}

func defaultPatterns(t *testing.T) []*regexp.Regexp {
	t.Helper()
	res, err := CompilePatterns([]string{`^idx$`, `^user_name$`, `timestamp`, `window`})
	require.NoError(t, err)
	return res
}

func TestValidityMask(t *testing.T) {
	df := frame(t, trainCSV)

	mask := ValidityMask(df, 0)
	names := df.Names()
	require.Len(t, mask, len(names))
	for i, name := range names {
		assert.Equal(t, name != "kurtosis_roll_belt", mask[i], name)
	}

	// 3 of 4 missing is within a 0.75 ratio.
	for _, keep := range ValidityMask(df, 0.75) {
		assert.True(t, keep)
	}
}

func TestDropPatterns(t *testing.T) {
	names := []string{"idx", "user_name", "cvtd_timestamp", "num_window", "roll_belt"}
	assert.Equal(t, []bool{false, false, false, false, true}, DropPatterns(names, defaultPatterns(t)))
}

func TestCompilePatternsRejectsBadRegexp(t *testing.T) {
	_, err := CompilePatterns([]string{"("})
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	res, err := Prune(frame(t, trainCSV), frame(t, testCSV), PruneOptions{
		DropPatterns: defaultPatterns(t),
		LabelColumn:  "classe",
		IDColumn:     "problem_id",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"roll_belt", "yaw_belt"}, res.Features)
	assert.Equal(t, []string{"kurtosis_roll_belt"}, res.DroppedMissing)
	assert.Equal(t, []string{"idx", "user_name", "raw_timestamp_part_1", "new_window"}, res.DroppedBookkeeping)
	assert.Equal(t, []bool{false, false, false, false, true, true, false, false}, res.Mask)

	assert.Equal(t, res.Features, res.Train.Names())
	assert.Equal(t, res.Train.Names(), res.Test.Names())
	assert.Equal(t, 4, res.Train.Nrow())
	assert.Equal(t, 2, res.Test.Nrow())
}

func TestPruneSchemaMismatch(t *testing.T) {
	test := frame(t, "idx,roll_belt,problem_id\n1,1.0,1\n")
	_, err := Prune(frame(t, trainCSV), test, PruneOptions{
		DropPatterns: defaultPatterns(t),
		LabelColumn:  "classe",
		IDColumn:     "problem_id",
	})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "yaw_belt")
}

func TestPruneMissingInTestSet(t *testing.T) {
	test := frame(t, "roll_belt,yaw_belt,problem_id\n1.0,NA,1\n")
	_, err := Prune(frame(t, trainCSV), test, PruneOptions{
		DropPatterns: defaultPatterns(t),
		LabelColumn:  "classe",
		IDColumn:     "problem_id",
	})
	assert.ErrorIs(t, err, ErrMissingValues)
}

func TestPruneWithRatioLeavesGapsForImputation(t *testing.T) {
	res, err := Prune(frame(t, trainCSV), frame(t, testCSV), PruneOptions{
		MaxMissingRatio: 0.8,
		DropPatterns:    defaultPatterns(t),
		LabelColumn:     "classe",
		IDColumn:        "problem_id",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"roll_belt", "yaw_belt", "kurtosis_roll_belt"}, res.Features)
	// every test value of kurtosis_roll_belt is NA
	assert.Equal(t, series.Float, res.Test.Col("kurtosis_roll_belt").Type())
	assert.Equal(t, series.Float, res.Train.Col("kurtosis_roll_belt").Type())

	X, err := Matrix(res.Train, res.Features)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckComplete(X, res.Features), ErrMissingValues)

	medians := ColumnMedians(X)
	assert.Equal(t, -0.0168, medians[2])
	assert.Equal(t, 3, ImputeMedian(X, medians))
	assert.NoError(t, CheckComplete(X, res.Features))
}

func TestMatrixAndSelect(t *testing.T) {
	df := frame(t, trainCSV)
	X, err := Matrix(df, []string{"yaw_belt", "roll_belt"})
	require.NoError(t, err)
	require.Len(t, X, 4)
	assert.Equal(t, []float64{-94.4, 1.41}, X[0])

	assert.Equal(t, [][]float64{{1.41}, {1.42}, {1.48}, {1.50}}, FeatureSelect(X, []int{1}))

	_, err = Matrix(df, []string{"absent"})
	assert.Error(t, err)

	idx, err := IndicesOf([]string{"a", "b", "c"}, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, idx)
	_, err = IndicesOf([]string{"a"}, []string{"z"})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCheckCompleteFlagsNonNumeric(t *testing.T) {
	X := [][]float64{{1, 2}, {math.NaN(), 3}}
	err := CheckComplete(X, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrMissingValues)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestLabelEncode(t *testing.T) {
	codes, levels := LabelEncode([]string{"C", "A", "E", "A", "B", "D"})
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, levels)
	assert.Equal(t, []int{2, 0, 4, 0, 1, 3}, codes)
	assert.Equal(t, []string{"C", "A", "E", "A", "B", "D"}, DecodeLevels(codes, levels))

	_, err := EncodeLevels([]string{"A", "F"}, levels)
	assert.Error(t, err)
}
