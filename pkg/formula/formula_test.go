package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "classe ~ roll_belt + yaw_belt", Format("classe", []string{"roll_belt", "yaw_belt"}))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Formula
	}{
		{"plain", "classe ~ a + b", Formula{"classe", []string{"a", "b"}}},
		{"no spaces", "classe~a+b+c", Formula{"classe", []string{"a", "b", "c"}}},
		{"dot", "classe ~ .", Formula{"classe", []string{"."}}},
		{"duplicates", "y ~ a + b + a", Formula{"y", []string{"a", "b"}}},
		{"padded", "  y  ~\ta  +  b ", Formula{"y", []string{"a", "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "classe", "~ a", "classe ~", "classe ~ a +", "classe ~ a ~ b", "a b ~ c", "y ~ a b"} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.ErrorIs(t, err, ErrInvalidFormula)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	preds := []string{"roll_belt", "pitch_forearm", "magnet_dumbbell_z"}
	f, err := Parse(Format("classe", preds))
	require.NoError(t, err)
	assert.Equal(t, "classe", f.Response)
	assert.Equal(t, preds, f.Terms)
	assert.Equal(t, Format("classe", preds), f.String())
}

func TestResolve(t *testing.T) {
	columns := []string{"a", "b", "c", "classe"}

	f, _ := Parse("classe ~ .")
	got, err := f.Resolve(columns)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	f, _ = Parse("classe ~ c + . ")
	got, err = f.Resolve(columns)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)

	f, _ = Parse("classe ~ a + zzz")
	_, err = f.Resolve(columns)
	assert.ErrorIs(t, err, ErrInvalidFormula)

	f, _ = Parse("classe ~ classe")
	_, err = f.Resolve(columns)
	assert.ErrorIs(t, err, ErrInvalidFormula)

	f, _ = Parse("classe ~ .")
	_, err = f.Resolve([]string{"classe"})
	assert.ErrorIs(t, err, ErrInvalidFormula)
}
