package dataprep

import (
	"fmt"
	"slices"
)

// LabelEncode encodes categories as integers the way a factor does: levels are
// the distinct values sorted lexicographically and codes index into them.
func LabelEncode(data []string) ([]int, []string) {
	levels := slices.Clone(data)
	slices.Sort(levels)
	levels = slices.Compact(levels)

	out, _ := EncodeLevels(data, levels)
	return out, levels
}

// EncodeLevels encodes data against a fixed level set.
func EncodeLevels(data []string, levels []string) ([]int, error) {
	index := make(map[string]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	out := make([]int, len(data))
	for i, v := range data {
		code, ok := index[v]
		if !ok {
			return nil, fmt.Errorf("dataprep: unknown level %q at row %d", v, i)
		}
		out[i] = code
	}
	return out, nil
}

// DecodeLevels maps codes back onto level names.
func DecodeLevels(codes []int, levels []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = levels[c]
	}
	return out
}
