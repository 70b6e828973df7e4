package util

import (
	"slices"
	"strings"
)

// ShortLabels reduces each path to the segments that tell it apart from the
// others, dropping shared leading directories and shared trailing components.
func ShortLabels(paths []string) ([]string, error) {
	parts := make([][]string, len(paths))
	for i, p := range paths {
		parts[i] = strings.Split(p, "/")
	}

	forward, err := SkipCommonPrefixSlices(parts)
	if err != nil {
		return nil, err
	}

	for _, p := range forward {
		slices.Reverse(p)
	}

	backward, err := SkipCommonPrefixSlices(forward)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(backward))
	for i, p := range backward {
		slices.Reverse(p)
		labels[i] = strings.Join(p, "/")
	}

	return labels, nil
}
