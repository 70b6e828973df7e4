package compare

import (
	"go-hep.org/x/hep/hbook"
)

// Histogram counts values into the bins of b. Values outside the axis, and
// non-finite values, are not counted.
func Histogram(values []float64, b Binning) []float64 {
	h := hbook.NewH1D(b.NBins, 0, b.Range)
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		h.Fill(v-b.Min, 1)
	}

	counts := make([]float64, len(h.Binning.Bins))
	for i, bin := range h.Binning.Bins {
		counts[i] = bin.SumW()
	}
	return counts
}
