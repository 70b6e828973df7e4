package compare

import (
	"math"
	"slices"

	"capybara/columnar"

	"gonum.org/v1/gonum/stat"
)

// Differs reports whether two arrays differ in event count, in the number of
// values of any event, or in any value. NaN equals NaN.
func Differs(a, b columnar.Array) bool {
	if len(a.Events) != len(b.Events) {
		return true
	}

	for i := range a.Events {
		if len(a.Events[i]) != len(b.Events[i]) {
			return true
		}
	}

	for i := range a.Events {
		for j := range a.Events[i] {
			x, y := a.Events[i][j], b.Events[i][j]
			if math.IsNaN(x) && math.IsNaN(y) {
				continue
			}
			if x != y {
				return true
			}
		}
	}

	return false
}

// exactLimit bounds the lattice walked by the exact test; larger samples use
// the asymptotic distribution.
const exactLimit = 1_000_000

// KSTest returns the p-value of the two-sample Kolmogorov-Smirnov test. Small
// samples use the exact distribution of the statistic, larger ones its
// asymptotic distribution. NaN values are ignored; an empty sample gives 0.
func KSTest(a, b []float64) float64 {
	x := sortedNumbers(a)
	y := sortedNumbers(b)
	if len(x) == 0 || len(y) == 0 {
		return 0
	}

	d := stat.KolmogorovSmirnov(x, nil, y, nil)
	if d == 0 {
		return 1
	}

	if len(x)*len(y) <= exactLimit {
		m, n := len(x), len(y)
		return exactKS(m, n, int(math.Round(d*float64(m)*float64(n))))
	}

	n, m := float64(len(x)), float64(len(y))
	en := math.Sqrt(n * m / (n + m))

	return kolmogorovQ((en + 0.12 + 0.11/en) * d)
}

// exactKS is P(D >= dmn/(m*n)) for samples of sizes m and n under the null
// hypothesis. It walks all merge orders of the two samples as lattice paths
// from (0,0) to (m,n) and sums the probability of those that reach
// |i*n - j*m| >= dmn.
func exactKS(m, n, dmn int) float64 {
	if dmn <= 0 {
		return 1
	}

	outside := func(i, j int) bool {
		diff := i*n - j*m
		return diff >= dmn || -diff >= dmn
	}

	// row[j] is the probability of reaching (i, j) without having left the band
	row := make([]float64, n+1)
	exit := 0.0

	for i := 0; i <= m; i++ {
		for j := 0; j <= n; j++ {
			if i == 0 && j == 0 {
				row[0] = 1
				continue
			}

			p := 0.0
			if i > 0 {
				// step along the first sample from (i-1, j)
				p += row[j] * float64(m-i+1) / float64(m+n-i+1-j)
			}
			if j > 0 {
				p += row[j-1] * float64(n-j+1) / float64(m+n-i-j+1)
			}

			if outside(i, j) {
				exit += p
				p = 0
			}
			row[j] = p
		}
	}

	return math.Max(0, math.Min(1, exit))
}

func sortedNumbers(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// kolmogorovQ is the survival function of the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	if lambda < 0.2 {
		return 1
	}

	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j*j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}

	return math.Max(0, math.Min(1, 2*sum))
}
