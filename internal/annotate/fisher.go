package annotate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// MaxLogFisher is reported in place of -log10(0) when the p-value underflows.
const MaxLogFisher = 300.0

// Tables whose probability is within this relative distance of the observed
// table count as "at least as extreme".
const fisherRelErr = 1e-7

// FisherExact returns the two-sided p-value of Fisher's exact test on the
// 2x2 table [[a, b], [c, d]].
func FisherExact(a, b, c, d int) (float64, error) {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return 0, fmt.Errorf("fisher exact test: negative count in table [[%d %d] [%d %d]]", a, b, c, d)
	}

	row1 := a + b
	col1 := a + c
	n := a + b + c + d
	if n == 0 || row1 == 0 || col1 == 0 || row1 == n || col1 == n {
		return 1, nil
	}

	logDenom := logBinomial(n, col1)
	logPMF := func(x int) float64 {
		return logBinomial(row1, x) + logBinomial(n-row1, col1-x) - logDenom
	}

	threshold := logPMF(a) + math.Log1p(fisherRelErr)
	lo := max(0, row1+col1-n)
	hi := min(row1, col1)

	p := 0.0
	for x := lo; x <= hi; x++ {
		if lp := logPMF(x); lp <= threshold {
			p += math.Exp(lp)
		}
	}
	return math.Min(p, 1), nil
}

func logBinomial(n, k int) float64 {
	return combin.LogGeneralizedBinomial(float64(n), float64(k))
}

// LogFisher scores tumor vs normal REF/ALT support as -log10(p) of the table
// [[tumorRef, tumorAlt], [normalRef, normalAlt]].
func LogFisher(tumorRef, tumorAlt, normalRef, normalAlt int) (float64, error) {
	p, err := FisherExact(tumorRef, tumorAlt, normalRef, normalAlt)
	if err != nil {
		return 0, err
	}
	return negLog10(p), nil
}

// LogFisherTotal scores ALT against all other tier-1 reads, using the table
// [[tumorTotal-tumorAlt, tumorAlt], [normalTotal-normalAlt, normalAlt]].
func LogFisherTotal(tumorAlt, tumorTotal, normalAlt, normalTotal int) (float64, error) {
	p, err := FisherExact(tumorTotal-tumorAlt, tumorAlt, normalTotal-normalAlt, normalAlt)
	if err != nil {
		return 0, err
	}
	return negLog10(p), nil
}

func negLog10(p float64) float64 {
	if p <= 0 {
		return MaxLogFisher
	}
	if p >= 1 {
		return 0
	}
	return -math.Log10(p)
}
