package annotate

import (
	"fmt"
	"strconv"
)

// Stats holds the statistics derived for one record.
type Stats struct {
	TumorVAF         float64
	NormalVAF        float64
	TumorVAFTotal    float64
	NormalVAFTotal   float64
	TumorVarFraction float64
	LogFisher        float64
	LogFisherTotal   float64
}

// VAF returns alt/(alt+ref), or 0 when there are no reads.
func VAF(alt, ref int) float64 {
	return ratio(alt, alt+ref)
}

// VAFTotal returns alt/total, or 0 when total is 0.
func VAFTotal(alt, total int) float64 {
	return ratio(alt, total)
}

// VariantFraction returns the share of ALT reads that come from the tumor,
// or 0 when neither sample has ALT reads.
func VariantFraction(tumorAlt, normalAlt int) float64 {
	return ratio(tumorAlt, tumorAlt+normalAlt)
}

func ratio(num, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// ComputeStats derives all record statistics from the two samples' counts.
func ComputeStats(normal, tumor SampleCounts) (Stats, error) {
	s := Stats{
		TumorVAF:         VAF(tumor.Alt, tumor.Ref),
		NormalVAF:        VAF(normal.Alt, normal.Ref),
		TumorVAFTotal:    VAFTotal(tumor.Alt, tumor.Total),
		NormalVAFTotal:   VAFTotal(normal.Alt, normal.Total),
		TumorVarFraction: VariantFraction(tumor.Alt, normal.Alt),
	}

	var err error
	if s.LogFisher, err = LogFisher(tumor.Ref, tumor.Alt, normal.Ref, normal.Alt); err != nil {
		return Stats{}, fmt.Errorf("log fisher: %w", err)
	}
	if s.LogFisherTotal, err = LogFisherTotal(tumor.Alt, tumor.Total, normal.Alt, normal.Total); err != nil {
		return Stats{}, fmt.Errorf("log fisher total: %w", err)
	}
	return s, nil
}

// FormatStat renders a statistic with four fixed decimals.
func FormatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
