package annotate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-strelka/internal/vcf"
)

// SampleCounts holds tier-1 read support for one sample.
type SampleCounts struct {
	Ref   int // tier-1 reads supporting REF
	Alt   int // tier-1 reads supporting ALT
	Total int // tier-1 depth; all four bases for SNVs, Ref+Alt for indels
}

// Depth returns Ref+Alt.
func (c SampleCounts) Depth() int {
	return c.Ref + c.Alt
}

// Strelka2 per-base tier counts for SNVs, in the order they are summed.
var baseCountKeys = [...]string{"AU", "CU", "GU", "TU"}

// Strelka2 indel tier counts.
const (
	indelRefKey = "TAR"
	indelAltKey = "TIR"
)

// SampleFields associates a sample's colon-delimited values with the FORMAT keys,
// positionally. Values missing from the end of the sample are absent.
type SampleFields struct {
	keys   []string
	values []string
}

// NewSampleFields zips FORMAT keys with the values of one sample column.
func NewSampleFields(formatKeys []string, sample string) SampleFields {
	values := strings.Split(sample, ":")
	n := min(len(formatKeys), len(values))
	return SampleFields{keys: formatKeys[:n], values: values[:n]}
}

// Get returns the value for key. When a key repeats, the last occurrence wins.
func (f SampleFields) Get(key string) (string, bool) {
	for i := len(f.keys) - 1; i >= 0; i-- {
		if f.keys[i] == key {
			return f.values[i], true
		}
	}
	return "", false
}

// Tier1 returns the tier-1 count stored under key, or 0 if the key is absent.
func (f SampleFields) Tier1(key string) (int, error) {
	v, ok := f.Get(key)
	if !ok {
		return 0, nil
	}
	first, _, _ := strings.Cut(v, ",")
	n, err := strconv.Atoi(first)
	if err != nil {
		return 0, &FieldError{Key: key, Value: v, Err: err}
	}
	if n < 0 {
		return 0, &FieldError{Key: key, Value: v, Err: fmt.Errorf("negative count %d", n)}
	}
	return n, nil
}

// FieldError reports a present FORMAT value whose tier-1 count is not a
// non-negative integer.
type FieldError struct {
	Key   string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid tier-1 count in %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ExtractCounts reads tier-1 REF/ALT/total depth for one sample.
//
// SNVs use the <base>U keys: REF and ALT come from <ref>U and <alt>U, and the
// total sums whichever of AU, CU, GU and TU are present. Indels use TAR and TIR,
// and the total is REF+ALT only.
func ExtractCounts(formatKeys []string, sample, ref, alt string, vt vcf.VariantType) (SampleCounts, error) {
	fields := NewSampleFields(formatKeys, sample)

	var c SampleCounts
	var err error

	switch vt {
	case vcf.SNV:
		if c.Ref, err = fields.Tier1(ref + "U"); err != nil {
			return SampleCounts{}, err
		}
		if c.Alt, err = fields.Tier1(alt + "U"); err != nil {
			return SampleCounts{}, err
		}
		for _, key := range baseCountKeys {
			n, err := fields.Tier1(key)
			if err != nil {
				return SampleCounts{}, err
			}
			c.Total += n
		}
	case vcf.Indel:
		if c.Ref, err = fields.Tier1(indelRefKey); err != nil {
			return SampleCounts{}, err
		}
		if c.Alt, err = fields.Tier1(indelAltKey); err != nil {
			return SampleCounts{}, err
		}
		c.Total = c.Ref + c.Alt
	default:
		return SampleCounts{}, fmt.Errorf("unknown variant type %v", vt)
	}

	return c, nil
}
