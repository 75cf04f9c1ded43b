package output

import "strings"

// extensionHeader declares every INFO and FORMAT key written by the annotator.
// It is inserted once, directly before the #CHROM line.
var extensionHeader = []string{
	`##INFO=<ID=TUMREF,Number=1,Type=Integer,Description="Tumor REF read count (tier1)">`,
	`##INFO=<ID=TUMALT,Number=1,Type=Integer,Description="Tumor ALT read count (tier1)">`,
	`##INFO=<ID=NORMREF,Number=1,Type=Integer,Description="Normal REF read count (tier1)">`,
	`##INFO=<ID=NORMALT,Number=1,Type=Integer,Description="Normal ALT read count (tier1)">`,
	`##INFO=<ID=TUMVAF,Number=1,Type=Float,Description="Tumor VAF = ALT / (REF + ALT)">`,
	`##INFO=<ID=TUMVAF_TOTAL,Number=1,Type=Float,Description="Tumor VAF = ALT / total tier1 depth">`,
	`##INFO=<ID=TUMVARFRACTION,Number=1,Type=Float,Description="ALT reads in tumor / total ALT reads">`,
	`##INFO=<ID=LOG_FISHER,Number=1,Type=Float,Description="-log10(p) Fisher test on REF/ALT">`,
	`##INFO=<ID=LOG_FISHER_TOTAL,Number=1,Type=Float,Description="-log10(p) Fisher test on ALT vs rest (tier1)">`,
	`##FORMAT=<ID=AD,Number=R,Type=Integer,Description="Allelic depths for REF,ALT (tier1)">`,
	`##FORMAT=<ID=DPVAF,Number=1,Type=Integer,Description="Depth = REF + ALT">`,
	`##FORMAT=<ID=DPVAF_TOTAL,Number=1,Type=Integer,Description="Total tier1 depth (all bases)">`,
	`##FORMAT=<ID=VAF,Number=A,Type=Float,Description="ALT / (REF + ALT)">`,
	`##FORMAT=<ID=VAF_TOTAL,Number=A,Type=Float,Description="ALT / total tier1 depth">`,
}

// isExtensionDefinition reports whether a meta line defines one of the keys
// declared by extensionHeader, e.g. left behind by an earlier run.
func isExtensionDefinition(line string) bool {
	if !strings.HasPrefix(line, "##INFO=<") && !strings.HasPrefix(line, "##FORMAT=<") {
		return false
	}
	for _, def := range extensionHeader {
		prefix, _, _ := strings.Cut(def, ",")
		if strings.HasPrefix(line, prefix+",") || line == prefix+">" {
			return true
		}
	}
	return false
}
