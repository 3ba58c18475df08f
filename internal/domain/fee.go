package domain

// FeeVariant is one priority fee level raced within a fan-out.
type FeeVariant struct {
	Index         int    // position within the fan-out, pairwise distinct
	MicroLamports uint64 // compute unit price
}

// GenerateFeeVariants returns n variants priced base, base+1, ..., base+n-1.
// n <= 0 yields an empty slice.
func GenerateFeeVariants(n int, base uint64) []FeeVariant {
	if n <= 0 {
		return []FeeVariant{}
	}
	variants := make([]FeeVariant, n)
	for i := range variants {
		variants[i] = FeeVariant{
			Index:         i,
			MicroLamports: base + uint64(i),
		}
	}
	return variants
}
