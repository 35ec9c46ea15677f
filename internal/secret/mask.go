package secret

// Masking scheme. List views depend on it, so it is a stable contract:
// values shorter than MinRevealLength runes render as ShortMask; longer ones
// keep their first 4 and last 2 runes around a fixed "***".
const (
	MinRevealLength = 8
	ShortMask       = "********"

	maskPrefixLen = 4
	maskSuffixLen = 2
	maskToken     = "***"
)

// Mask returns the display-safe projection of value. It never returns value
// itself, and its length only tells whether value is shorter than
// MinRevealLength.
func Mask(value string) string {
	r := []rune(value)
	if len(r) < MinRevealLength {
		return ShortMask
	}
	masked := string(r[:maskPrefixLen]) + maskToken + string(r[len(r)-maskSuffixLen:])
	if masked == value {
		return ShortMask
	}
	return masked
}
