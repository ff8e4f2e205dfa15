package proposal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethicsdesk/ethicsdesk/internal/domain"
)

// Reference numbers follow the historical YY-NNN-NN format: two-digit year,
// three-digit per-year sequence, two-digit sub-number (00 for the original
// submission, incremented for revisions of the same application line).
var referencePattern = regexp.MustCompile(`^\d{2}-\d{3}-\d{2}$`)

// FormatReference renders a reference number from its parts.
func FormatReference(year, seq, sub int) string {
	return fmt.Sprintf("%02d-%03d-%02d", year%100, seq, sub)
}

// ValidReference reports whether ref matches the YY-NNN-NN format.
func ValidReference(ref string) bool {
	return referencePattern.MatchString(ref)
}

// ParseReference splits a reference number into its numeric parts.
func ParseReference(ref string) (year, seq, sub int, err error) {
	if !ValidReference(ref) {
		return 0, 0, 0, fmt.Errorf("%w: malformed reference %q", domain.ErrValidation, ref)
	}
	parts := strings.SplitN(ref, "-", 3)
	year, _ = strconv.Atoi(parts[0])
	seq, _ = strconv.Atoi(parts[1])
	sub, _ = strconv.Atoi(parts[2])
	return year, seq, sub, nil
}

// NextRevisionReference returns the reference a revision of ref should carry:
// same year and sequence, sub-number incremented.
func NextRevisionReference(ref string) (string, error) {
	year, seq, sub, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	if sub >= 99 {
		return "", fmt.Errorf("%w: revision counter exhausted for %s", domain.ErrValidation, ref)
	}
	return FormatReference(year, seq, sub+1), nil
}
