package validator

import (
	"regexp"
	"strings"

	"github.com/example/ccm/internal/ccm/domain"
)

var (
	reservedNamePattern = regexp.MustCompile(`^(?i)(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
	invalidCharsPattern = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Validator validates profile names. Names become file stems inside the
// profile store, so anything that could escape the directory is rejected.
type Validator struct{}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{}
}

// ValidateName validates a profile name for security and compatibility.
//
// The function checks for:
//   - Empty names or whitespace-only names
//   - Dot navigation (. or ..) and hidden names (leading dot)
//   - Null bytes
//   - Non-printable ASCII characters
//   - Invalid filesystem characters (<>:"/\|?*)
//   - Reserved Windows filenames (CON, PRN, AUX, NUL, COM1-9, LPT1-9)
//
// Returns (true, nil) if valid, or (false, error) with a descriptive error.
func (v *Validator) ValidateName(name string) (bool, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) == 0 {
		return false, domain.ErrProfileNameEmpty
	}
	if trimmed == "." || trimmed == ".." {
		return false, domain.ErrProfileNameDot
	}
	if strings.ContainsRune(trimmed, 0) {
		return false, domain.ErrProfileNameNullByte
	}
	for _, r := range trimmed {
		if r < 0x20 || r >= 0x7f {
			return false, domain.ErrProfileNameNonPrintable
		}
	}
	if invalidCharsPattern.MatchString(trimmed) {
		return false, domain.ErrProfileNameInvalidChars
	}
	// Hidden files are skipped when the store is listed.
	if strings.HasPrefix(trimmed, ".") {
		return false, domain.ErrProfileNameHidden
	}
	if reservedNamePattern.MatchString(trimmed) {
		return false, domain.ErrProfileNameReserved
	}
	return true, nil
}

// NormalizeName trims whitespace and validates the name.
func (v *Validator) NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if ok, err := v.ValidateName(trimmed); !ok {
		return "", err
	}
	return trimmed, nil
}
