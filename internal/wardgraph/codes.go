package wardgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDiagnosis is returned when a raw upstream code cannot be
// normalized to a known diagnosis category.
var ErrUnknownDiagnosis = errors.New("unknown diagnosis code")

// The critical-care transfer feed identifies diagnoses by numeric short
// codes. 04 and 05 (thoracic/abdominal aortic emergencies) map to the same
// category.
var shortCodes = map[string]Diagnosis{
	"01": DiagInfarction,
	"02": DiagStroke,
	"03": DiagHemorrhage,
	"04": DiagAortic,
	"05": DiagAortic,
}

var knownDiagnoses = map[Diagnosis]bool{
	DiagAngina:     true,
	DiagInfarction: true,
	DiagArrest:     true,
	DiagHemorrhage: true,
	DiagStroke:     true,
	DiagAortic:     true,
}

// ParseDiagnosis normalizes a raw upstream diagnosis field into a diagnosis
// category. Accepted forms: a numeric short code ("01"), a compound
// "NN-description" value as sent by the transfer feed, or a bare category
// code ("I21"). Anything else fails with ErrUnknownDiagnosis.
func ParseDiagnosis(raw string) (Diagnosis, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", fmt.Errorf("%w: empty code", ErrUnknownDiagnosis)
	}

	// "01-..." compound form: the short code is the prefix
	if i := strings.Index(code, "-"); i > 0 {
		code = strings.TrimSpace(code[:i])
	}

	if diag, ok := shortCodes[code]; ok {
		return diag, nil
	}
	if diag := Diagnosis(code); knownDiagnoses[diag] {
		return diag, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDiagnosis, raw)
}
