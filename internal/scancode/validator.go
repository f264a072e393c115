package scancode

import (
	"time"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// ValidateUnitCode checks a scanned unit code against the article rule.
// Checks run in order and the first failure wins: length, first reference
// range, optional second reference range, then the date scheme.
func ValidateUnitCode(code string, rule *repository.ArticleRule, now time.Time) Reason {
	if len(code) != rule.UnitCodeLength {
		return WrongLength
	}

	if !matchesReference(code, rule.ReferenceCode, rule.FirstRange) {
		return WrongPrefix
	}
	if rule.SecondRange != nil && !matchesReference(code, rule.ReferenceCode, *rule.SecondRange) {
		return WrongSuffix
	}

	switch rule.DateScheme {
	case repository.DateSchemeJulian:
		field := code[repository.JulianDateOffset : repository.JulianDateOffset+repository.JulianDateLength]
		if !CheckJulianWindow(field, now) {
			return StaleDate
		}
	case repository.DateSchemeRolling:
		field := code[repository.RollingDateOffset : repository.RollingDateOffset+repository.RollingDateLength]
		if !CheckRollingWindow(field, now) {
			return StaleDate
		}
	}

	return OK
}

func matchesReference(code, reference string, r repository.CodeRange) bool {
	if r.Start < 0 || r.End > len(code) || r.End > len(reference) || r.End < r.Start {
		return false
	}
	return code[r.Start:r.End] == reference[r.Start:r.End]
}
