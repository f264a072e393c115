// Package scancode validates scanned unit codes and aggregate batch codes
// against article rules, and builds outbound pallet labels.
package scancode

// Reason tags the outcome of a scan. The UI picks the operator message and
// the audio cue from it.
type Reason string

const (
	OK Reason = "ok"

	// configuration
	RuleNotFound Reason = "rule_not_found"
	RuleInvalid  Reason = "rule_invalid"
	SizeMissing  Reason = "size_missing"

	// validation
	InvalidRequest Reason = "invalid_request"
	WrongLength    Reason = "wrong_length"
	WrongPrefix    Reason = "wrong_prefix"
	WrongSuffix    Reason = "wrong_suffix"
	StaleDate      Reason = "stale_date"
	MalformedBatch Reason = "malformed_batch"
	WrongArticle   Reason = "wrong_article"
	WrongQuantity  Reason = "wrong_quantity"
	WrongProcess   Reason = "wrong_process"

	// conflict
	Exists   Reason = "exists"
	NotFound Reason = "not_found"

	// external dependencies
	ExternalCheckFailed      Reason = "external_check_failed"
	ExternalCheckUnavailable Reason = "external_check_unavailable"
	PartNotFound             Reason = "part_not_found"
	PartUnknown              Reason = "part_unknown"
	PartNOK                  Reason = "part_nok"
	PartPattern              Reason = "part_pattern"
	FetchError               Reason = "fetch_error"

	Internal Reason = "internal"
)

// Category groups reasons by how the operator and IT should react
type Category string

const (
	CategoryOK            Category = "ok"
	CategoryConfiguration Category = "configuration"
	CategoryValidation    Category = "validation"
	CategoryConflict      Category = "conflict"
	CategoryExternal      Category = "external"
	CategoryInternal      Category = "internal"
)

// Category returns the error class of r
func (r Reason) Category() Category {
	switch r {
	case OK:
		return CategoryOK
	case RuleNotFound, RuleInvalid, SizeMissing:
		return CategoryConfiguration
	case InvalidRequest, WrongLength, WrongPrefix, WrongSuffix, StaleDate,
		MalformedBatch, WrongArticle, WrongQuantity, WrongProcess:
		return CategoryValidation
	case Exists, NotFound:
		return CategoryConflict
	case ExternalCheckFailed, ExternalCheckUnavailable,
		PartNotFound, PartUnknown, PartNOK, PartPattern, FetchError:
		return CategoryExternal
	default:
		return CategoryInternal
	}
}

// Accepted reports whether r is a success
func (r Reason) Accepted() bool {
	return r == OK
}
