package repository

import (
	"fmt"
	"time"
)

// ── Packaging stages ─────────────────────────────────────────────────────────

// Status is the packaging stage of a scan record
type Status string

const (
	StatusBox       Status = "box"
	StatusPallet    Status = "pallet"
	StatusWarehouse Status = "warehouse"
	StatusRework    Status = "rework"
)

// DateScheme selects the freshness check applied to unit codes
type DateScheme string

const (
	DateSchemeNone    DateScheme = "none"
	DateSchemeJulian  DateScheme = "julian-window"
	DateSchemeRolling DateScheme = "rolling-window"
)

// ExternalCheck selects the cross-system verification for unit codes
type ExternalCheck string

const (
	ExternalCheckNone       ExternalCheck = "none"
	ExternalCheckRelational ExternalCheck = "relational-lookup"
	ExternalCheckREST       ExternalCheck = "rest-status-lookup"
)

// Offsets of the date fields inside a unit code
const (
	JulianDateOffset  = 7
	JulianDateLength  = 3
	RollingDateOffset = 17
	RollingDateLength = 6
)

// ── Article rules ────────────────────────────────────────────────────────────

// CodeRange is a half-open [Start, End) slice of a unit code
type CodeRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Empty reports whether the range selects nothing
func (r CodeRange) Empty() bool {
	return r.End <= r.Start
}

// ArticleRule holds the scan rules of one article at one workplace
type ArticleRule struct {
	Workplace           string        `json:"workplace" yaml:"workplace"`
	Article             string        `json:"article" yaml:"article"`
	ArticleType         string        `json:"article_type" yaml:"article_type"`
	ReferenceCode       string        `json:"reference_code" yaml:"reference_code"`
	FirstRange          CodeRange     `json:"first_range" yaml:"first_range"`
	SecondRange         *CodeRange    `json:"second_range,omitempty" yaml:"second_range,omitempty"`
	UnitCodeLength      int           `json:"unit_code_length" yaml:"unit_code_length"`
	DateScheme          DateScheme    `json:"date_scheme" yaml:"date_scheme"`
	UnitsPerContainer   int           `json:"units_per_container" yaml:"units_per_container"`
	ContainersPerPallet *int          `json:"containers_per_pallet,omitempty" yaml:"containers_per_pallet,omitempty"`
	AllowedProcessCodes []string      `json:"allowed_process_codes" yaml:"allowed_process_codes"`
	PalletProcessCode   string        `json:"pallet_process_code" yaml:"pallet_process_code"`
	ExternalCheck       ExternalCheck `json:"external_check" yaml:"external_check"`
	ExternalTarget      string        `json:"external_target" yaml:"external_target"`
	UpdatedAt           time.Time     `json:"updated_at" yaml:"-"`
}

// HasPalletStage reports whether boxes of this article are palletised
func (r *ArticleRule) HasPalletStage() bool {
	return r.ContainersPerPallet != nil && *r.ContainersPerPallet > 0
}

// PalletQuantity is the unit count of a full pallet, or 0 without a pallet stage
func (r *ArticleRule) PalletQuantity() int {
	if !r.HasPalletStage() {
		return 0
	}
	return r.UnitsPerContainer * *r.ContainersPerPallet
}

// Validate checks that the rule is internally consistent
func (r *ArticleRule) Validate() error {
	if r.Workplace == "" || r.Article == "" {
		return fmt.Errorf("workplace and article are required")
	}
	if r.UnitCodeLength <= 0 {
		return fmt.Errorf("unit code length must be positive")
	}
	if err := r.checkRange("first range", r.FirstRange); err != nil {
		return err
	}
	if r.FirstRange.Empty() {
		return fmt.Errorf("first range is empty")
	}
	if r.SecondRange != nil {
		if err := r.checkRange("second range", *r.SecondRange); err != nil {
			return err
		}
	}

	switch r.DateScheme {
	case "", DateSchemeNone:
	case DateSchemeJulian:
		if r.UnitCodeLength < JulianDateOffset+JulianDateLength {
			return fmt.Errorf("unit code length %d too short for julian date field", r.UnitCodeLength)
		}
	case DateSchemeRolling:
		if r.UnitCodeLength < RollingDateOffset+RollingDateLength {
			return fmt.Errorf("unit code length %d too short for rolling date field", r.UnitCodeLength)
		}
	default:
		return fmt.Errorf("unknown date scheme %q", r.DateScheme)
	}

	switch r.ExternalCheck {
	case "", ExternalCheckNone, ExternalCheckREST:
	case ExternalCheckRelational:
		if r.ExternalTarget == "" {
			return fmt.Errorf("relational lookup requires an external target")
		}
	default:
		return fmt.Errorf("unknown external check %q", r.ExternalCheck)
	}

	if r.UnitsPerContainer < 0 {
		return fmt.Errorf("units per container must not be negative")
	}
	if r.ContainersPerPallet != nil && *r.ContainersPerPallet < 0 {
		return fmt.Errorf("containers per pallet must not be negative")
	}
	return nil
}

func (r *ArticleRule) checkRange(name string, cr CodeRange) error {
	if cr.Start < 0 || cr.End < cr.Start {
		return fmt.Errorf("%s [%d,%d) is malformed", name, cr.Start, cr.End)
	}
	if cr.End > r.UnitCodeLength {
		return fmt.Errorf("%s [%d,%d) exceeds unit code length %d", name, cr.Start, cr.End, r.UnitCodeLength)
	}
	if cr.End > len(r.ReferenceCode) {
		return fmt.Errorf("%s [%d,%d) exceeds reference code", name, cr.Start, cr.End)
	}
	return nil
}

// ── Scan records ─────────────────────────────────────────────────────────────

// ScanRecord is one accepted unit and its packaging history
type ScanRecord struct {
	ID                int64      `json:"id"`
	Code              string     `json:"code"`
	Workplace         string     `json:"workplace"`
	Article           string     `json:"article"`
	Operator          string     `json:"operator"`
	Type              string     `json:"type"`
	Status            Status     `json:"status"`
	AcceptedAt        time.Time  `json:"accepted_at"`
	BoxSession        string     `json:"box_session"`
	ContainerBatch    *string    `json:"container_batch,omitempty"`
	ContainerBatchAt  *time.Time `json:"container_batch_at,omitempty"`
	ContainerOperator *string    `json:"container_operator,omitempty"`
	PalletSession     *string    `json:"pallet_session,omitempty"`
	PalletBatch       *string    `json:"pallet_batch,omitempty"`
	PalletBatchAt     *time.Time `json:"pallet_batch_at,omitempty"`
	PalletOperator    *string    `json:"pallet_operator,omitempty"`
	ReworkReason      *string    `json:"rework_reason,omitempty"`
	ReworkAt          *time.Time `json:"rework_at,omitempty"`
	ReworkOperator    *string    `json:"rework_operator,omitempty"`
}

// Promotion describes a bulk stage transition
type Promotion struct {
	Workplace string
	Article   string
	Batch     string
	Operator  string
}

// Rework describes withdrawing records from normal flow
type Rework struct {
	Workplace string
	Article   string
	Reason    string
	Operator  string
}
