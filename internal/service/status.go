package service

import (
	"context"
)

// Status is the live view of an article's open box and pallet
type Status struct {
	Workplace           string   `json:"workplace"`
	Article             string   `json:"article"`
	BoxCount            int      `json:"box_count"`
	UnitsPerContainer   int      `json:"units_per_container"`
	ContainersOnPallet  int      `json:"containers_on_pallet"`
	ContainersPerPallet int      `json:"containers_per_pallet"`
	Expect              ScanKind `json:"expect"`
}

// BoxFull reports whether the open box holds a full container
func (s *Status) BoxFull() bool {
	return s.UnitsPerContainer > 0 && s.BoxCount >= s.UnitsPerContainer
}

// PalletFull reports whether the open pallet holds a full load
func (s *Status) PalletFull() bool {
	return s.ContainersPerPallet > 0 && s.ContainersOnPallet >= s.ContainersPerPallet
}

// nextKind is the scan the terminal should ask for. A full pallet has to be
// labelled before another box can go on it.
func (s *Status) nextKind() ScanKind {
	switch {
	case s.PalletFull():
		return KindPallet
	case s.BoxFull():
		return KindContainer
	default:
		return KindUnit
	}
}

// Status counts the open box and pallet of an article. Rework records are
// never counted.
func (s *ScanService) Status(ctx context.Context, workplace, article string) (*Status, error) {
	rule, err := s.rules.Resolve(ctx, workplace, article)
	if err != nil {
		return nil, err
	}

	boxCount, err := s.records.CountBox(ctx, workplace, article)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Workplace:         workplace,
		Article:           article,
		BoxCount:          boxCount,
		UnitsPerContainer: rule.UnitsPerContainer,
	}

	if rule.HasPalletStage() {
		onPallet, err := s.records.CountContainersOnPallet(ctx, workplace, article)
		if err != nil {
			return nil, err
		}
		st.ContainersOnPallet = onPallet
		st.ContainersPerPallet = *rule.ContainersPerPallet
	}

	st.Expect = st.nextKind()
	return st, nil
}
