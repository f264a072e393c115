package client

import "time"

// PartStatus is the plain-text token returned by the part status service
type PartStatus string

const (
	PartStatusOK       PartStatus = "OK"
	PartStatusNotFound PartStatus = "NOT_FOUND"
	PartStatusUnknown  PartStatus = "UNKNOWN"
	PartStatusNOK      PartStatus = "NOK"
	PartStatusPattern  PartStatus = "PATTERN"
)

var knownPartStatuses = map[PartStatus]bool{
	PartStatusOK:       true,
	PartStatusNotFound: true,
	PartStatusUnknown:  true,
	PartStatusNOK:      true,
	PartStatusPattern:  true,
}

// AggregateChangedEvent is published after every accepted scan mutation so
// terminals re-fetch their counters
type AggregateChangedEvent struct {
	Workplace          string    `json:"workplace"`
	Article            string    `json:"article"`
	Kind               string    `json:"kind"`
	Operator           string    `json:"operator"`
	Promoted           int64     `json:"promoted,omitempty"`
	BoxCount           int       `json:"box_count"`
	ContainersOnPallet int       `json:"containers_on_pallet"`
	OccurredAt         time.Time `json:"occurred_at"`
}
