package client

import "context"

// QualityDBClientInterface answers the relational verification check
type QualityDBClientInterface interface {
	// PartPassed reports whether the newest inspection of code at station
	// passed. A missing inspection is reported as false with a nil error.
	PartPassed(ctx context.Context, station, code string) (bool, error)
}

// PartStatusClientInterface answers the REST status verification check
type PartStatusClientInterface interface {
	// PartStatus fetches the status token of code. An empty baseURL uses the
	// client's default service.
	PartStatus(ctx context.Context, baseURL, code string) (PartStatus, error)
}

// EventPublisherInterface announces accepted mutations to terminals
type EventPublisherInterface interface {
	PublishAggregateChanged(ctx context.Context, event *AggregateChangedEvent)
}
