package service

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-mfg-scans/internal/client"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
)

// VerificationError is a failed call to an external verification system.
// Reason is the tag the operator sees.
type VerificationError struct {
	Reason scancode.Reason
	Err    error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Verifier runs the cross-system check configured on an article rule
type Verifier struct {
	quality client.QualityDBClientInterface
	status  client.PartStatusClientInterface
	log     *logger.Logger
}

// NewVerifier creates a verifier. Either client may be nil when the plant
// has no such system; rules that need it then fail as unavailable.
func NewVerifier(
	quality client.QualityDBClientInterface,
	status client.PartStatusClientInterface,
	log *logger.Logger,
) *Verifier {
	return &Verifier{
		quality: quality,
		status:  status,
		log:     log.Component("verifier"),
	}
}

// Verify checks code against the rule's external system. Negative answers
// come back as a reason, failures to get an answer as a *VerificationError.
func (v *Verifier) Verify(ctx context.Context, rule *repository.ArticleRule, code string) (scancode.Reason, error) {
	switch rule.ExternalCheck {
	case repository.ExternalCheckRelational:
		return v.verifyRelational(ctx, rule, code)
	case repository.ExternalCheckREST:
		return v.verifyREST(ctx, rule, code)
	default:
		return scancode.OK, nil
	}
}

func (v *Verifier) verifyRelational(ctx context.Context, rule *repository.ArticleRule, code string) (scancode.Reason, error) {
	if v.quality == nil {
		return "", &VerificationError{
			Reason: scancode.ExternalCheckUnavailable,
			Err:    fmt.Errorf("quality database not configured"),
		}
	}

	passed, err := v.quality.PartPassed(ctx, rule.ExternalTarget, code)
	if err != nil {
		return "", &VerificationError{Reason: scancode.ExternalCheckUnavailable, Err: err}
	}
	if !passed {
		v.log.Info().
			Str("station", rule.ExternalTarget).
			Str("code", code).
			Msg("Part has no passing inspection")
		return scancode.ExternalCheckFailed, nil
	}
	return scancode.OK, nil
}

func (v *Verifier) verifyREST(ctx context.Context, rule *repository.ArticleRule, code string) (scancode.Reason, error) {
	if v.status == nil {
		return "", &VerificationError{
			Reason: scancode.FetchError,
			Err:    fmt.Errorf("part status service not configured"),
		}
	}

	status, err := v.status.PartStatus(ctx, rule.ExternalTarget, code)
	if err != nil {
		return "", &VerificationError{Reason: scancode.FetchError, Err: err}
	}

	switch status {
	case client.PartStatusOK:
		return scancode.OK, nil
	case client.PartStatusNotFound:
		return scancode.PartNotFound, nil
	case client.PartStatusUnknown:
		return scancode.PartUnknown, nil
	case client.PartStatusNOK:
		return scancode.PartNOK, nil
	case client.PartStatusPattern:
		return scancode.PartPattern, nil
	default:
		return "", &VerificationError{
			Reason: scancode.FetchError,
			Err:    fmt.Errorf("unexpected part status %q", status),
		}
	}
}
