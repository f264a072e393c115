package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pesio-ai/be-mfg-scans/internal/client"
	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
)

// ScanKind is what the operator scanned
type ScanKind string

const (
	KindUnit      ScanKind = "unit"
	KindContainer ScanKind = "container"
	KindPallet    ScanKind = "pallet"
)

// ScanContext identifies the terminal session a scan belongs to
type ScanContext struct {
	Workplace string `json:"workplace"`
	Article   string `json:"article"`
	Operator  string `json:"operator"`
}

func (sc ScanContext) missingField() string {
	switch {
	case strings.TrimSpace(sc.Workplace) == "":
		return "workplace"
	case strings.TrimSpace(sc.Article) == "":
		return "article"
	case strings.TrimSpace(sc.Operator) == "":
		return "operator"
	}
	return ""
}

// ScanRequest is one scan from a terminal
type ScanRequest struct {
	ScanContext
	Kind ScanKind `json:"kind"`
	Code string   `json:"code"`
}

// ReworkRequest withdraws either one unit (Code) or a whole box
// (ContainerBatch) from normal flow
type ReworkRequest struct {
	ScanContext
	Code           string `json:"code,omitempty"`
	ContainerBatch string `json:"container_batch,omitempty"`
	Reason         string `json:"reason"`
}

// Result is the tagged outcome of a scan or rework
type Result struct {
	Reason   scancode.Reason        `json:"result"`
	Category scancode.Category      `json:"category"`
	Kind     ScanKind               `json:"kind"`
	Field    string                 `json:"field,omitempty"`
	Record   *repository.ScanRecord `json:"record,omitempty"`
	Batch    *scancode.BatchCode    `json:"batch,omitempty"`
	Promoted int64                  `json:"promoted"`
	Reworked int64                  `json:"reworked,omitempty"`
	Status   *Status                `json:"status,omitempty"`
}

func rejected(reason scancode.Reason) *Result {
	return &Result{Reason: reason}
}

// ScanService validates scans and moves unit records through the packaging
// stages box, pallet and warehouse
type ScanService struct {
	rules    *RuleRegistry
	records  ScanRecordRepositoryInterface
	verifier *Verifier
	events   client.EventPublisherInterface
	metrics  *Metrics
	now      func() time.Time
	location *time.Location
	entropy  io.Reader
	log      *logger.Logger
}

// Option customises a ScanService
type Option func(*ScanService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ScanService) { s.now = now }
}

// WithLocation sets the plant time zone used for date freshness
func WithLocation(loc *time.Location) Option {
	return func(s *ScanService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithMetrics attaches scan counters
func WithMetrics(m *Metrics) Option {
	return func(s *ScanService) { s.metrics = m }
}

// WithLabelEntropy sets the randomness source of pallet label tokens
func WithLabelEntropy(r io.Reader) Option {
	return func(s *ScanService) { s.entropy = r }
}

// NewScanService creates a new scan service. events may be nil.
func NewScanService(
	rules *RuleRegistry,
	records ScanRecordRepositoryInterface,
	verifier *Verifier,
	events client.EventPublisherInterface,
	log *logger.Logger,
	opts ...Option,
) *ScanService {
	s := &ScanService{
		rules:    rules,
		records:  records,
		verifier: verifier,
		events:   events,
		now:      time.Now,
		location: time.Local,
		log:      log.Component("scan_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan handles one terminal scan. Every outcome, faults included, comes back
// as a tagged result carrying the post-scan status of the article.
func (s *ScanService) Scan(ctx context.Context, req *ScanRequest) *Result {
	code := strings.TrimSpace(req.Code)

	var (
		res *Result
		err error
	)
	switch {
	case req.missingField() != "":
		res = &Result{Reason: scancode.InvalidRequest, Field: req.missingField()}
	case code == "":
		res = &Result{Reason: scancode.InvalidRequest, Field: "code"}
	default:
		switch req.Kind {
		case KindUnit:
			res, err = s.AcceptUnit(ctx, req.ScanContext, code)
		case KindContainer:
			res, err = s.PromoteContainer(ctx, req.ScanContext, code)
		case KindPallet:
			res, err = s.PromotePallet(ctx, req.ScanContext, code)
		default:
			res = &Result{Reason: scancode.InvalidRequest, Field: "kind"}
		}
	}

	return s.finish(ctx, req.ScanContext, req.Kind, res, err)
}

// Rework handles an operator rework request for a unit or a whole box
func (s *ScanService) Rework(ctx context.Context, req *ReworkRequest) *Result {
	code := strings.TrimSpace(req.Code)
	batch := strings.TrimSpace(req.ContainerBatch)
	reason := strings.TrimSpace(req.Reason)

	kind := KindUnit
	if batch != "" {
		kind = KindContainer
	}

	var (
		res *Result
		err error
	)
	switch {
	case req.missingField() != "":
		res = &Result{Reason: scancode.InvalidRequest, Field: req.missingField()}
	case (code == "") == (batch == ""):
		res = &Result{Reason: scancode.InvalidRequest, Field: "code"}
	case reason == "":
		res = &Result{Reason: scancode.InvalidRequest, Field: "reason"}
	case kind == KindContainer:
		res, err = s.ReworkContainer(ctx, req.ScanContext, batch, reason)
	default:
		res, err = s.ReworkUnit(ctx, req.ScanContext, code, reason)
	}

	return s.finish(ctx, req.ScanContext, kind, res, err)
}

// AcceptUnit validates a unit code and adds it to the open box
func (s *ScanService) AcceptUnit(ctx context.Context, sc ScanContext, code string) (*Result, error) {
	rule, err := s.rules.Resolve(ctx, sc.Workplace, sc.Article)
	if err != nil {
		return nil, err
	}

	if reason := scancode.ValidateUnitCode(code, rule, s.clock()); !reason.Accepted() {
		return rejected(reason), nil
	}

	reason, err := s.verifier.Verify(ctx, rule, code)
	if err != nil {
		return nil, err
	}
	if !reason.Accepted() {
		return rejected(reason), nil
	}

	exists, err := s.records.ExistsActive(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return rejected(scancode.Exists), nil
	}

	rec := &repository.ScanRecord{
		Code:      code,
		Workplace: sc.Workplace,
		Article:   sc.Article,
		Operator:  sc.Operator,
		Type:      rule.ArticleType,
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
			return rejected(scancode.Exists), nil
		}
		return nil, err
	}

	s.log.Info().
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("code", code).
		Msg("Unit accepted")

	return &Result{Reason: scancode.OK, Record: rec}, nil
}

// PromoteContainer closes the open box under a container batch label and
// moves its units onto the open pallet. An empty box is a no-op.
func (s *ScanService) PromoteContainer(ctx context.Context, sc ScanContext, raw string) (*Result, error) {
	rule, err := s.rules.Resolve(ctx, sc.Workplace, sc.Article)
	if err != nil {
		return nil, err
	}
	if rule.UnitsPerContainer <= 0 {
		return rejected(scancode.SizeMissing), nil
	}

	batch, reason := scancode.ParseBatchCode(raw)
	if !reason.Accepted() {
		return rejected(reason), nil
	}
	if reason := scancode.ValidateContainerBatch(batch, rule, rule.UnitsPerContainer); !reason.Accepted() {
		return &Result{Reason: reason, Batch: batch}, nil
	}

	exists, err := s.records.ContainerBatchExists(ctx, batch.Token)
	if err != nil {
		return nil, err
	}
	if exists {
		return &Result{Reason: scancode.Exists, Batch: batch}, nil
	}

	promoted, err := s.records.PromoteContainer(ctx, repository.Promotion{
		Workplace: sc.Workplace,
		Article:   sc.Article,
		Batch:     batch.Token,
		Operator:  sc.Operator,
	})
	if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
		return &Result{Reason: scancode.Exists, Batch: batch}, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("batch", batch.Token).
		Int64("promoted", promoted).
		Msg("Container promoted")

	return &Result{Reason: scancode.OK, Batch: batch, Promoted: promoted}, nil
}

// PromotePallet closes the open pallet under a pallet batch label and moves
// its units to the warehouse. An empty pallet is a no-op.
func (s *ScanService) PromotePallet(ctx context.Context, sc ScanContext, raw string) (*Result, error) {
	rule, err := s.rules.Resolve(ctx, sc.Workplace, sc.Article)
	if err != nil {
		return nil, err
	}
	if rule.UnitsPerContainer <= 0 || !rule.HasPalletStage() {
		return rejected(scancode.SizeMissing), nil
	}

	batch, reason := scancode.ParseBatchCode(raw)
	if !reason.Accepted() {
		return rejected(reason), nil
	}
	if reason := scancode.ValidatePalletBatch(batch, rule, rule.PalletQuantity()); !reason.Accepted() {
		return &Result{Reason: reason, Batch: batch}, nil
	}

	exists, err := s.records.PalletBatchExists(ctx, batch.Token)
	if err != nil {
		return nil, err
	}
	if exists {
		return &Result{Reason: scancode.Exists, Batch: batch}, nil
	}

	promoted, err := s.records.PromotePallet(ctx, repository.Promotion{
		Workplace: sc.Workplace,
		Article:   sc.Article,
		Batch:     batch.Token,
		Operator:  sc.Operator,
	})
	if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
		return &Result{Reason: scancode.Exists, Batch: batch}, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("batch", batch.Token).
		Int64("promoted", promoted).
		Msg("Pallet promoted")

	return &Result{Reason: scancode.OK, Batch: batch, Promoted: promoted}, nil
}

// ReworkUnit withdraws one unit of the open box. The code can then be
// scanned again.
func (s *ScanService) ReworkUnit(ctx context.Context, sc ScanContext, code, reason string) (*Result, error) {
	n, err := s.records.ReworkUnit(ctx, code, repository.Rework{
		Workplace: sc.Workplace,
		Article:   sc.Article,
		Reason:    reason,
		Operator:  sc.Operator,
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return rejected(scancode.NotFound), nil
	}

	s.log.Info().
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("code", code).
		Str("reason", reason).
		Msg("Unit sent to rework")

	return &Result{Reason: scancode.OK, Reworked: n}, nil
}

// ReworkContainer withdraws every unit of a box already on the open pallet.
// batch is either the scanned label or its bare token.
func (s *ScanService) ReworkContainer(ctx context.Context, sc ScanContext, batch, reason string) (*Result, error) {
	token := strings.ToUpper(batch)
	if parsed, r := scancode.ParseBatchCode(batch); r.Accepted() {
		token = parsed.Token
	}

	n, err := s.records.ReworkContainer(ctx, token, repository.Rework{
		Workplace: sc.Workplace,
		Article:   sc.Article,
		Reason:    reason,
		Operator:  sc.Operator,
	})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return rejected(scancode.NotFound), nil
	}

	s.log.Info().
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("batch", token).
		Int64("units", n).
		Str("reason", reason).
		Msg("Container sent to rework")

	return &Result{Reason: scancode.OK, Reworked: n}, nil
}

// LookupRecords returns the full history of a unit code, reworks included
func (s *ScanService) LookupRecords(ctx context.Context, code string) ([]*repository.ScanRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.InvalidInput("code", "code is required")
	}

	records, err := s.records.ListByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperrors.NotFound("scan record", code)
	}
	return records, nil
}

// PalletLabel generates a fresh pallet batch label for an article
func (s *ScanService) PalletLabel(ctx context.Context, workplace, article string) (string, error) {
	rule, err := s.rules.Resolve(ctx, workplace, article)
	if err != nil {
		return "", err
	}

	label, err := scancode.NewPalletLabel(rule, s.entropy)
	if err != nil {
		return "", apperrors.InvalidInput("pallet", err.Error())
	}
	return label, nil
}

// InvalidateRule drops a cached article rule
func (s *ScanService) InvalidateRule(ctx context.Context, workplace, article string) error {
	return s.rules.Invalidate(ctx, workplace, article)
}

func (s *ScanService) clock() time.Time {
	return s.now().In(s.location)
}

// finish converts faults into tagged results and runs the side effects every
// handled scan shares
func (s *ScanService) finish(ctx context.Context, sc ScanContext, kind ScanKind, res *Result, err error) *Result {
	if err != nil {
		res = s.faultResult(sc, kind, err)
	}
	res.Kind = kind
	res.Category = res.Reason.Category()

	switch res.Reason {
	case scancode.RuleNotFound, scancode.RuleInvalid, scancode.InvalidRequest:
	default:
		status, err := s.Status(ctx, sc.Workplace, sc.Article)
		if err != nil {
			s.log.Warn().Err(err).
				Str("workplace", sc.Workplace).
				Str("article", sc.Article).
				Msg("Failed to read status after scan")
		} else {
			res.Status = status
		}
	}

	s.metrics.RecordScan(ctx, kind, res.Reason)
	if res.Reason.Accepted() {
		s.metrics.RecordPromotion(ctx, kind, res.Promoted)
		if kind == KindUnit || res.Promoted > 0 || res.Reworked > 0 {
			s.publish(ctx, sc, kind, res)
		}
	}
	return res
}

func (s *ScanService) publish(ctx context.Context, sc ScanContext, kind ScanKind, res *Result) {
	if s.events == nil {
		return
	}

	eventKind := string(kind)
	if res.Reworked > 0 {
		eventKind = "rework_" + eventKind
	}

	event := &client.AggregateChangedEvent{
		Workplace:  sc.Workplace,
		Article:    sc.Article,
		Kind:       eventKind,
		Operator:   sc.Operator,
		Promoted:   res.Promoted,
		OccurredAt: s.now().UTC(),
	}
	if res.Status != nil {
		event.BoxCount = res.Status.BoxCount
		event.ContainersOnPallet = res.Status.ContainersOnPallet
	}
	s.events.PublishAggregateChanged(ctx, event)
}

func (s *ScanService) faultResult(sc ScanContext, kind ScanKind, err error) *Result {
	reason := reasonForError(err)

	event := s.log.Warn()
	if reason == scancode.Internal {
		event = s.log.Error()
	}
	event.Err(err).
		Str("workplace", sc.Workplace).
		Str("article", sc.Article).
		Str("operator", sc.Operator).
		Str("kind", string(kind)).
		Str("result", string(reason)).
		Msg("Scan failed")

	return &Result{Reason: reason}
}

// reasonForError maps a fault to the tag shown to the operator
func reasonForError(err error) scancode.Reason {
	var verr *VerificationError
	if apperrors.As(err, &verr) {
		return verr.Reason
	}

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) && appErr.Field == ruleField {
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			return scancode.RuleNotFound
		case apperrors.ErrCodeInvalidInput:
			return scancode.RuleInvalid
		}
	}

	if apperrors.HasCode(err, apperrors.ErrCodeConflict) {
		return scancode.Exists
	}
	return scancode.Internal
}
