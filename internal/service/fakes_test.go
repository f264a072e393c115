package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pesio-ai/be-mfg-scans/internal/client"
	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// memRecords mimics the Postgres constraints of ScanRecordRepository: one
// active record per code, one claim per batch label and one open session per
// workplace, article and stage
type memRecords struct {
	mu               sync.Mutex
	records          []*repository.ScanRecord
	containerBatches map[string]bool
	palletBatches    map[string]bool
	sessions         map[string]string
	nextID           int64
	nextSession      int

	// staleExists makes ExistsActive miss, as if a concurrent insert landed
	// between the pre-check and the insert
	staleExists bool
	failWith    error
}

func newMemRecords() *memRecords {
	return &memRecords{
		containerBatches: make(map[string]bool),
		palletBatches:    make(map[string]bool),
		sessions:         make(map[string]string),
	}
}

func sessionKey(workplace, article, stage string) string {
	return workplace + "|" + article + "|" + stage
}

func (m *memRecords) openSession(workplace, article, stage string) string {
	key := sessionKey(workplace, article, stage)
	if id, ok := m.sessions[key]; ok {
		return id
	}
	m.nextSession++
	id := fmt.Sprintf("session-%d", m.nextSession)
	m.sessions[key] = id
	return id
}

func (m *memRecords) ExistsActive(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	if m.staleExists {
		return false, nil
	}
	return m.activeLocked(code), nil
}

func (m *memRecords) activeLocked(code string) bool {
	for _, r := range m.records {
		if r.Code == code && r.Status != repository.StatusRework {
			return true
		}
	}
	return false
}

func (m *memRecords) Insert(_ context.Context, rec *repository.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeLocked(rec.Code) {
		return apperrors.Conflict("code already scanned: " + rec.Code)
	}

	m.nextID++
	rec.ID = m.nextID
	rec.Status = repository.StatusBox
	rec.AcceptedAt = time.Now()
	rec.BoxSession = m.openSession(rec.Workplace, rec.Article, "box")

	stored := *rec
	m.records = append(m.records, &stored)
	return nil
}

func (m *memRecords) ContainerBatchExists(_ context.Context, batch string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.containerBatches[batch], nil
}

func (m *memRecords) PalletBatchExists(_ context.Context, batch string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.palletBatches[batch], nil
}

func (m *memRecords) PromoteContainer(_ context.Context, p repository.Promotion) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(p.Workplace, p.Article, "box")
	session, ok := m.sessions[key]
	if !ok {
		return 0, nil
	}

	var matched []*repository.ScanRecord
	for _, r := range m.records {
		if r.Workplace == p.Workplace && r.Article == p.Article &&
			r.Status == repository.StatusBox && r.BoxSession == session {
			matched = append(matched, r)
		}
	}
	if m.containerBatches[p.Batch] {
		return 0, apperrors.Conflict("container batch already registered: " + p.Batch)
	}
	if len(matched) == 0 {
		return 0, nil
	}

	delete(m.sessions, key)
	m.containerBatches[p.Batch] = true
	pallet := m.openSession(p.Workplace, p.Article, "pallet")
	now := time.Now()
	for _, r := range matched {
		r.Status = repository.StatusPallet
		r.ContainerBatch = strPtr(p.Batch)
		r.ContainerBatchAt = &now
		r.ContainerOperator = strPtr(p.Operator)
		r.PalletSession = strPtr(pallet)
	}
	return int64(len(matched)), nil
}

func (m *memRecords) PromotePallet(_ context.Context, p repository.Promotion) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(p.Workplace, p.Article, "pallet")
	session, ok := m.sessions[key]
	if !ok {
		return 0, nil
	}

	var matched []*repository.ScanRecord
	for _, r := range m.records {
		if r.Workplace == p.Workplace && r.Article == p.Article &&
			r.Status == repository.StatusPallet && r.PalletSession != nil && *r.PalletSession == session {
			matched = append(matched, r)
		}
	}
	if m.palletBatches[p.Batch] {
		return 0, apperrors.Conflict("pallet batch already registered: " + p.Batch)
	}
	if len(matched) == 0 {
		return 0, nil
	}

	delete(m.sessions, key)
	m.palletBatches[p.Batch] = true
	now := time.Now()
	for _, r := range matched {
		r.Status = repository.StatusWarehouse
		r.PalletBatch = strPtr(p.Batch)
		r.PalletBatchAt = &now
		r.PalletOperator = strPtr(p.Operator)
	}
	return int64(len(matched)), nil
}

func (m *memRecords) ReworkUnit(_ context.Context, code string, rw repository.Rework) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reworkLocked(rw, func(r *repository.ScanRecord) bool {
		return r.Code == code && r.Status == repository.StatusBox
	}), nil
}

func (m *memRecords) ReworkContainer(_ context.Context, batch string, rw repository.Rework) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reworkLocked(rw, func(r *repository.ScanRecord) bool {
		return r.ContainerBatch != nil && *r.ContainerBatch == batch && r.Status == repository.StatusPallet
	}), nil
}

func (m *memRecords) reworkLocked(rw repository.Rework, match func(*repository.ScanRecord) bool) int64 {
	var n int64
	now := time.Now()
	for _, r := range m.records {
		if r.Workplace != rw.Workplace || r.Article != rw.Article || !match(r) {
			continue
		}
		r.Status = repository.StatusRework
		r.ReworkReason = strPtr(rw.Reason)
		r.ReworkAt = &now
		r.ReworkOperator = strPtr(rw.Operator)
		n++
	}
	return n
}

func (m *memRecords) CountBox(_ context.Context, workplace, article string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Workplace == workplace && r.Article == article && r.Status == repository.StatusBox {
			n++
		}
	}
	return n, nil
}

func (m *memRecords) CountContainersOnPallet(_ context.Context, workplace, article string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := make(map[string]bool)
	for _, r := range m.records {
		if r.Workplace == workplace && r.Article == article &&
			r.Status == repository.StatusPallet && r.ContainerBatch != nil {
			batches[*r.ContainerBatch] = true
		}
	}
	return len(batches), nil
}

func (m *memRecords) ListByCode(_ context.Context, code string) ([]*repository.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.ScanRecord
	for _, r := range m.records {
		if r.Code == code {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRecords) byStatus(status repository.Status) []*repository.ScanRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.ScanRecord
	for _, r := range m.records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

// memRules is an article rule repository that counts lookups
type memRules struct {
	mu    sync.Mutex
	rules map[string]*repository.ArticleRule
	gets  int
}

func newMemRules(rules ...*repository.ArticleRule) *memRules {
	m := &memRules{rules: make(map[string]*repository.ArticleRule)}
	for _, r := range rules {
		m.rules[r.Workplace+"/"+r.Article] = r
	}
	return m
}

func (m *memRules) Get(_ context.Context, workplace, article string) (*repository.ArticleRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	rule, ok := m.rules[workplace+"/"+article]
	if !ok {
		return nil, apperrors.NotFound("article rule", workplace+"/"+article)
	}
	return rule, nil
}

func (m *memRules) lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

type fakeSharedCache struct {
	rules   map[string]*repository.ArticleRule
	getErr  error
	deletes int
}

func newFakeSharedCache() *fakeSharedCache {
	return &fakeSharedCache{rules: make(map[string]*repository.ArticleRule)}
}

func (c *fakeSharedCache) Get(_ context.Context, workplace, article string) (*repository.ArticleRule, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	rule, ok := c.rules[workplace+"/"+article]
	return rule, ok, nil
}

func (c *fakeSharedCache) Set(_ context.Context, rule *repository.ArticleRule) error {
	c.rules[rule.Workplace+"/"+rule.Article] = rule
	return nil
}

func (c *fakeSharedCache) Delete(_ context.Context, workplace, article string) error {
	c.deletes++
	delete(c.rules, workplace+"/"+article)
	return nil
}

type fakeQuality struct {
	passed bool
	err    error
	calls  int
}

func (f *fakeQuality) PartPassed(_ context.Context, _, _ string) (bool, error) {
	f.calls++
	return f.passed, f.err
}

type fakePartStatus struct {
	status client.PartStatus
	err    error
}

func (f *fakePartStatus) PartStatus(_ context.Context, _, _ string) (client.PartStatus, error) {
	return f.status, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*client.AggregateChangedEvent
}

func (p *recordingPublisher) PublishAggregateChanged(_ context.Context, event *client.AggregateChangedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *recordingPublisher) last() *client.AggregateChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}
