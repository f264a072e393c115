package handler

import (
	"context"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

type fakeScanService struct {
	result     *service.Result
	lastScan   *service.ScanRequest
	lastRework *service.ReworkRequest

	status    *service.Status
	statusErr error

	records    []*repository.ScanRecord
	recordsErr error

	label    string
	labelErr error

	invalidated   []string
	invalidateErr error
}

func (f *fakeScanService) Scan(_ context.Context, req *service.ScanRequest) *service.Result {
	f.lastScan = req
	res := *f.result
	res.Kind = req.Kind
	return &res
}

func (f *fakeScanService) Rework(_ context.Context, req *service.ReworkRequest) *service.Result {
	f.lastRework = req
	res := *f.result
	return &res
}

func (f *fakeScanService) Status(_ context.Context, _, _ string) (*service.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeScanService) LookupRecords(_ context.Context, _ string) ([]*repository.ScanRecord, error) {
	return f.records, f.recordsErr
}

func (f *fakeScanService) PalletLabel(_ context.Context, _, _ string) (string, error) {
	return f.label, f.labelErr
}

func (f *fakeScanService) InvalidateRule(_ context.Context, workplace, article string) error {
	f.invalidated = append(f.invalidated, workplace+"/"+article)
	return f.invalidateErr
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
