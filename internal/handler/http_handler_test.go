package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

func newTestServer(svc *fakeScanService, db Pinger) *httptest.Server {
	mux := http.NewServeMux()
	NewHTTPHandler(svc, NewLocalizer(), db, logger.Nop()).Routes(mux)
	return httptest.NewServer(mux)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHTTPHandler_Scan(t *testing.T) {
	svc := &fakeScanService{result: &service.Result{
		Reason:   scancode.OK,
		Category: scancode.CategoryOK,
		Record:   &repository.ScanRecord{Code: "PK1234500000000000000001"},
		Status:   &service.Status{BoxCount: 1, UnitsPerContainer: 40, Expect: service.KindUnit},
	}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/scans", strings.NewReader(
		`{"workplace":"w1","article":"12345","operator":"op7","kind":"unit","code":"PK1234500000000000000001"}`))
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "de")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["result"])
	assert.Equal(t, "unit", body["kind"])
	assert.Equal(t, "Teil angenommen", body["message"])
	assert.Equal(t, "success", body["cue"])
	status := body["status"].(map[string]interface{})
	assert.Equal(t, float64(1), status["box_count"])

	require.NotNil(t, svc.lastScan)
	assert.Equal(t, "op7", svc.lastScan.Operator)
	assert.Equal(t, service.KindUnit, svc.lastScan.Kind)
}

func TestHTTPHandler_ScanRejections(t *testing.T) {
	tests := []struct {
		reason scancode.Reason
		status int
		cue    string
	}{
		{scancode.WrongPrefix, http.StatusUnprocessableEntity, "failure"},
		{scancode.Exists, http.StatusConflict, "warning"},
		{scancode.RuleNotFound, http.StatusNotFound, "warning"},
		{scancode.ExternalCheckUnavailable, http.StatusServiceUnavailable, "failure"},
		{scancode.FetchError, http.StatusBadGateway, "failure"},
		{scancode.Internal, http.StatusInternalServerError, "failure"},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			svc := &fakeScanService{result: &service.Result{Reason: tt.reason, Category: tt.reason.Category()}}
			srv := newTestServer(svc, nil)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/v1/scans", "application/json",
				strings.NewReader(`{"workplace":"w1","article":"12345","operator":"op7","kind":"unit","code":"x"}`))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decodeBody(t, resp)
			assert.Equal(t, string(tt.reason), body["result"])
			assert.Equal(t, tt.cue, body["cue"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHTTPHandler_ScanBadRequest(t *testing.T) {
	srv := newTestServer(&fakeScanService{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/scans", "application/json", strings.NewReader(`{not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/scans")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

func TestHTTPHandler_ReworkRoutes(t *testing.T) {
	svc := &fakeScanService{result: &service.Result{Reason: scancode.OK, Kind: service.KindContainer, Reworked: 40}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/scans/rework-container", "application/json", strings.NewReader(
		`{"workplace":"w1","article":"12345","operator":"op7","code":"ignored","container_batch":"BOX0000001","reason":"damage"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "40 units sent to rework", body["message"])
	assert.Equal(t, "", svc.lastRework.Code)
	assert.Equal(t, "BOX0000001", svc.lastRework.ContainerBatch)

	resp, err = http.Post(srv.URL+"/api/v1/scans/rework-container", "application/json", strings.NewReader(
		`{"workplace":"w1","article":"12345","operator":"op7","reason":"damage"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/v1/scans/rework", "application/json", strings.NewReader(
		`{"workplace":"w1","article":"12345","operator":"op7","code":"PK1","container_batch":"BOX0000001","reason":"damage"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "PK1", svc.lastRework.Code)
	assert.Equal(t, "", svc.lastRework.ContainerBatch)
}

func TestHTTPHandler_Status(t *testing.T) {
	svc := &fakeScanService{status: &service.Status{
		Workplace: "w1", Article: "12345", BoxCount: 40, UnitsPerContainer: 40, Expect: service.KindContainer,
	}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/scans/status?workplace=w1&article=12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "container", body["expect"])

	resp, err = http.Get(srv.URL + "/api/v1/scans/status?workplace=w1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	svc.statusErr = apperrors.NotFound("article rule", "w1/99999")
	resp, err = http.Get(srv.URL + "/api/v1/scans/status?workplace=w1&article=99999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	svc.statusErr = errors.New("connection reset")
	resp, err = http.Get(srv.URL + "/api/v1/scans/status?workplace=w1&article=12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "internal error", body["error"])
}

func TestHTTPHandler_Record(t *testing.T) {
	svc := &fakeScanService{records: []*repository.ScanRecord{
		{Code: "PK1", Status: repository.StatusRework},
		{Code: "PK1", Status: repository.StatusBox},
	}}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/scans/record?code=PK1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["records"], 2)
}

func TestHTTPHandler_PalletLabel(t *testing.T) {
	svc := &fakeScanService{label: "A:12345|O:PL|Q:800|B:AA0F3C9B12|C:G"}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/labels/pallet?workplace=w1&article=12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, svc.label, body["label"])

	svc.labelErr = apperrors.InvalidInput("pallet", "no pallet size configured")
	resp, err = http.Get(srv.URL + "/api/v1/labels/pallet?workplace=w1&article=12345")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestHTTPHandler_InvalidateRule(t *testing.T) {
	svc := &fakeScanService{}
	srv := newTestServer(svc, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/rules/invalidate", "application/json",
		strings.NewReader(`{"workplace":"w1","article":"12345"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"w1/12345"}, svc.invalidated)

	svc.invalidateErr = apperrors.Unavailable(errors.New("redis down"), "failed to invalidate shared rule cache")
	resp, err = http.Post(srv.URL+"/api/v1/rules/invalidate", "application/json",
		strings.NewReader(`{"workplace":"w1","article":"12345"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPHandler_Health(t *testing.T) {
	srv := newTestServer(&fakeScanService{}, fakePinger{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decodeBody(t, resp)["status"])

	down := newTestServer(&fakeScanService{}, fakePinger{err: errors.New("refused")})
	defer down.Close()

	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestHTTPStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatusFor(&service.Result{Reason: scancode.OK, Kind: service.KindContainer}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatusFor(&service.Result{Reason: scancode.InvalidRequest}))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFor(&service.Result{Reason: scancode.NotFound}))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatusFor(&service.Result{Reason: scancode.SizeMissing}))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatusFor(&service.Result{Reason: scancode.PartNOK}))
}
