package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hmadan24/wealth-advisor/internal/app"
	"github.com/hmadan24/wealth-advisor/internal/common"
	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/portfolio"
	"github.com/hmadan24/wealth-advisor/internal/rules"
	"github.com/hmadan24/wealth-advisor/internal/storage"
)

func testRuleStore() *rules.Store {
	return &rules.Store{
		Concentration: rules.ConcentrationRules{
			HighThresholdPct:     40,
			ModerateThresholdPct: 25,
			OverDiversifiedCount: 15,
			ConsolidationTarget:  10,
		},
		AssetAllocation: rules.AssetAllocationRules{
			AggressiveEquityPct:   80,
			ConservativeEquityPct: 40,
		},
		AMC: rules.AMCRules{ConcentrationPct: 60, Severity: "low"},
		Performance: rules.PerformanceRules{
			StrongPerformerPct: 15,
			ReviewCap:          3,
		},
		Overlap: rules.OverlapRules{
			LargeCapKeywords: []string{"large cap"},
			FlexiCapKeywords: []string{"flexi cap"},
			LargeCapMax:      2,
			FlexiCapMax:      2,
		},
		HealthScore: rules.HealthScoreRules{
			HighRiskPenalty:       15,
			MediumRiskPenalty:     8,
			LowRiskPenalty:        3,
			StrongReturnPct:       12,
			StrongReturnBonus:     5,
			NegativeReturnPenalty: 10,
			DiversificationMin:    5,
			DiversificationMax:    12,
			DiversificationBonus:  5,
			Grades: []rules.GradeBand{
				{MinScore: 80, Grade: "A", Verdict: "Excellent"},
				{MinScore: 0, Grade: "D", Verdict: "Needs Attention"},
			},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := common.NewSilentLogger()
	manager, err := storage.NewManager(logger, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	ruleStore := testRuleStore()
	config := common.NewDefaultConfig()

	a := &app.App{
		Config:           config,
		Logger:           logger,
		Storage:          manager,
		Rules:            ruleStore,
		PortfolioService: portfolio.NewService(manager, ruleStore, logger),
	}
	return NewServer(a)
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// loginDemo runs the demo-mode OTP flow and returns a bearer token.
func loginDemo(t *testing.T, srv *Server) string {
	t.Helper()

	auth := srv.app.Config.Auth
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"phone": auth.DemoPhone,
		"otp":   auth.DemoOTP,
		"name":  "Demo User",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("demo login: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("empty token")
	}
	return resp.Data.Token
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestSendOTPValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/send-otp", "", map[string]string{"phone": "not-a-phone"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid phone: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/auth/send-otp", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}

func TestVerifyOTPRejectsWrongCode(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"phone": "+919876543210",
		"otp":   "000000",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestDemoLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Phone != srv.app.Config.Auth.DemoPhone {
		t.Errorf("phone = %s, want demo phone", resp.Data.Phone)
	}
	if resp.Data.Name != "Demo User" {
		t.Errorf("name = %q, want Demo User", resp.Data.Name)
	}
}

func TestAuthMeRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/auth/me", "garbage.token.here", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestPortfolioRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/portfolio", "/api/portfolio/segments", "/api/portfolio/chart"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestPortfolioNotFound(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any upload", rec.Code)
	}
}

func TestManualEntryLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"scheme_name":     "HDFC Large Cap Fund",
		"current_value":   50000,
		"invested_amount": 40000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Portfolio `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Summary.TotalValue != 50000 {
		t.Errorf("TotalValue = %.2f, want 50000", resp.Data.Summary.TotalValue)
	}
	if resp.Data.Insights == nil {
		t.Error("insights missing from ingestion response")
	}

	// The portfolio is now readable.
	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}

	// Segments list the manual upload.
	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio/segments", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("segments: status = %d", rec.Code)
	}
	var segs struct {
		Data []models.SegmentListing `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &segs); err != nil {
		t.Fatalf("decode segments: %v", err)
	}
	if len(segs.Data) != 1 || segs.Data[0].Source != models.SourceManual {
		t.Errorf("segments = %+v, want one manual segment", segs.Data)
	}

	// Delete the holding by scheme name.
	rec = doJSON(t, srv, http.MethodDelete, "/api/manual-entry?scheme_name="+"HDFC+Large+Cap+Fund", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/manual-entry?scheme_name=No+Such", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", rec.Code)
	}
}

func TestManualEntryValidation(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"current_value": 1000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing scheme_name: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"scheme_name":   "X",
		"current_value": -5,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative value: status = %d, want 400", rec.Code)
	}
}

func TestSegmentDelete(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"scheme_name":   "Some Fund",
		"current_value": 1000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/portfolio/segment/%s", models.SourceManual), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete segment: status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.Portfolio `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Holdings) != 0 {
		t.Errorf("got %d holdings after segment delete, want 0", len(resp.Data.Holdings))
	}
}

func TestPortfolioDelete(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"scheme_name":   "Some Fund",
		"current_value": 1000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 after delete", rec.Code)
	}
}

func TestChartEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/manual-entry", token, map[string]interface{}{
		"scheme_name":   "HDFC Large Cap Fund",
		"current_value": 50000,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed: status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio/chart", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chart: status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s, want image/png", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty chart body")
	}
}

func TestNarrativeUnavailableWithoutAdvisor(t *testing.T) {
	srv := newTestServer(t)
	token := loginDemo(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/portfolio/narrative", token, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 with no advisor configured", rec.Code)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload-cas", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCORSPreflights(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS headers")
	}
}
