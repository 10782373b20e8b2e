package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmadan24/wealth-advisor/internal/clients/advisor"
	"github.com/hmadan24/wealth-advisor/internal/models"
	"github.com/hmadan24/wealth-advisor/internal/parsers"
	"github.com/hmadan24/wealth-advisor/internal/portfolio"
)

// maxUploadBytes bounds statement uploads (CAS PDFs are rarely over 2MB).
const maxUploadBytes = 20 << 20

// handleUploadCAS handles POST /api/upload-cas. It parses an uploaded
// statement PDF and merges it into the caller's portfolio. Unauthenticated callers get
// a transient preview with insights instead; nothing is stored for them.
func (s *Server) handleUploadCAS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		WriteError(w, http.StatusBadRequest, "Only PDF statements are supported")
		return
	}

	password := r.FormValue("password")

	// The PDF reader needs a seekable file of known size.
	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to buffer upload")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to buffer upload")
		return
	}

	var (
		segment models.Segment
		source  string
	)
	if parsers.IsUSEquityPDF(tmp.Name(), password) {
		segment, err = parsers.ParseUSEquity(tmp.Name(), password)
		source = models.SourceUSEquity
	} else {
		segment, err = parsers.ParseCAS(tmp.Name(), password)
		source = models.SourceCAS
	}
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(segment.Holdings) == 0 {
		WriteError(w, http.StatusUnprocessableEntity, "No holdings found in statement")
		return
	}

	// Anonymous upload: evaluate without persisting.
	uc := userPhone(r)
	if uc == "" {
		preview, err := s.app.PortfolioService.EvaluateSegment(segment)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteData(w, http.StatusOK, map[string]interface{}{
			"preview":   true,
			"source":    source,
			"portfolio": preview,
		})
		return
	}

	p, err := s.app.PortfolioService.IngestSegment(r.Context(), uc, segment, source, header.Filename)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, map[string]interface{}{
		"source":    source,
		"portfolio": p,
	})
}

// handleManualEntry handles POST and DELETE /api/manual-entry.
func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleManualEntryAdd(w, r)
	case http.MethodDelete:
		s.handleManualEntryDelete(w, r)
	default:
		RequireMethod(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleManualEntryAdd(w http.ResponseWriter, r *http.Request) {
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		SchemeName     string  `json:"scheme_name"`
		AssetClass     string  `json:"asset_class"`
		AMC            string  `json:"amc"`
		Folio          string  `json:"folio"`
		Units          float64 `json:"units"`
		NAV            float64 `json:"nav"`
		CurrentValue   float64 `json:"current_value"`
		InvestedAmount float64 `json:"invested_amount"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.SchemeName == "" {
		WriteError(w, http.StatusBadRequest, "scheme_name is required")
		return
	}
	if req.CurrentValue <= 0 {
		WriteError(w, http.StatusBadRequest, "current_value must be positive")
		return
	}

	holding := models.Holding{
		SchemeName:     req.SchemeName,
		AssetClass:     models.AssetClass(req.AssetClass),
		AMC:            req.AMC,
		Folio:          req.Folio,
		Units:          req.Units,
		NAV:            req.NAV,
		CurrentValue:   req.CurrentValue,
		InvestedAmount: req.InvestedAmount,
	}

	p, err := s.app.PortfolioService.AddManualHolding(r.Context(), phone, holding)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteData(w, http.StatusOK, p)
}

func (s *Server) handleManualEntryDelete(w http.ResponseWriter, r *http.Request) {
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	schemeName := r.URL.Query().Get("scheme_name")
	if schemeName == "" {
		WriteError(w, http.StatusBadRequest, "scheme_name query parameter is required")
		return
	}

	p, deleted, err := s.app.PortfolioService.DeleteManualHolding(r.Context(), phone, schemeName)
	if err != nil {
		s.writePortfolioError(w, err)
		return
	}
	if deleted == 0 {
		WriteError(w, http.StatusNotFound, "No manual holding with that scheme name")
		return
	}

	WriteData(w, http.StatusOK, map[string]interface{}{
		"deleted":   deleted,
		"portfolio": p,
	})
}

// handlePortfolio handles GET and DELETE /api/portfolio.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.app.PortfolioService.GetPortfolio(r.Context(), phone)
		if err != nil {
			s.writePortfolioError(w, err)
			return
		}
		WriteData(w, http.StatusOK, p)

	case http.MethodDelete:
		deleted, err := s.app.PortfolioService.DeletePortfolio(r.Context(), phone)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteData(w, http.StatusOK, map[string]interface{}{"deleted": deleted})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handleSegments handles GET /api/portfolio/segments.
func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	listings, err := s.app.PortfolioService.ListSegments(r.Context(), phone)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteData(w, http.StatusOK, listings)
}

// handleSegmentDelete handles DELETE /api/portfolio/segment/{source}.
func (s *Server) handleSegmentDelete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	source := PathParam(r, "/api/portfolio/segment/", "")
	if source == "" {
		WriteError(w, http.StatusBadRequest, "source is required in path")
		return
	}

	p, err := s.app.PortfolioService.DeleteSegment(r.Context(), phone, source)
	if err != nil {
		s.writePortfolioError(w, err)
		return
	}
	WriteData(w, http.StatusOK, p)
}

// handleChart handles GET /api/portfolio/chart, a PNG donut of the allocation.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	png, err := s.app.PortfolioService.AllocationChart(r.Context(), phone)
	if err != nil {
		s.writePortfolioError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleNarrative handles POST /api/portfolio/narrative, an AI summary of
// the portfolio's condition.
func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	phone, ok := requireUser(w, r)
	if !ok {
		return
	}

	if s.app.AdvisorClient == nil {
		WriteError(w, http.StatusServiceUnavailable, "Advisor is not configured")
		return
	}

	p, err := s.app.PortfolioService.GetPortfolio(r.Context(), phone)
	if err != nil {
		s.writePortfolioError(w, err)
		return
	}

	narrative, err := s.app.AdvisorClient.GenerateNarrative(r.Context(), advisor.BuildPrompt(p))
	if err != nil {
		s.logger.Error().Err(err).Str("user", phone).Msg("Advisor narrative failed")
		WriteError(w, http.StatusBadGateway, "Failed to generate narrative")
		return
	}

	WriteData(w, http.StatusOK, map[string]interface{}{
		"narrative": narrative,
	})
}

// writePortfolioError maps service errors to HTTP statuses.
func (s *Server) writePortfolioError(w http.ResponseWriter, err error) {
	if errors.Is(err, portfolio.ErrNoPortfolio) {
		WriteError(w, http.StatusNotFound, "No portfolio found")
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
