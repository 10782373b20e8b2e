package server

import (
	"net/http"

	"github.com/hmadan24/wealth-advisor/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Auth
	mux.HandleFunc("/api/auth/send-otp", s.handleSendOTP)
	mux.HandleFunc("/api/auth/verify-otp", s.handleVerifyOTP)
	mux.HandleFunc("/api/auth/me", s.handleAuthMe)

	// Ingestion
	mux.HandleFunc("/api/upload-cas", s.handleUploadCAS)
	mux.HandleFunc("/api/manual-entry", s.handleManualEntry)

	// Portfolio
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)
	mux.HandleFunc("/api/portfolio/segments", s.handleSegments)
	mux.HandleFunc("/api/portfolio/segment/", s.handleSegmentDelete)
	mux.HandleFunc("/api/portfolio/chart", s.handleChart)
	mux.HandleFunc("/api/portfolio/narrative", s.handleNarrative)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}
