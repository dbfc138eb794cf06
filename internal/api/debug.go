package api

import (
	"net/http"
	"os"
	"time"

	"transpath/internal/buildinfo"
)

// DebugJSON reports build and configuration state for operators.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if p := s.getPrincipal(r); p.Role != "admin" && p.Role != "modeler" {
		writeProblem(w, http.StatusForbidden, "Forbidden", "modeler or admin role required", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 os.Getenv("PORT"),
			"AUTH_MODE":            os.Getenv("AUTH_MODE"),
			"DATASETS_DIR":         os.Getenv("DATASETS_DIR"),
			"RATE_RPS":             os.Getenv("RATE_RPS"),
			"RATE_BURST":           os.Getenv("RATE_BURST"),
			"WEBHOOK_MAX_ATTEMPTS": os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
			"HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
		},
	})
}
