package api

import (
	"net/http"
	"time"

	"jumpnav/internal/buildinfo"
)

// DebugJSON reports build metadata, the effective configuration and the
// callback backlog. Secrets are tagged json:"-" in config and never appear.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":       buildinfo.Info(),
		"time":        time.Now().UTC().Format(time.RFC3339),
		"config":      s.Config,
		"hasRedisUrl": s.Config.Server.RedisURL != "",
	}
	if s.Notifier != nil {
		info["callbacks"] = map[string]any{
			"pending": s.Notifier.Pending(),
			"failed":  len(s.Notifier.Failed()),
		}
	}
	writeJSON(w, http.StatusOK, info)
}
