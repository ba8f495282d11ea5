// Package console serves the embedded operator console page.
package console

import (
	_ "embed"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed mainadmin.html
var page []byte

type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Handler serves GET /mainadmin?token=. Any verification failure,
// including a missing token, yields 403.
func Handler(tokens TokenVerifier, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := tokens.Verify(strings.TrimSpace(r.URL.Query().Get("token")))
		if err != nil {
			logger.Warn("console access denied", "error", err)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		logger.Info("console opened", "admin", identity)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	})
}
