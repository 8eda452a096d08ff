package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/streamwarden/streamwarden/internal/errors"
)

var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

// metricsHandler proxies Prometheus metrics from the exporter listening on
// port so callers can scrape /metrics on the status server. Port 0 means no
// exporter is running.
func (s *Server) metricsHandler(port int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if port == 0 {
			HandleError(w, r, apperrors.NewUnavailableError("Metrics exporter not initialized"))
			return
		}

		metricsURL := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, metricsURL, nil)
		if err != nil {
			HandleError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
			return
		}

		// Preserve caller hint for content negotiation
		if accept := r.Header.Get("Accept"); accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := s.metricsClient.Do(req)
		if err != nil {
			HandleError(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
			return
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				s.logger.Warn("Failed to close metrics response body", zap.Error(err))
			}
		}()

		for key, values := range resp.Header {
			if isHopByHop(key) {
				continue
			}
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}

		// Ensure we always advertise Prometheus content type
		if resp.Header.Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		}

		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			s.logger.Warn("Failed to write metrics response", zap.Error(err))
		}
	}
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}
