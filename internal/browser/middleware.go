package browser

import (
	"net/http"
	"time"

	"github.com/dgellow/resumescan/internal/log"
)

// statusRecorder captures the status a handler writes
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests logs each callback hit. The query carries the authorization
// code, so only the names of its parameters are logged.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		params := make([]string, 0, len(r.URL.Query()))
		for k := range r.URL.Query() {
			params = append(params, k)
		}
		log.LogDebugWithFields("browser", "Callback request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"params":      params,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.LogErrorWithFields("browser", "Recovered from panic in callback handler", map[string]any{
					"panic": err,
				})
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
