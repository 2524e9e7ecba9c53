package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
)

const maxInspectedBody = 1 << 20

// multipartRoutes accept multipart/form-data; every other body must be JSON
var multipartRoutes = map[string]bool{
	"POST /admin/properties": true,
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ValidateContentType rejects POST/PUT/PATCH bodies that are not JSON, or
// multipart form data on the routes that take uploads
func ValidateContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			allowed := err == nil && (mediaType == "application/json" ||
				(mediaType == "multipart/form-data" && multipartRoutes[r.Method+" "+r.URL.Path]))
			if !allowed {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", r.Header.Get("Content-Type")),
					slog.String("method", r.Method),
				)
				writeJSONError(w, http.StatusUnsupportedMediaType, "unsupported content type")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSONFields rejects JSON object bodies where any of fields is absent
// or null. The body is restored so the handler can decode it again.
func RequireJSONFields(fields []string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				writeJSONError(w, http.StatusBadRequest, "request body required")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxInspectedBody+1))
			r.Body.Close()
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "failed to read body")
				return
			}
			if len(body) > maxInspectedBody {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var payload map[string]json.RawMessage
			if err := json.Unmarshal(body, &payload); err != nil {
				log.Warn("invalid json payload",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}

			for _, field := range fields {
				if raw, ok := payload[field]; !ok || string(raw) == "null" {
					log.Warn("missing required field",
						slog.String("path", r.URL.Path),
						slog.String("field", field),
					)
					writeJSONError(w, http.StatusBadRequest, "missing required field: "+field)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs rejects query values carrying markup or control characters
// and paths with traversal patterns
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected", slog.String("path", r.URL.Path))
				writeJSONError(w, http.StatusBadRequest, "invalid path")
				return
			}

			for key, values := range r.URL.Query() {
				for _, val := range values {
					if i := strings.IndexAny(val, "<>\"'\x00"); i >= 0 {
						log.Warn("suspicious input detected",
							slog.String("path", r.URL.Path),
							slog.String("param", key),
							slog.String("pattern", val[i:i+1]),
						)
						writeJSONError(w, http.StatusBadRequest, "invalid characters in "+key)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
