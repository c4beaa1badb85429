package errors

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/copyleftdev/aimbench/internal/logging"
)

// RecoveryMiddleware returns a middleware that recovers from panics, logs
// them with a stack trace and answers 500 with a JSON error body.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Recovered from panic", map[string]interface{}{
					"panic":  rec,
					"stack":  string(debug.Stack()),
					"method": r.Method,
					"path":   r.URL.Path,
					"query":  r.URL.RawQuery,
				})

				WriteJSON(w, New(KindInternal, http.StatusText(http.StatusInternalServerError)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Body is the JSON error envelope written by WriteJSON.
type Body struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteJSON writes err as a JSON error body with the status of its kind.
// Internal errors do not expose their message.
func WriteJSON(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindInternal {
		msg = http.StatusText(http.StatusInternalServerError)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(Body{Error: msg, Kind: kind.String()})
}
