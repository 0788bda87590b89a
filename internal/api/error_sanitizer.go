package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sparklebrand/brand-api/internal/pkg/httputil"
	"github.com/sparklebrand/brand-api/internal/validation"
)

// writeError is the single error boundary for handlers. Validation failures
// become 422 with field details. Anything else is logged in full and
// answered with a 500 carrying only publicMsg, so store details never reach
// the client.
func writeError(w http.ResponseWriter, r *http.Request, err error, publicMsg string) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		httputil.Unprocessable(w, "validation failed", verr.Fields)
		return
	}
	httputil.InternalError(w, err, publicMsg,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()))
}
