package http

import (
	"context"
	"errors"
	"net/http"

	"controle/internal/core"
	"controle/internal/log"
	"controle/internal/middleware/trace"
)

// writeError maps err onto a status code. Only unexpected failures are
// logged at error level; client mistakes are logged at debug.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	var resp *JSONResponseBuilder
	switch {
	case errors.Is(err, ErrBadRequest):
		resp = BadRequestError(err.Error())
	case errors.Is(err, core.ErrValidation):
		resp = UnprocessableEntityError(err.Error())
	case errors.Is(err, core.ErrNotFound):
		resp = NotFoundError(err.Error())
	case errors.Is(err, core.ErrConflict):
		resp = ConflictError(err.Error())
	case errors.Is(err, core.ErrStorageUnavailable):
		s.logger.LogError(ctx, "Storage unavailable", err, log.ComponentHTTP, op, nil)
		resp = ServiceUnavailableError("storage unavailable, try again later")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		return
	default:
		s.logger.LogError(ctx, "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithRequest(r))
		resp = InternalServerError("internal error")
	}

	if resp.statusCode < http.StatusInternalServerError {
		log.FromContext(ctx).DebugContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, resp.statusCode,
			log.FieldError, err)
	}
	resp.WithRequestID(trace.GetRequestID(ctx)).Write(w)
}
