package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as the JSON error envelope and logs it: server
// faults at error level, rejected requests at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status, envelope := render(err)
	if logg != nil {
		logFailure(ctx, logg, err, status)
	}
	writeJSON(w, status, envelope)
}

// render maps err to its status and public envelope. Untyped errors are
// internal, and messages of server faults never leave the process.
func render(err error) (int, ErrorEnvelope) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	out := APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		Retryable: meta.Retryable,
	}
	if meta.ClientFault() && typed.Message() != "" {
		out.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return meta.HTTPStatus, ErrorEnvelope{Error: out}
}

func logFailure(ctx context.Context, logg *logger.Logger, err error, status int) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": status,
	}
	if dump.PG != nil {
		fields["pg_code"] = dump.PG.Code
		fields["pg_constraint"] = dump.PG.Constraint
	}
	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

// writeJSON ignores encode failures; by then the status line is sent and the
// client has usually gone away.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
