package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInvalidState, status: http.StatusConflict, publicMsg: "resource is not in a valid state for this request", detailsOK: true},
		{code: CodeInvalidOperation, status: http.StatusUnprocessableEntity, publicMsg: "operation not permitted", detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodePaymentVerificationFailed, status: http.StatusPaymentRequired, publicMsg: "payment verification failed"},
		{code: CodeUpstreamFailure, status: http.StatusBadGateway, publicMsg: "payment gateway unavailable", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeUpstreamFailure, cause, "create intent")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeUpstreamFailure {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsAndIsCodeSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("confirm: %w", New(CodeConflict, "product already reserved"))
	if got := As(err); got == nil || got.Code() != CodeConflict {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeConflict) {
		t.Fatalf("expected IsCode to match conflict")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatalf("expected IsCode to reject other codes")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey", TableName: "orders"}
	err := Wrap(CodeInternal, pgErr, "insert order")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", d.Code)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Constraint != "orders_pkey" || d.PG.Table != "orders" {
		t.Fatalf("unexpected pg fields %+v", d.PG)
	}
	if !d.Retryable {
		t.Fatalf("internal errors are retryable")
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}

func TestPGErrorReadsLibPQ(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "ux_orders_gateway_order_ref"})
	pg, ok := PGError(err)
	if !ok {
		t.Fatalf("expected pq error to be recognized")
	}
	if pg.Code != "23505" || pg.Constraint != "ux_orders_gateway_order_ref" {
		t.Fatalf("unexpected details %+v", pg)
	}
	if _, ok := PGError(stdErrors.New("plain")); ok {
		t.Fatalf("plain errors carry no pg details")
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	notFound := New(CodeNotFound, "")
	err := fmt.Errorf("load order: %w", Newf(CodeNotFound, "order %d missing", 7))

	if !stdErrors.Is(err, notFound) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if stdErrors.Is(err, New(CodeConflict, "")) {
		t.Fatalf("different codes must not match")
	}
	if got := As(err).Message(); got != "order 7 missing" {
		t.Fatalf("unexpected formatted message %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(Wrap(CodeUpstreamFailure, stdErrors.New("timeout"), "charge")); got != CodeUpstreamFailure {
		t.Fatalf("expected %s got %s", CodeUpstreamFailure, got)
	}
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("untyped errors should report %s, got %s", CodeInternal, got)
	}
}
