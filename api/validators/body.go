package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}()

// tagMessages phrase validator tags for API clients. A trailing space means
// the tag parameter is appended.
var tagMessages = map[string]string{
	"required": "is required",
	"min":      "must be at least ",
	"max":      "must be at most ",
	"gt":       "must be greater than ",
	"oneof":    "must be one of ",
	"uuid":     "must be a valid uuid",
	"uuid4":    "must be a valid uuid",
}

// DecodeJSONBody decodes exactly one JSON object of at most 1 MiB into dest,
// rejecting unknown fields, and then validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	switch err := decoder.Decode(dest); {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	case decoder.More():
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	return ValidateStruct(dest)
}

// ValidateStruct runs the validate tags on v and reports failures per JSON
// field name.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func describe(fe validator.FieldError) string {
	msg, ok := tagMessages[fe.Tag()]
	switch {
	case !ok:
		return "is invalid"
	case fe.Tag() == "oneof":
		return msg + "[" + fe.Param() + "]"
	case strings.HasSuffix(msg, " "):
		return msg + fe.Param()
	}
	return msg
}
