package httpx

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/ariefcatur/campus-market/internal/apperr"
	"github.com/go-playground/validator/v10"
)

// DecodeError reports a request that could not be turned into typed
// parameters. It always travels wrapped as apperr.KindInvalidInput.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode fills dst from the raw action body and runs its validate tags.
// Range checks (qty, rating) are left to the domain.
func decode(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return invalid(&DecodeError{Field: te.Field, Reason: "has the wrong type"})
		}
		return invalid(&DecodeError{Reason: "malformed JSON"})
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			reason := "failed " + fe.Tag()
			if fe.Tag() == "required" {
				reason = "is required"
			}
			return invalid(&DecodeError{Field: fe.Field(), Reason: reason})
		}
		return invalid(&DecodeError{Reason: "invalid request"})
	}
	return nil
}

func invalid(de *DecodeError) error {
	return apperr.Wrap(apperr.KindInvalidInput, de, de.Error())
}
