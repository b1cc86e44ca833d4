// This file implements utilities for decoding and validating request data:
// JSON bodies checked with struct tags, and typed query parameters.

package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dhishan/family-expense-tracker/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// RequestValidator checks decoded request bodies against their validate tags.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Struct validates v and converts failures to a core validation error.
func (rv *RequestValidator) Struct(v any) error {
	err := rv.v.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return core.Invalid("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return core.Invalid("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "alpha":
		return field + " must contain only letters"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return field + " is invalid"
	}
}

// decodeJSON reads a bounded JSON body into v and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Invalid("request body exceeds %d bytes", maxBodyBytes)
		}
		return core.Invalid("could not read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return core.Invalid("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.Invalid("invalid JSON body: %s", jsonProblem(err))
	}
	return s.validate.Struct(v)
}

// jsonProblem keeps decode errors short and free of Go type names.
func jsonProblem(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %s has the wrong type", typeErr.Field)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed JSON"
	}
	if errors.Is(err, core.ErrValidation) {
		return core.Message(err)
	}
	return err.Error()
}

// queryParams parses typed query parameters, remembering the first failure.
type queryParams struct {
	values url.Values
	err    error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{values: r.URL.Query()}
}

func (q *queryParams) fail(name, want string) {
	if q.err == nil {
		q.err = core.Invalid("query parameter %s must be %s", name, want)
	}
}

func (q *queryParams) String(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

// Int returns def when the parameter is absent.
func (q *queryParams) Int(name string, def int) int {
	v := q.String(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.fail(name, "an integer")
		return def
	}
	return n
}

func (q *queryParams) Float(name string) *float64 {
	v := q.String(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.fail(name, "a number")
		return nil
	}
	return &f
}

func (q *queryParams) Bool(name string) bool {
	v := q.String(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, "true or false")
		return false
	}
	return b
}

// Date returns the zero Date when the parameter is absent.
func (q *queryParams) Date(name string) core.Date {
	v := q.String(name)
	if v == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(v)
	if err != nil {
		q.fail(name, "a date formatted YYYY-MM-DD")
		return core.Date{}
	}
	return d
}

func (q *queryParams) Err() error {
	return q.err
}
