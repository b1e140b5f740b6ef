package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 2 << 20

// DecodeError carries the HTTP status a failed body decode should be answered with.
type DecodeError struct {
	Status int
	Msg    string
}

func (e *DecodeError) Error() string { return e.Msg }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
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
	return v
}

// DecodeJSON reads a single JSON document from r into dst and checks dst's
// `validate` tags. Failures are returned as *DecodeError:
//
//	415 content type is not JSON
//	413 body larger than MaxBodyBytes
//	400 empty body, invalid UTF-8, malformed JSON, trailing data
//	422 well-formed JSON of the wrong shape (type mismatch, missing field)
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		return &DecodeError{
			Status: http.StatusUnsupportedMediaType,
			Msg:    "expected request with Content-Type: application/json",
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return classifyDecodeError(err)
	}
	if !utf8.Valid(body) {
		return &DecodeError{Status: http.StatusBadRequest, Msg: "request body is not valid UTF-8"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return classifyDecodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &DecodeError{Status: http.StatusBadRequest, Msg: "trailing data after JSON body"}
	}

	return Validate(dst)
}

// Validate checks v's `validate` tags. A failed tag becomes a 422 *DecodeError
// naming the field by its JSON name.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "required" {
				return &DecodeError{
					Status: http.StatusUnprocessableEntity,
					Msg:    fmt.Sprintf("missing field `%s`", fe.Field()),
				}
			}
			return &DecodeError{
				Status: http.StatusUnprocessableEntity,
				Msg:    fmt.Sprintf("invalid field `%s`: failed %s", fe.Field(), fe.Tag()),
			}
		}
		return fmt.Errorf("validate body: %w", err)
	}
	return nil
}

// WriteDecodeError answers with the status carried by a DecodeJSON error.
func WriteDecodeError(w http.ResponseWriter, err error) {
	var de *DecodeError
	if errors.As(err, &de) {
		WriteError(w, de.Status, de.Msg)
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || (strings.HasPrefix(mt, "application/") && strings.HasSuffix(mt, "+json"))
}

func classifyDecodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return &DecodeError{Status: http.StatusBadRequest, Msg: "request body is empty"}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &DecodeError{Status: http.StatusBadRequest, Msg: "request body ends mid-document"}
	case errors.As(err, &syntaxErr):
		return &DecodeError{
			Status: http.StatusBadRequest,
			Msg:    fmt.Sprintf("malformed JSON at offset %d: %v", syntaxErr.Offset, syntaxErr),
		}
	case errors.As(err, &typeErr):
		return &DecodeError{
			Status: http.StatusUnprocessableEntity,
			Msg:    fmt.Sprintf("field `%s`: cannot use %s as %s", typeErr.Field, typeErr.Value, typeErr.Type),
		}
	case errors.As(err, &maxErr):
		return &DecodeError{
			Status: http.StatusRequestEntityTooLarge,
			Msg:    fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
		}
	default:
		return &DecodeError{Status: http.StatusBadRequest, Msg: err.Error()}
	}
}
