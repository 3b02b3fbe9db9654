// Package ingest decodes and validates analysis results arriving over HTTP
// or from files.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/opensource-finance/ringscope/internal/domain"
)

// MaxBodyBytes bounds an uploaded result.
const MaxBodyBytes = 32 << 20

// ErrInvalidResult wraps every decode or validation failure.
var ErrInvalidResult = errors.New("invalid analysis result")

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Upload is the request body of an analysis upload.
type Upload struct {
	Name   string                 `json:"name" validate:"max=200"`
	Result *domain.AnalysisResult `json:"result" validate:"required"`
}

// Decode reads one analysis result from r, validates it and normalizes
// empty sequences. Unknown fields are ignored.
func Decode(r io.Reader) (*domain.AnalysisResult, error) {
	var result *domain.AnalysisResult
	if err := json.NewDecoder(io.LimitReader(r, MaxBodyBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if err := Validate(result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeUpload reads an upload envelope. A bare result without the
// envelope is accepted as well.
func DecodeUpload(r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	var env struct {
		Name   string          `json:"name"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	body := env.Result
	if body == nil {
		body = data
	}
	if isNull(body) {
		return nil, fmt.Errorf("%w: result is required", ErrInvalidResult)
	}

	up := &Upload{Name: env.Name, Result: &domain.AnalysisResult{}}
	if err := json.Unmarshal(body, up.Result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if err := validate.Struct(up); err != nil {
		return nil, formatValidationError(err)
	}
	up.Result.Normalize()
	return up, nil
}

// Validate checks required identifiers and normalizes the result.
// Dangling references such as a ring id with no ring are allowed.
func Validate(result *domain.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("%w: result is required", ErrInvalidResult)
	}
	if err := validate.Struct(result); err != nil {
		return formatValidationError(err)
	}
	result.Normalize()
	return nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidResult, strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
