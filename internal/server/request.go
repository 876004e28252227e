package server

import (
	"encoding/base64"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/llm"
)

type analyzeRequest struct {
	Image    string `json:"image" validate:"required"`
	MimeType string `json:"mimeType" validate:"omitempty,startswith=image/"`
}

type updateQuantityRequest struct {
	Quantity *float64 `json:"quantity" validate:"required,gt=0"`
}

type generateRequest struct {
	Prompt   string `json:"prompt" validate:"required"`
	Image    string `json:"image"`
	MimeType string `json:"mimeType" validate:"omitempty,startswith=image/"`
}

// AnalyzeResponse is returned by a successful analyze-fridge request.
type AnalyzeResponse struct {
	Analysis *fridge.Analysis `json:"analysis"`
	Usage    llm.Usage        `json:"usage"`
	Cached   bool             `json:"cached"`
}

// GenerateResponse is returned by the free-form generation endpoint.
type GenerateResponse struct {
	Text string `json:"text"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks req and lists what is wrong with it.
func validateRequest(req any) []fridge.Violation {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []fridge.Violation{{Message: err.Error()}}
	}

	violations := make([]fridge.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, fridge.Violation{Field: fe.Field(), Message: describe(fe)})
	}
	return violations
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "startswith":
		return "must start with " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// decodeImage turns the base64 payload into bytes. A data URL prefix
// overrides mimeType.
func decodeImage(payload, mimeType string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", errors.New("image data URL has no payload")
		}
		mediaType, isBase64 := strings.CutSuffix(header, ";base64")
		if !isBase64 {
			return nil, "", errors.New("image data URL must be base64 encoded")
		}
		if mediaType != "" {
			mimeType = mediaType
		}
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, "", errors.New("image is not valid base64")
	}
	if len(data) == 0 {
		return nil, "", errors.New("image is empty")
	}
	return data, mimeType, nil
}
