package renderx

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// dimensionPattern matches whole-number CSS-style length strings like "1in",
// "25mm", "2cm", "96px" (§4.5 margin/width/height); decimals are rejected.
var dimensionPattern = regexp.MustCompile(`^\d+(px|in|cm|mm)$`)

// headerInjectionChars rejects CR/LF and other control characters in
// cookie/header fields, the classic header-splitting payload (§4.5).
var headerInjectionChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("dimstring", func(fl validator.FieldLevel) bool {
		return dimensionPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("headersafe", func(fl validator.FieldLevel) bool {
		return !headerInjectionChars.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(validateScreenshotRequest, ScreenshotRequest{})
	v.RegisterStructValidation(validatePDFRequest, PDFRequest{})
	return v
}

func validateScreenshotRequest(sl validator.StructLevel) {
	r := sl.Current().Interface().(ScreenshotRequest)

	if r.FullPage && r.ScrollPosition != nil {
		sl.ReportError(r.ScrollPosition, "ScrollPosition", "scrollPosition", "mutuallyexclusive", "fullPage")
	}
	if r.Quality != 0 && r.Format != "" && r.Format != "jpeg" && r.Format != "webp" {
		sl.ReportError(r.Quality, "Quality", "quality", "lossyonly", r.Format)
	}
	if err := ValidateURL(r.URL); err != nil {
		sl.ReportError(r.URL, "URL", "url", "ssrf", "")
	}
}

func validatePDFRequest(sl validator.StructLevel) {
	r := sl.Current().Interface().(PDFRequest)

	if r.SourceKind == "url" {
		if err := ValidateURL(r.URL); err != nil {
			sl.ReportError(r.URL, "URL", "url", "ssrf", "")
		}
	}
	if r.SourceKind == "html" && len(strings.TrimSpace(r.HTML)) == 0 {
		sl.ReportError(r.HTML, "HTML", "html", "required", "")
	}
}

// ValidateScreenshotRequest runs struct-tag and cross-field validation on a
// decoded screenshot request.
func ValidateScreenshotRequest(r *ScreenshotRequest) error {
	return toFieldErrors(validate.Struct(r))
}

// ValidatePDFRequest runs struct-tag and cross-field validation on a decoded
// PDF request.
func ValidatePDFRequest(r *PDFRequest) error {
	return toFieldErrors(validate.Struct(r))
}

func toFieldErrors(err error) error {
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return ErrValidation([]FieldError{{Field: "", Message: err.Error()}})
	}

	fields := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, FieldError{
			Field:   jsonFieldName(fe),
			Message: fieldErrorMessage(fe),
		})
	}
	return ErrValidation(fields)
}

func jsonFieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	var b strings.Builder
	for i, r := range ns {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + 32)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "this field is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "dimstring":
		return "must match a CSS length like \"1in\" or \"25mm\""
	case "headersafe":
		return "must not contain control characters"
	case "mutuallyexclusive":
		return fmt.Sprintf("cannot be set together with %s", fe.Param())
	case "lossyonly":
		return fmt.Sprintf("quality is only meaningful for jpeg or webp, got %s", fe.Param())
	case "ssrf":
		return "URL is not allowed by the SSRF policy"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
