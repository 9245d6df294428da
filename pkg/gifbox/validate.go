package gifbox

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "golang.org/x/image/webp"
)

// acceptedMediaTypes is the set of sniffed types the transcoder is fed.
var acceptedMediaTypes = map[string]bool{
	"image/gif":  true,
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DetectMediaType sniffs data and returns its media type. The declared type
// of an upload is not consulted. Besides the signature check the image header
// must decode, so a file that only starts with magic bytes is rejected.
func DetectMediaType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoFileProvided
	}

	mediaType := http.DetectContentType(data)
	if !acceptedMediaTypes[mediaType] {
		return "", fmt.Errorf("%w: %s", ErrInvalidMediaType, mediaType)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %s header: %v", ErrInvalidMediaType, mediaType, err)
	}

	return mediaType, nil
}

// validateRequest runs struct validation and converts the first failure into
// a *ValidationError.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	return &ValidationError{
		Field:   fe.Field(),
		Message: validationMessage(fe),
	}
}

func validationMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), unit)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), unit)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
