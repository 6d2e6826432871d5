package backend

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-.]+$`)

func payloadValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || phoneRegex.MatchString(v)
		})
	})
	return validate
}

// ValidationError lists the fields of a request payload that the backend
// would reject, keyed by JSON field name
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, e.Fields[name])
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the update against the backend's field limits
func (p ProfileUpdate) Validate() error {
	err := payloadValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating profile: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "max":
			out.Fields[field] = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
		case "phone":
			out.Fields[field] = fmt.Sprintf("%s must contain only digits, spaces and + ( ) - .", field)
		default:
			out.Fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}
