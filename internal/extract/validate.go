package extract

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/raphaelgruber/fitplan/internal/models"
)

// programValidate checks programs against the struct tags on models.WorkoutProgram.
var programValidate = NewValidator()

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so errors match what the model produced.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks p against the program schema. A panic inside the
// validator is reported as a validation failure.
func Validate(p *models.WorkoutProgram) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: validator panicked: %v", ErrSchemaValidation, r)
		}
	}()

	if p == nil {
		return fmt.Errorf("%w: program is nil", ErrSchemaValidation)
	}
	if err := programValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaValidation, describe(err))
	}
	return nil
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, field+": "+rule)
	}
	return strings.Join(parts, "; ")
}
