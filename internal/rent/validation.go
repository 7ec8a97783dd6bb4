package rent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var leaseValidator = validator.New()

// ValidateLease enforces the fields the generator needs before any date math
// runs. Missing values fail the tenant instead of being defaulted.
func ValidateLease(l Lease) error {
	if err := leaseValidator.Struct(l); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			problems := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				problems = append(problems, describeField(fe))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !l.Active {
		return fmt.Errorf("%w: lease is not active", ErrValidation)
	}
	if !l.RentAmount.IsPositive() {
		return fmt.Errorf("%w: rent amount must be positive", ErrValidation)
	}
	return nil
}

func describeField(fe validator.FieldError) string {
	name := fieldNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min", "max":
		return fmt.Sprintf("%s %v outside 1..31", name, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

var fieldNames = map[string]string{
	"TenantID":   "tenant id",
	"TenantName": "tenant name",
	"DueDay":     "due day",
	"UnitID":     "unit",
	"UnitName":   "unit name",
}
