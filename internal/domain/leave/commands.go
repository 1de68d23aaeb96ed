package leave

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type CreateRequestCommand struct {
	StaffMemberID int64     `json:"staffMemberId" validate:"required,gt=0"`
	CategoryID    int64     `json:"categoryId" validate:"required,gt=0"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Reason        string    `json:"reason" validate:"max=2000"`
}

// UpdateRequestCommand is a partial update; nil fields are left unchanged.
type UpdateRequestCommand struct {
	CategoryID *int64     `json:"categoryId" validate:"omitempty,gt=0"`
	StartDate  *time.Time `json:"startDate"`
	EndDate    *time.Time `json:"endDate"`
	Reason     *string    `json:"reason" validate:"omitempty,max=2000"`
}

type DecisionCommand struct {
	Remarks string `json:"remarks" validate:"max=2000"`
}

type CreateCategoryCommand struct {
	Title       string `json:"title" validate:"required,max=120"`
	AnnualQuota int    `json:"annualQuota" validate:"gte=0,lte=366"`
	IsPaid      bool   `json:"isPaid"`
	IsActive    *bool  `json:"isActive"`
}

type UpdateCategoryCommand struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=120"`
	AnnualQuota *int    `json:"annualQuota" validate:"omitempty,gte=0,lte=366"`
	IsPaid      *bool   `json:"isPaid"`
	IsActive    *bool   `json:"isActive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of cmd and folds any failures into a
// ValidationError. Further issues found by hand can be appended to the
// returned value before it is turned into an error.
func validateStruct(cmd any) (*ValidationError, error) {
	verr := &ValidationError{}
	err := validate.Struct(cmd)
	if err == nil {
		return verr, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, err
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describe(fe))
	}
	return verr, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must not be empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}
