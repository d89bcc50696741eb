package entity

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/featureplus/internal/errors"
)

// validate is shared by all entity types. Field names in reported errors are
// the JSON names so they match what the remote and the UI use.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		return IsValidStatus(Status(fl.Field().String()))
	})
	_ = validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return IsValidPriority(Priority(fl.Field().String()))
	})
	_ = validate.RegisterValidation("tasktype", func(fl validator.FieldLevel) bool {
		return IsValidTaskType(TaskType(fl.Field().String()))
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	validate.RegisterStructValidation(taskOwnerValidation, Task{})
}

// taskOwnerValidation enforces that exactly one of feature_id and
// sub_feature_id is set.
func taskOwnerValidation(sl validator.StructLevel) {
	t := sl.Current().Interface().(Task)
	switch {
	case t.FeatureID == "" && t.SubFeatureID == "":
		sl.ReportError(t.FeatureID, "feature_id", "FeatureID", "owner", "")
	case t.FeatureID != "" && t.SubFeatureID != "":
		sl.ReportError(t.SubFeatureID, "sub_feature_id", "SubFeatureID", "single_owner", "")
	}
}

// validateStruct runs the struct tags and converts the first failure into a
// VALIDATION error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Wrap(err, "validate entity")
	}
	fe := verrs[0]
	return errors.ErrValidation(fe.Field(), describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "max":
		return fmt.Sprintf("must be %s characters or less", fe.Param())
	case "status":
		return fmt.Sprintf("must be one of %v (got %q)", ValidStatuses(), fe.Value())
	case "priority":
		return fmt.Sprintf("must be one of %v (got %q)", ValidPriorities(), fe.Value())
	case "tasktype":
		return fmt.Sprintf("must be one of %v (got %q)", ValidTaskTypes(), fe.Value())
	case "owner":
		return "task must belong to a feature or sub-feature"
	case "single_owner":
		return "task cannot belong to both a feature and a sub-feature"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
