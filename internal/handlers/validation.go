package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
	"github.com/charlesng35/jobboard/pkg/response"
	appValidator "github.com/charlesng35/jobboard/pkg/validator"
)

const dateLayout = "2006-01-02"

func init() {
	_ = appValidator.RegisterValidation("app_status", func(fl validator.FieldLevel) bool {
		_, ok := workflow.Parse(fl.Field().String())
		return ok
	})
}

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}

	return true
}

func validationError(err error) *appErrors.AppError {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}

	fields := make(map[string]string, len(ve))
	messages := make([]string, 0, len(ve))
	for _, failure := range ve {
		msg := describeFailure(failure)
		fields[failure.Field] = msg
		messages = append(messages, prettifyFieldName(failure.Field)+" "+msg)
	}
	return appErrors.NewValidation(strings.Join(messages, "; "), fields)
}

func describeFailure(failure appValidator.ValidationError) string {
	switch failure.Tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", failure.Param)
	case "max":
		return fmt.Sprintf("must be at most %s characters", failure.Param)
	case "pin":
		return "must be a 6 digit code"
	case "app_status":
		return "must be a known application status"
	case "oneof":
		return "must be one of " + failure.Param
	default:
		if failure.Param != "" {
			return fmt.Sprintf("failed validation: %s=%s", failure.Tag, failure.Param)
		}
		return "failed validation: " + failure.Tag
	}
}

func prettifyFieldName(name string) string {
	if name == "" {
		return "field"
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(name)
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// parseDate accepts YYYY-MM-DD; an empty value yields nil.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(*value))
	if err != nil {
		return nil, appErrors.NewValidation("Invalid date", map[string]string{field: "must use YYYY-MM-DD"})
	}
	return &parsed, nil
}
