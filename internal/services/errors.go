package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/workflow"
	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

// Service-level errors rendered directly by the HTTP layer.
var (
	ErrApplicationNotFound = appErrors.New("APPLICATION_NOT_FOUND", "Application not found", http.StatusNotFound)
	ErrJobNotFound         = appErrors.New("JOB_NOT_FOUND", "Job not found", http.StatusNotFound)
	ErrCompanyNotFound     = appErrors.New("COMPANY_NOT_FOUND", "Company not found", http.StatusNotFound)
	ErrProfileNotFound     = appErrors.New("PROFILE_NOT_FOUND", "Profile not found", http.StatusNotFound)
	ErrPrincipalNotFound   = appErrors.New("ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)
	ErrNotificationMissing = appErrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
	ErrDocumentNotFound    = appErrors.New("DOCUMENT_NOT_FOUND", "Document not found", http.StatusNotFound)

	ErrEmailTaken          = appErrors.New("EMAIL_TAKEN", "Email is already registered", http.StatusConflict)
	ErrAlreadyApplied      = appErrors.New("ALREADY_APPLIED", "You have already applied to this job", http.StatusConflict)
	ErrJobNotOpen          = appErrors.New("JOB_NOT_OPEN", "Job is not accepting applications", http.StatusUnprocessableEntity)
	ErrEmailNotVerified    = appErrors.New("EMAIL_NOT_VERIFIED", "Email address has not been verified", http.StatusForbidden)
	ErrAlreadyVerified     = appErrors.New("ALREADY_VERIFIED", "Email address is already verified", http.StatusConflict)
	ErrAccountLocked       = appErrors.New("ACCOUNT_LOCKED", "Too many failed attempts, try again later", http.StatusTooManyRequests)
	ErrInvalidPin          = appErrors.New("INVALID_PIN", "Invalid or expired code", http.StatusBadRequest)
	ErrInvalidResetToken   = appErrors.New("INVALID_RESET_TOKEN", "Invalid or expired reset token", http.StatusBadRequest)
	ErrEmailDeliveryFailed = appErrors.New("EMAIL_DELIVERY_FAILED", "We could not send the verification email, please try again", http.StatusServiceUnavailable)
	ErrInvalidTransition   = appErrors.New("INVALID_TRANSITION", "Status change is not allowed", http.StatusUnprocessableEntity)
	ErrFeedbackTooLong     = appErrors.NewValidation("Feedback is too long", map[string]string{"feedback": "must be at most 500 characters"})
)

// invalidTransition renders a workflow rejection with the allowed next states.
func invalidTransition(err *workflow.TransitionError) *appErrors.AppError {
	allowed := make([]string, len(err.Allowed))
	for i, status := range err.Allowed {
		allowed[i] = status.String()
	}
	return ErrInvalidTransition.
		WithMessage(err.Error()).
		WithDetails(map[string]any{
			"current_status": err.Current.String(),
			"allowed_next":   allowed,
		})
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
