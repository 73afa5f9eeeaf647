package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/stagewire/stagewire/internal/booking/domain"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	gigtemplatedomain "github.com/stagewire/stagewire/internal/gigtemplate/domain"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
	"github.com/stagewire/stagewire/internal/recurrence"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isGigValidationError(err),
		isVenueValidationError(err),
		isPerformerValidationError(err),
		isTemplateValidationError(err),
		isBookingValidationError(err):
		return true
	default:
		return false
	}
}

// isConflictError covers lifecycle transitions refused because the gig or
// fee is not in the required state. The request was well formed; the
// state machine said no.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, gigdomain.ErrGigFinalized),
		errors.Is(err, gigdomain.ErrGigNotOpen),
		errors.Is(err, gigdomain.ErrAlreadyApplied),
		errors.Is(err, gigdomain.ErrDeleteAfterEscrow),
		errors.Is(err, bookingdomain.ErrNotOpen),
		errors.Is(err, bookingdomain.ErrNotConfirmed),
		errors.Is(err, bookingdomain.ErrNotPerformedYet),
		errors.Is(err, bookingdomain.ErrNoPerformer),
		errors.Is(err, bookingdomain.ErrFeeNotDue),
		errors.Is(err, bookingdomain.ErrFeeConflict),
		errors.Is(err, bookingdomain.ErrDisputeWindowClosed),
		errors.Is(err, bookingdomain.ErrNotDisputed),
		errors.Is(err, bookingdomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gigdomain.ErrGigNotFound),
		errors.Is(err, gigdomain.ErrVenueNotFound),
		errors.Is(err, bookingdomain.ErrGigNotFound),
		errors.Is(err, bookingdomain.ErrApplicantNotFound),
		errors.Is(err, bookingdomain.ErrFeeNotFound),
		errors.Is(err, venuedomain.ErrVenueNotFound),
		errors.Is(err, performerdomain.ErrPerformerNotFound),
		errors.Is(err, gigtemplatedomain.ErrTemplateNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isGigValidationError(err error) bool {
	switch err {
	case gigdomain.ErrInvalidGig,
		gigdomain.ErrInvalidVenue,
		gigdomain.ErrInvalidTitle,
		gigdomain.ErrInvalidDate,
		gigdomain.ErrInvalidStartTime,
		gigdomain.ErrInvalidDuration,
		gigdomain.ErrInvalidFee,
		gigdomain.ErrInvalidPerformer,
		recurrence.ErrInvalidRule,
		recurrence.ErrInvalidAnchor,
		recurrence.ErrInvalidCount,
		recurrence.ErrUnbounded:
		return true
	default:
		return false
	}
}

func isVenueValidationError(err error) bool {
	switch err {
	case venuedomain.ErrInvalidVenue,
		venuedomain.ErrInvalidName:
		return true
	default:
		return false
	}
}

func isPerformerValidationError(err error) bool {
	switch err {
	case performerdomain.ErrInvalidPerformer,
		performerdomain.ErrInvalidName:
		return true
	default:
		return false
	}
}

func isTemplateValidationError(err error) bool {
	return err == gigtemplatedomain.ErrInvalidTemplate
}

func isBookingValidationError(err error) bool {
	switch err {
	case bookingdomain.ErrInvalidGig,
		bookingdomain.ErrInvalidOutcome:
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
