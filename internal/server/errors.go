package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	aggdomain "github.com/smallbiznis/commission/internal/aggregation/domain"
	budgetdomain "github.com/smallbiznis/commission/internal/budget/domain"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	"github.com/smallbiznis/commission/internal/recalc"
	turndomain "github.com/smallbiznis/commission/internal/turn/domain"
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
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInternal           = errors.New("internal_error")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
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

	var capErr *turndomain.CapacityError
	if errors.As(err, &capErr) {
		return http.StatusConflict, errorPayload{
			Type:    "turn_capacity_exceeded",
			Message: "assigned turns exceed the budget capacity",
			Details: map[string]any{
				"requested": capErr.Requested,
				"remaining": capErr.Available,
			},
		}
	}

	switch {
	case errors.Is(err, recalc.ErrRecomputeInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "recompute_in_progress",
			Message: "a recompute for this budget is already running",
		}
	case errors.Is(err, budgetdomain.ErrBudgetNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "budget_not_found",
			Message: "budget not found",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger without leaking messages.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "server", payload.Type
	default:
		return "client", payload.Type
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
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, aggdomain.ErrInvalidBudgetID),
		errors.Is(err, budgetdomain.ErrInvalidBudget),
		errors.Is(err, turndomain.ErrInvalidTurns),
		errors.Is(err, turndomain.ErrInvalidAssignment),
		errors.Is(err, ledgerdomain.ErrInvalidEvent),
		errors.Is(err, ledgerdomain.ErrUnknownEventType),
		errors.Is(err, recalc.ErrMalformedEvent):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, aggdomain.ErrInvalidBudgetID):
		return aggdomain.ErrInvalidBudgetID.Error()
	case errors.Is(err, budgetdomain.ErrInvalidBudget):
		return budgetdomain.ErrInvalidBudget.Error()
	case errors.Is(err, turndomain.ErrInvalidTurns):
		return turndomain.ErrInvalidTurns.Error()
	case errors.Is(err, turndomain.ErrInvalidAssignment):
		return turndomain.ErrInvalidAssignment.Error()
	case errors.Is(err, ledgerdomain.ErrUnknownEventType):
		return ledgerdomain.ErrUnknownEventType.Error()
	case errors.Is(err, ledgerdomain.ErrInvalidEvent):
		return ledgerdomain.ErrInvalidEvent.Error()
	case errors.Is(err, recalc.ErrMalformedEvent):
		return recalc.ErrMalformedEvent.Error()
	default:
		return err.Error()
	}
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
