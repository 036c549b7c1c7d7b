package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

// respondServiceError maps verification/alert service errors to HTTP responses
func respondServiceError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	var validationErr *service.ValidationError
	var transitionErr *service.TransitionError

	switch {
	case errors.As(err, &validationErr):
		apperrors.RespondWithValidationError(c, map[string]string{
			validationErr.Field: validationErr.Message,
		})
	case errors.As(err, &transitionErr):
		apperrors.Conflict(c, apperrors.VerificationInvalidTransition, transitionErr.Error())
	case errors.Is(err, service.ErrConflict):
		apperrors.Conflict(c, apperrors.VerificationConcurrentDecision, "The company was modified concurrently, please retry")
	case errors.Is(err, service.ErrDuplicateCompany):
		apperrors.Conflict(c, apperrors.CompanyAlreadyRegistered, "A company with this tax ID is already registered")
	case errors.Is(err, service.ErrCompanyNotFound):
		apperrors.NotFound(c, apperrors.CompanyNotFound, "Company not found")
	case errors.Is(err, service.ErrAlertNotFound):
		apperrors.NotFound(c, apperrors.AlertNotFound, "Alert not found")
	default:
		log.Error("Request failed", err, map[string]interface{}{
			"context": context,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, context)
	}
}

// parseIDParam reads a positive numeric path parameter; responds 400 otherwise
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parsePage page/page_size query parameters with defaults
func parsePage(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
