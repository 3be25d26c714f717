package handlers

import (
	"crmTasks/internal/logger"
	"crmTasks/internal/service"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}
	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: business error",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

// handleServiceError writes the response for any service error.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if handleBusinessError(w, err) {
		return
	}
	logger.Error("HTTP: service error", err,
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))
	responseWithError(w, http.StatusInternalServerError, "internal error")
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeTaskNotFound, service.CodeCustomerNotFound:
		return http.StatusNotFound
	case service.CodeValidation, service.CodeInvalidStatus:
		return http.StatusBadRequest
	case service.CodeVersionConflict:
		return http.StatusConflict
	case service.CodeScheduleFailure:
		return http.StatusServiceUnavailable
	case service.CodeDispatchFailure, service.CodeCompletionStamp:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
