package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// errorMapping assigns a status and stable error code to an engine error
type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainwf.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{domainwf.ErrDefinitionNotFound, http.StatusNotFound, "definition_not_found"},
	{domainwf.ErrInstanceNotFound, http.StatusNotFound, "instance_not_found"},
	{domainwf.ErrDefinitionInactive, http.StatusConflict, "definition_inactive"},
	{domainwf.ErrDefinitionEmpty, http.StatusConflict, "definition_empty"},
	{domainwf.ErrInstanceTerminal, http.StatusConflict, "instance_terminal"},
	{domainwf.ErrActiveInstanceExists, http.StatusConflict, "active_instance_exists"},
	{domainwf.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domainwf.ErrActionNotAllowed, http.StatusUnprocessableEntity, "action_not_allowed"},
	{domainwf.ErrUnauthorized, http.StatusForbidden, "forbidden"},
	{domainwf.ErrStepNotFound, http.StatusInternalServerError, "step_not_found"},
	{domainwf.ErrNextStepNotFound, http.StatusInternalServerError, "next_step_not_found"},
	{domainwf.ErrInvalidDefinition, http.StatusInternalServerError, "invalid_definition"},
}

// classify returns the HTTP status and code for err; unknown errors are internal
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError writes err as a Response. Internal errors are logged and their
// message is not exposed to the caller.
func (h *Handlers) respondError(c *gin.Context, operation string, err error) {
	status, code := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", operation, "code", code, "error", err)
		if code == "internal_error" {
			message = "internal server error"
		}
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   message,
		Code:    "invalid_request",
	})
}
