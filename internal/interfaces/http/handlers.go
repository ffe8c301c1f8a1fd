package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/application/workflow"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
	"github.com/garyjia/sales-crm/pkg/utils"
)

// Request headers carrying the caller's identity
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

const tenantKey = "tenant_id"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: deps.Logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StartInstanceRequest is the body of POST /api/instances. Without a
// definition ID the active definition for the record table is used.
type StartInstanceRequest struct {
	DefinitionID string          `json:"definition_id"`
	RecordID     string          `json:"record_id" binding:"required"`
	RecordTable  string          `json:"record_table" binding:"required"`
	Payload      json.RawMessage `json:"payload"`
}

// ExecuteActionRequest is the body of POST /api/instances/:id/actions
type ExecuteActionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// StartResponse wraps a started instance with the status-sync outcome
type StartResponse struct {
	*entity.WorkflowInstance
	SyncError string `json:"sync_error,omitempty"`
}

// ActionResponse wraps the engine result with the status-sync outcome
type ActionResponse struct {
	*workflow.ActionResult
	SyncError string `json:"sync_error,omitempty"`
}

// CurrentStepResponse describes where an instance stands
type CurrentStepResponse struct {
	InstanceID string               `json:"instance_id"`
	Status     entity.Status        `json:"status"`
	Step       *entity.WorkflowStep `json:"step"`
}

// ListInstancesRequest represents query parameters for listing instances
type ListInstancesRequest struct {
	Status      string `form:"status"`
	RecordTable string `form:"record_table"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// tenantMiddleware rejects API calls that do not name a tenant
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		if err := utils.ValidateTenantID(tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   HeaderTenantID + ": " + err.Error(),
				Code:    "invalid_request",
			})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenant(c *gin.Context) string {
	return c.GetString(tenantKey)
}

func actor(c *gin.Context) domainwf.Actor {
	return domainwf.Actor{
		ID:   c.GetHeader(HeaderUserID),
		Name: c.GetHeader(HeaderUserName),
		Role: c.GetHeader(HeaderUserRole),
	}
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.deps.Health != nil {
		if err := h.deps.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   "storage unavailable",
			})
			return
		}
	}

	ok(c, http.StatusOK, response)
}

// GetDefinition handles GET /api/definitions/:id
func (h *Handlers) GetDefinition(c *gin.Context) {
	def, err := h.deps.Definitions.GetByID(c.Request.Context(), tenant(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "get definition", err)
		return
	}
	if def == nil {
		h.respondError(c, "get definition", fmt.Errorf("%w: %s", domainwf.ErrDefinitionNotFound, c.Param("id")))
		return
	}

	ok(c, http.StatusOK, def)
}

// FindDefinition handles GET /api/definitions?record_type= or ?code=
func (h *Handlers) FindDefinition(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		def *entity.WorkflowDefinition
		err error
		key string
	)
	switch {
	case c.Query("record_type") != "":
		key = c.Query("record_type")
		def, err = h.deps.Definitions.GetByRecordType(ctx, tenant(c), key)
	case c.Query("code") != "":
		key = c.Query("code")
		def, err = h.deps.Definitions.GetByCode(ctx, tenant(c), key)
	default:
		badRequest(c, "record_type or code query parameter is required")
		return
	}

	if err != nil {
		h.respondError(c, "find definition", err)
		return
	}
	if def == nil {
		h.respondError(c, "find definition", fmt.Errorf("%w: %s", domainwf.ErrDefinitionNotFound, key))
		return
	}

	ok(c, http.StatusOK, def)
}

// StartInstance handles POST /api/instances
func (h *Handlers) StartInstance(c *gin.Context) {
	var req StartInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	startReq := workflow.StartRequest{
		TenantID:     tenant(c),
		DefinitionID: req.DefinitionID,
		RecordID:     req.RecordID,
		RecordTable:  req.RecordTable,
		StartedBy:    c.GetHeader(HeaderUserID),
		Payload:      req.Payload,
	}

	var (
		instance *entity.WorkflowInstance
		err      error
	)
	if req.DefinitionID == "" {
		instance, err = h.deps.Engine.StartForRecordType(c.Request.Context(), startReq)
	} else {
		instance, err = h.deps.Engine.Start(c.Request.Context(), startReq)
	}
	if err != nil {
		h.respondError(c, "start instance", err)
		return
	}

	response := StartResponse{WorkflowInstance: instance}
	if err := h.syncStatus(c, instance); err != nil {
		response.SyncError = err.Error()
	}

	ok(c, http.StatusCreated, response)
}

// ListInstances handles GET /api/instances
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListInstancesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	instances, err := h.deps.Engine.ListInstances(c.Request.Context(), tenant(c), port.InstanceFilter{
		Status:      entity.Status(req.Status),
		RecordTable: req.RecordTable,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		h.respondError(c, "list instances", err)
		return
	}
	if instances == nil {
		instances = []*entity.WorkflowInstance{}
	}

	ok(c, http.StatusOK, instances)
}

// GetInstance handles GET /api/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.deps.Engine.GetInstance(c.Request.Context(), tenant(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "get instance", err)
		return
	}

	ok(c, http.StatusOK, instance)
}

// GetRecordInstance handles GET /api/records/:table/:id/instance
func (h *Handlers) GetRecordInstance(c *gin.Context) {
	instance, err := h.deps.Engine.GetInstanceByRecord(c.Request.Context(), tenant(c), c.Param("id"), c.Param("table"))
	if err != nil {
		h.respondError(c, "get record instance", err)
		return
	}

	ok(c, http.StatusOK, instance)
}

// GetCurrentStep handles GET /api/instances/:id/current-step
func (h *Handlers) GetCurrentStep(c *gin.Context) {
	ctx := c.Request.Context()

	instance, err := h.deps.Engine.GetInstance(ctx, tenant(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "get current step", err)
		return
	}

	step, err := h.deps.Engine.GetCurrentStep(ctx, tenant(c), instance.ID)
	if err != nil {
		h.respondError(c, "get current step", err)
		return
	}

	ok(c, http.StatusOK, CurrentStepResponse{
		InstanceID: instance.ID,
		Status:     instance.Status,
		Step:       step,
	})
}

// GetHistory handles GET /api/instances/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.deps.Engine.GetApprovalHistory(c.Request.Context(), tenant(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "get history", err)
		return
	}
	if history == nil {
		history = []*entity.ApprovalHistory{}
	}

	ok(c, http.StatusOK, history)
}

// ExportHistory handles GET /api/instances/:id/history.xlsx
func (h *Handlers) ExportHistory(c *gin.Context) {
	ctx := c.Request.Context()

	instance, err := h.deps.Engine.GetInstance(ctx, tenant(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "export history", err)
		return
	}

	history, err := h.deps.Engine.GetApprovalHistory(ctx, tenant(c), instance.ID)
	if err != nil {
		h.respondError(c, "export history", err)
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.Write(&buf, instance, history); err != nil {
		h.respondError(c, "export history", err)
		return
	}

	filename := fmt.Sprintf("%s_%s_history.xlsx", instance.RecordTable, instance.RecordID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// GetPermissions handles GET /api/instances/:id/permissions
func (h *Handlers) GetPermissions(c *gin.Context) {
	who := actor(c)

	auth, err := h.deps.Engine.CanActOnStep(c.Request.Context(), tenant(c), c.Param("id"), who.Role, who.ID)
	if err != nil {
		h.respondError(c, "get permissions", err)
		return
	}

	ok(c, http.StatusOK, auth)
}

// GetParallelStatus handles GET /api/instances/:id/steps/:stepId/parallel
func (h *Handlers) GetParallelStatus(c *gin.Context) {
	status, err := h.deps.Engine.CheckParallelApproval(c.Request.Context(), tenant(c), c.Param("id"), c.Param("stepId"))
	if err != nil {
		h.respondError(c, "check parallel approval", err)
		return
	}

	ok(c, http.StatusOK, status)
}

// ExecuteAction handles POST /api/instances/:id/actions
func (h *Handlers) ExecuteAction(c *gin.Context) {
	var req ExecuteActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	who := actor(c)
	result, err := h.deps.Engine.ExecuteAction(c.Request.Context(), workflow.ActionRequest{
		TenantID:   tenant(c),
		InstanceID: c.Param("id"),
		Action:     entity.Action(req.Action),
		ActorID:    who.ID,
		ActorName:  who.Name,
		ActorRole:  who.Role,
		Comment:    utils.SanitizeString(req.Comment),
	})
	if err != nil {
		h.respondError(c, "execute action", err)
		return
	}

	response := ActionResponse{ActionResult: result}
	if err := h.syncStatus(c, result.Instance); err != nil {
		response.SyncError = err.Error()
	}

	ok(c, http.StatusOK, response)
}

// syncStatus mirrors the instance state onto its business record. Failures are
// reported but never undo the committed transition.
func (h *Handlers) syncStatus(c *gin.Context, instance *entity.WorkflowInstance) error {
	if h.deps.StatusSync == nil {
		return nil
	}
	err := h.deps.StatusSync.Sync(c.Request.Context(), instance)
	if err != nil {
		h.logger.Error("Status sync failed",
			"instance_id", instance.ID,
			"record_table", instance.RecordTable,
			"record_id", instance.RecordID,
			"error", err,
		)
	}
	return err
}
