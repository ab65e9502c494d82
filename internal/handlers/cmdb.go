package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/records"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// CMDBHandler serves configuration item views
type CMDBHandler struct {
	service RecordService
	logger  ectologger.Logger
}

// NewCMDBHandler creates a new CMDB handler
func NewCMDBHandler(service RecordService, logger ectologger.Logger) *CMDBHandler {
	return &CMDBHandler{
		service: service,
		logger:  logger,
	}
}

// RelationshipGroupsRequest names the CIs to enhance
type RelationshipGroupsRequest struct {
	SysIDs []string `json:"sys_ids" validate:"required,min=1,dive,required"`
	// Table is the CI class table, cmdb_ci when empty
	Table string `json:"table,omitempty" validate:"omitempty,table_name"`
}

// Register registers CMDB routes
func (h *CMDBHandler) Register(g *echo.Group) {
	g.POST("/relationship-groups", h.RelationshipGroups)
}

// RelationshipGroups returns the requested CIs with their relationship_groups labels
func (h *CMDBHandler) RelationshipGroups(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "CMDBHandler.RelationshipGroups")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req RelationshipGroupsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	req, err := validation.ValidateHTTP(req)
	if err != nil {
		return err
	}

	table := req.Table
	if table == "" {
		table = records.DefaultCITable
	}

	cis, err := h.service.EnhanceByIDs(ctx, table, req.SysIDs)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to build relationship groups")
		return err
	}

	return SuccessResponse(c, cis)
}
