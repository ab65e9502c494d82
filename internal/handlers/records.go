package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/records"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// RecordHandler reads and reconciles records of a backend table
type RecordHandler struct {
	service RecordService
	logger  ectologger.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(service RecordService, logger ectologger.Logger) *RecordHandler {
	return &RecordHandler{
		service: service,
		logger:  logger,
	}
}

// EnsureBody is the ensure request body; the table comes from the path
type EnsureBody struct {
	Record           models.Record `json:"record"`
	IDColumns        []string      `json:"id_columns"`
	RequiredOnCreate []string      `json:"required_on_create"`
	CheckMode        bool          `json:"check_mode"`
}

// ListResponse is the list response body
type ListResponse struct {
	Records []models.Record `json:"records"`
	Count   int             `json:"count"`
}

// Register registers record routes under /tables
func (h *RecordHandler) Register(g *echo.Group) {
	g.GET("/:table/records", h.List)
	g.POST("/:table/ensure", h.Ensure)
	g.DELETE("/:table/records/:sys_id", h.Delete)
}

// List returns the records matching the encoded query parameter
func (h *RecordHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	limit, err := QueryInt(c, "limit")
	if err != nil {
		return err
	}

	rows, err := h.service.List(ctx, c.Param("table"), c.QueryParam("query"), records.FindOptions{
		Fields: QueryList(c, "fields"),
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	return SuccessResponse(c, ListResponse{Records: rows, Count: len(rows)})
}

// Ensure creates or updates the record so it matches the body
func (h *RecordHandler) Ensure(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordHandler.Ensure")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var body EnsureBody
	if err := c.Bind(&body); err != nil {
		return BadRequest("invalid request body")
	}
	if len(body.Record) == 0 {
		return BadRequest("record is required")
	}

	result, err := h.service.Ensure(ctx, records.EnsureRequest{
		Table:            c.Param("table"),
		Desired:          body.Record,
		IDColumns:        body.IDColumns,
		RequiredOnCreate: body.RequiredOnCreate,
		CheckMode:        body.CheckMode,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Errorf("Failed to ensure %s record", c.Param("table"))
		return err
	}

	return SuccessResponse(c, result)
}

// Delete removes the record with the path sys_id. A record that is already gone is not an error.
func (h *RecordHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RecordHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	checkMode, err := QueryBool(c, "check_mode")
	if err != nil {
		return err
	}

	sysID := c.Param("sys_id")
	if sysID == "" {
		return BadRequest("sys_id is required")
	}

	result, err := h.service.EnsureAbsent(ctx, records.AbsentRequest{
		Table:     c.Param("table"),
		Match:     models.Record{models.SysIDField: models.String(sysID)},
		CheckMode: checkMode,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Errorf("Failed to delete %s record %s", c.Param("table"), sysID)
		return err
	}

	return SuccessResponse(c, result)
}
