package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const maxQueryBodySize = 1 << 20

// QueryHandler compiles structured queries into encoded query strings
type QueryHandler struct {
	service RecordService
	logger  ectologger.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(service RecordService, logger ectologger.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger,
	}
}

// CompileRequest is the compile request body. Table selects the value mapping
// applied to the clause values.
type CompileRequest struct {
	Query []query.Group `json:"query"`
	Table string        `json:"table,omitempty"`
}

// CompileResponse carries the encoded query
type CompileResponse struct {
	EncodedQuery string `json:"encoded_query"`
}

// Register registers query routes
func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/compile", h.Compile)
}

// Compile compiles a JSON body, or a YAML list of groups when the content type is YAML.
// For YAML the table comes from the table query parameter.
func (h *QueryHandler) Compile(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "QueryHandler.Compile")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	var req CompileRequest
	if isYAML(c.Request().Header.Get(echo.HeaderContentType)) {
		data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxQueryBodySize))
		if err != nil {
			return BadRequest("failed to read request body")
		}
		groups, err := query.ParseYAML(data)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		req = CompileRequest{Query: groups, Table: c.QueryParam("table")}
	} else if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	encoded, err := h.service.CompileQuery(ctx, req.Table, req.Query)
	if err != nil {
		return err
	}

	h.logger.WithContext(ctx).Debugf("Compiled query for table %q: %s", req.Table, encoded)
	return SuccessResponse(c, CompileResponse{EncodedQuery: encoded})
}

func isYAML(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "application/yaml") ||
		strings.HasPrefix(contentType, "application/x-yaml") ||
		strings.HasPrefix(contentType, "text/yaml")
}
