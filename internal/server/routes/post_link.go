package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gryn010/inception/internal/server/middleware"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/query"
)

// LinkHandler ranks knowledge base candidates for a mention. With
// ?debug=true the response carries the request trace.
func LinkHandler(c echo.Context) error {
	type linkResponse struct {
		Results []linking.Result         `json:"results"`
		Trace   *query.LinkTraceSnapshot `json:"trace,omitempty"`
	}

	projectID, err := projectIDParam(c)
	if err != nil {
		return badRequest(c, "Invalid project id")
	}
	data, valueType, err := bindLinkBody(c)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	ac := c.(*middleware.AppContext)
	req := data.request(projectID, valueType)

	var trace *query.LinkTrace
	if c.QueryParam("debug") == "true" {
		if !middleware.HasPermission(ac.User, middleware.PermissionDebug) {
			return c.JSON(http.StatusForbidden, errorResponse{Error: "Forbidden: missing permission " + middleware.PermissionDebug})
		}
		trace = query.NewLinkTrace()
		req.Tracer = trace
	}

	results, err := ac.App.Linking.Link(c.Request().Context(), req)
	if err != nil {
		logger.Error("[Routes][Link] Linking failed", "project_id", projectID, "err", err)
		return c.JSON(linkErrorStatus(err), errorResponse{Error: err.Error()})
	}

	res := linkResponse{Results: results}
	if trace != nil {
		snapshot := trace.Snapshot()
		res.Trace = &snapshot
	}
	return c.JSON(http.StatusOK, res)
}
