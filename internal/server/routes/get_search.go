package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gryn010/inception/internal/server/middleware"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/logger"
	"github.com/gryn010/inception/pkg/store"
)

// SearchItemsHandler runs a free-text search against one knowledge base.
func SearchItemsHandler(c echo.Context) error {
	type searchResponse struct {
		Results []linking.Result `json:"results"`
	}

	projectID, err := projectIDParam(c)
	if err != nil {
		return badRequest(c, "Invalid project id")
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return badRequest(c, "Missing query parameter q")
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	kb, err := app.Registry.KnowledgeBaseByID(ctx, projectID, c.Param("kb_id"))
	if errors.Is(err, store.ErrKnowledgeBaseNotFound) || (err == nil && !kb.Enabled) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Knowledge base not found"})
	}
	if err != nil {
		logger.Error("[Routes][Search] Failed to load knowledge base", "kb", c.Param("kb_id"), "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	results, err := app.Linking.SearchItems(ctx, kb, q)
	if err != nil {
		logger.Error("[Routes][Search] Search failed", "kb", kb.ID, "err", err)
		return c.JSON(linkErrorStatus(err), errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, searchResponse{Results: results})
}
