package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/gryn010/inception/internal/queue"
	"github.com/gryn010/inception/internal/server/middleware"
	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/pkg/logger"
)

// LinkAsyncHandler queues a linking job. The document text goes to object
// storage; the result is published under the returned topic.
func LinkAsyncHandler(c echo.Context) error {
	type linkAsyncResponse struct {
		RequestID string `json:"request_id"`
		Topic     string `json:"topic"`
	}

	projectID, err := projectIDParam(c)
	if err != nil {
		return badRequest(c, "Invalid project id")
	}
	data, _, err := bindLinkBody(c)
	if err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	requestID, err := gonanoid.New()
	if err != nil {
		logger.Error("[Routes][LinkAsync] Failed to create request id", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	msg := queue.LinkJobMsg{
		RequestID:    requestID,
		ProjectID:    projectID,
		RepositoryID: data.RepositoryID,
		ConceptScope: data.ConceptScope,
		ValueType:    data.ValueType,
		Query:        data.Query,
		Mention:      data.Mention,
		MentionBegin: data.MentionBegin,
		Locale:       data.Locale,
	}

	if data.Text != "" {
		msg.DocumentKey = storage.DocumentKey(projectID, requestID)
		if err := storage.PutFile(ctx, app.Objects, msg.DocumentKey, "text/plain; charset=utf-8", []byte(data.Text)); err != nil {
			logger.Error("[Routes][LinkAsync] Failed to store document", "request_id", requestID, "err", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.LinkQueue, body); err != nil {
		logger.Error("[Routes][LinkAsync] Failed to queue job", "request_id", requestID, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}

	logger.Debug("[Routes][LinkAsync] Job queued", "request_id", requestID, "project_id", projectID)
	return c.JSON(http.StatusAccepted, linkAsyncResponse{
		RequestID: requestID,
		Topic:     queue.ResultTopic(projectID),
	})
}
