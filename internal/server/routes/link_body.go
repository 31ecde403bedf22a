package routes

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gryn010/inception/internal/util"
	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/document"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/loader"
	"github.com/gryn010/inception/pkg/store"
)

type linkBody struct {
	RepositoryID string `json:"repository_id"`
	ConceptScope string `json:"concept_scope"`
	ValueType    string `json:"value_type"`
	Query        string `json:"query" validate:"max=1000"`
	Mention      string `json:"mention" validate:"max=1000"`
	MentionBegin int    `json:"mention_begin" validate:"min=0"`
	// Text is the document the mention was found in. Mention offsets refer
	// to the text extracted from it. Docx content is base64 encoded.
	Text        string `json:"text"`
	ContentType string `json:"content_type"`
	Locale      string `json:"locale" validate:"max=35"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func projectIDParam(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// bindLinkBody binds and validates the body and normalizes its text.
func bindLinkBody(c echo.Context) (*linkBody, common.ValueType, error) {
	data := new(linkBody)
	if err := c.Bind(data); err != nil {
		return nil, "", err
	}
	if err := c.Validate(data); err != nil {
		return nil, "", err
	}

	valueType, err := common.ParseValueType(data.ValueType)
	if err != nil {
		return nil, "", err
	}

	if data.Text != "" {
		text, err := documentText(data.Text, data.ContentType)
		if err != nil {
			return nil, "", err
		}
		data.Text = util.SanitizeText(text)
	}
	if data.Text != "" && data.MentionBegin > len(data.Text) {
		return nil, "", errors.New("mention_begin is outside of text")
	}
	return data, valueType, nil
}

func documentText(raw, contentType string) (string, error) {
	mediaType, err := loader.MediaType(contentType)
	if err != nil {
		return "", err
	}
	if mediaType != loader.ContentTypeDocx {
		return loader.ExtractText(strings.NewReader(raw), contentType)
	}

	content, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid base64 document: %w", err)
	}
	return loader.ExtractText(bytes.NewReader(content), contentType)
}

func (b *linkBody) request(projectID int64, valueType common.ValueType) linking.LinkRequest {
	req := linking.LinkRequest{
		ProjectID:    projectID,
		RepositoryID: b.RepositoryID,
		ConceptScope: b.ConceptScope,
		ValueType:    valueType,
		Query:        b.Query,
		Mention:      b.Mention,
		MentionBegin: b.MentionBegin,
		Locale:       b.Locale,
	}
	if b.Text != "" {
		req.Document = document.New(b.Text)
	}
	return req
}

func linkErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrUnknownItemKind):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrKnowledgeBaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, linking.ErrAllKnowledgeBasesFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
