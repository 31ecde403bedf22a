// Package loader turns request documents into the plain text that mention
// offsets refer to.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// MaxDocumentSize bounds the bytes read from a single document.
	MaxDocumentSize = 16 << 20
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrDocumentTooLarge       = errors.New("document too large")
)

var defaultBaseURL = &url.URL{Scheme: "https", Host: "localhost", Path: "/"}

// MediaType returns the media type of contentType without parameters. An
// empty value means plain text.
func MediaType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return ContentTypeText, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
	return mediaType, nil
}

// ExtractText reads a document of the given content type and returns its
// text. HTML is reduced to its readable main content.
func ExtractText(r io.Reader, contentType string) (string, error) {
	mediaType, err := MediaType(contentType)
	if err != nil {
		return "", err
	}

	content, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	if len(content) > MaxDocumentSize {
		return "", ErrDocumentTooLarge
	}

	switch mediaType {
	case ContentTypeText:
		return string(content), nil
	case ContentTypeHTML:
		return htmlText(content)
	case ContentTypeDocx:
		text, err := parseDocx(content)
		if err != nil {
			return "", err
		}
		return string(text), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
}

func htmlText(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), defaultBaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}
	return builder.String(), nil
}
