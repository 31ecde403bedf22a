package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gryn010/inception/internal/storage"
	"github.com/gryn010/inception/internal/util"
	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/document"
	"github.com/gryn010/inception/pkg/leaselock"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/logger"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"

	defaultFetchTries   = 3
	defaultFetchBackoff = 500 * time.Millisecond
)

// LinkJobMsg is the body of a message on LinkQueue.
type LinkJobMsg struct {
	RequestID    string `json:"request_id"`
	ProjectID    int64  `json:"project_id"`
	RepositoryID string `json:"repository_id,omitempty"`
	ConceptScope string `json:"concept_scope,omitempty"`
	ValueType    string `json:"value_type,omitempty"`
	Query        string `json:"query"`
	Mention      string `json:"mention,omitempty"`
	MentionBegin int    `json:"mention_begin"`
	// DocumentKey points to the document text in object storage.
	DocumentKey string `json:"document_key,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

// LinkJobResult is published to ResultTopic once a job finished.
type LinkJobResult struct {
	RequestID string           `json:"request_id"`
	ProjectID int64            `json:"project_id"`
	Status    string           `json:"status"`
	Results   []linking.Result `json:"results"`
	Error     string           `json:"error,omitempty"`
}

type Linker interface {
	Link(ctx context.Context, req linking.LinkRequest) ([]linking.Result, error)
}

type Leases interface {
	Run(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// LinkJobHandler processes messages from LinkQueue.
type LinkJobHandler struct {
	Linker  Linker
	Objects storage.ObjectStore
	// Leases is optional. Without it jobs run unguarded.
	Leases    Leases
	Publisher Publisher

	FetchTries   int
	FetchBackoff time.Duration
}

// ProcessLinkMessage runs one async linking job and publishes its result.
// Linking errors are reported in the published result; only infrastructure
// failures (decoding, lease, document fetch, publish) are returned so the
// delivery is retried.
func (h *LinkJobHandler) ProcessLinkMessage(ctx context.Context, body []byte) error {
	var msg LinkJobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to decode link job: %w", err)
	}
	if msg.RequestID == "" {
		return errors.New("link job without request id")
	}

	run := func(ctx context.Context) error { return h.process(ctx, msg) }
	if h.Leases == nil {
		return run(ctx)
	}

	err := h.Leases.Run(ctx, leaselock.JobKey(msg.RequestID), leaselock.Options{}, run)
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue][Link] Job is being processed by another worker", "request_id", msg.RequestID)
	}
	return err
}

func (h *LinkJobHandler) process(ctx context.Context, msg LinkJobMsg) error {
	logger.Debug("[Queue][Link] Processing job", "request_id", msg.RequestID, "project_id", msg.ProjectID)

	valueType, err := common.ParseValueType(msg.ValueType)
	if err != nil {
		return h.publish(msg, nil, err)
	}

	req := linking.LinkRequest{
		ProjectID:    msg.ProjectID,
		RepositoryID: msg.RepositoryID,
		ConceptScope: msg.ConceptScope,
		ValueType:    valueType,
		Query:        msg.Query,
		Mention:      msg.Mention,
		MentionBegin: msg.MentionBegin,
		Locale:       msg.Locale,
	}

	if msg.DocumentKey != "" {
		text, err := h.fetchDocument(ctx, msg.DocumentKey)
		if err != nil {
			return err
		}
		req.Document = document.New(text)
	}

	results, err := h.Linker.Link(ctx, req)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err := h.publish(msg, results, err); err != nil {
		return err
	}

	if msg.DocumentKey != "" && h.Objects != nil {
		if err := storage.DeleteFile(ctx, h.Objects, msg.DocumentKey); err != nil {
			logger.Warn("[Queue][Link] Failed to delete document", "key", msg.DocumentKey, "err", err)
		}
	}
	return nil
}

func (h *LinkJobHandler) fetchDocument(ctx context.Context, key string) (string, error) {
	if h.Objects == nil {
		return "", fmt.Errorf("no object storage configured for document %s", key)
	}

	tries := h.FetchTries
	if tries <= 0 {
		tries = defaultFetchTries
	}
	backoff := h.FetchBackoff
	if backoff <= 0 {
		backoff = defaultFetchBackoff
	}

	content, err := util.RetryWithContext(ctx, tries, backoff, func(ctx context.Context) ([]byte, error) {
		return storage.GetFile(ctx, h.Objects, key)
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch document %s: %w", key, err)
	}
	return util.SanitizeText(string(content)), nil
}

func (h *LinkJobHandler) publish(msg LinkJobMsg, results []linking.Result, linkErr error) error {
	res := LinkJobResult{
		RequestID: msg.RequestID,
		ProjectID: msg.ProjectID,
		Status:    StatusDone,
		Results:   results,
	}
	if res.Results == nil {
		res.Results = []linking.Result{}
	}
	if linkErr != nil {
		logger.Warn("[Queue][Link] Job failed", "request_id", msg.RequestID, "err", linkErr)
		res.Status = StatusFailed
		res.Error = linkErr.Error()
	}

	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode link result: %w", err)
	}
	if err := PublishTopic(h.Publisher, ResultTopic(msg.ProjectID), data); err != nil {
		return fmt.Errorf("failed to publish link result: %w", err)
	}
	logger.Info("[Queue][Link] Job finished", "request_id", msg.RequestID, "status", res.Status, "results", len(res.Results))
	return nil
}
