package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/httpjson"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/resilience"
)

const (
	apiKeyHeader = "X-API-KEY"

	historyConversationID = "default"
	historyLimit          = 50
)

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

// Client talks to the notebook REST backend. Only process-message carries the API key.
type Client struct {
	http     *httpjson.Client
	apiKey   string
	executor *resilience.Executor
}

var _ ports.NotebookAPI = (*Client)(nil)

func New(baseURL, apiKey string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		http:     httpjson.New(baseURL, opts.Timeout, nil),
		apiKey:   apiKey,
		executor: opts.Executor,
	}
}

func (c *Client) FetchChatHistory(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "backend.chat_history", httpjson.Request{
		Method: http.MethodGet,
		Path:   "/chat-history",
		Query: url.Values{
			"conversationId": {historyConversationID},
			"limit":          {fmt.Sprint(historyLimit)},
		},
		FailureMessage: "Failed to fetch chat history",
	})
}

func (c *Client) FetchSummary(ctx context.Context) (*domain.Summary, error) {
	summary, err := resilience.Call(ctx, c.executor, "backend.summary", httpjson.Classify, func(ctx context.Context) (*domain.Summary, error) {
		var out domain.Summary
		err := c.http.Do(ctx, httpjson.Request{
			Operation:      "backend.summary",
			Method:         http.MethodGet,
			Path:           "/summary",
			FailureMessage: "Failed to fetch summary",
		}, &out)
		return &out, err
	})
	if err != nil {
		return nil, httpjson.Kind("fetch summary", err)
	}
	return summary, nil
}

func (c *Client) ProcessMessage(ctx context.Context, userMessage string) (*domain.BotReply, error) {
	reply, err := resilience.Call(ctx, c.executor, "backend.process_message", httpjson.Classify, func(ctx context.Context) (*domain.BotReply, error) {
		var out domain.BotReply
		err := c.http.Do(ctx, httpjson.Request{
			Operation: "backend.process_message",
			Method:    http.MethodPost,
			Path:      "/process-message",
			Header:    http.Header{apiKeyHeader: {c.apiKey}},
			JSON:      map[string]string{"userMessage": userMessage},
		}, &out)
		var statusErr *httpjson.StatusError
		if errors.As(err, &statusErr) {
			statusErr.Message = fmt.Sprintf("HTTP error! status: %d", statusErr.StatusCode)
		}
		return &out, err
	})
	if err != nil {
		return nil, httpjson.Kind("process message", err)
	}
	return reply, nil
}

func (c *Client) ProcessDocuments(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "backend.process_document", httpjson.Request{
		Method:         http.MethodGet,
		Path:           "/process-document",
		FailureMessage: "Failed to process documents",
	})
}

func (c *Client) getRaw(ctx context.Context, operation string, req httpjson.Request) (json.RawMessage, error) {
	req.Operation = operation
	raw, err := resilience.Call(ctx, c.executor, operation, httpjson.Classify, func(ctx context.Context) (json.RawMessage, error) {
		var out json.RawMessage
		err := c.http.Do(ctx, req, &out)
		return out, err
	})
	if err != nil {
		return nil, httpjson.Kind(operation, err)
	}
	return raw, nil
}
