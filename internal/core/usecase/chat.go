package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

var errEmptyMessage = errors.New("message is empty")

type ChatState string

const (
	ChatIdle    ChatState = "idle"
	ChatSending ChatState = "sending"
)

type chatEvent string

const (
	chatSubmit  chatEvent = "submit"
	chatSettled chatEvent = "settled"
)

// chatTransitions is keyed by current state and event. A settle only returns to
// idle once no request is in flight; that check lives in transition.
var chatTransitions = map[ChatState]map[chatEvent]ChatState{
	ChatIdle: {
		chatSubmit: ChatSending,
	},
	ChatSending: {
		chatSubmit:  ChatSending,
		chatSettled: ChatIdle,
	},
}

type ChatControllerOptions struct {
	RequestTimeout time.Duration
	Metrics        ports.NotebookMetrics
	Logger         *slog.Logger
}

// ChatController keeps the ordered message log and reconciles optimistic user
// messages with asynchronous assistant replies.
type ChatController struct {
	api     ports.ChatCompleter
	timeout time.Duration
	metrics ports.NotebookMetrics
	logger  *slog.Logger

	mu       sync.Mutex
	messages []domain.ChatMessage
	input    string
	state    ChatState
	inFlight int

	newID func() string
	now   func() time.Time
}

func NewChatController(api ports.ChatCompleter, opts ChatControllerOptions) *ChatController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	c := &ChatController{
		api:     api,
		timeout: opts.RequestTimeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		state:   ChatIdle,
		newID:   uuid.NewString,
		now:     time.Now,
	}
	c.messages = []domain.ChatMessage{{
		ID:        domain.WelcomeMessageID,
		Content:   domain.WelcomeMessageText,
		Sender:    domain.SenderAssistant,
		Timestamp: c.now(),
	}}
	return c
}

func (c *ChatController) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

func (c *ChatController) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Send submits the pending input and clears it.
func (c *ChatController) Send(ctx context.Context) (<-chan domain.ChatMessage, bool) {
	c.mu.Lock()
	text := c.input
	c.mu.Unlock()

	reply, ok := c.Submit(ctx, text)
	if ok {
		c.SetInput("")
	}
	return reply, ok
}

// Submit appends the trimmed user message synchronously and dispatches the
// request. The returned channel yields the assistant message (reply or error
// text) once and is then closed. Blank input is ignored and reports false.
func (c *ChatController) Submit(ctx context.Context, text string) (<-chan domain.ChatMessage, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	c.mu.Lock()
	c.appendLocked(domain.SenderUser, text)
	c.inFlight++
	c.state = c.transition(chatSubmit)
	c.mu.Unlock()

	reply := make(chan domain.ChatMessage, 1)
	go c.dispatch(context.WithoutCancel(ctx), text, reply)
	return reply, true
}

// Ask submits text and waits for the assistant message.
func (c *ChatController) Ask(ctx context.Context, text string) (domain.ChatMessage, error) {
	reply, ok := c.Submit(ctx, text)
	if !ok {
		return domain.ChatMessage{}, domain.WrapError(domain.ErrInvalidInput, "ask", errEmptyMessage)
	}
	select {
	case msg := <-reply:
		return msg, nil
	case <-ctx.Done():
		return domain.ChatMessage{}, ctx.Err()
	}
}

func (c *ChatController) dispatch(ctx context.Context, text string, reply chan<- domain.ChatMessage) {
	defer close(reply)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	resp, err := c.api.ProcessMessage(ctx, text)
	c.metrics.ObserveChat(err, c.now().Sub(start))

	content := domain.ChatErrorText
	if err != nil {
		c.logger.Error("chat_send_failed", "error", err)
	} else {
		content = resp.BotResponse
	}

	c.mu.Lock()
	msg := c.appendLocked(domain.SenderAssistant, content)
	c.inFlight--
	c.state = c.transition(chatSettled)
	c.mu.Unlock()

	reply <- msg
}

func (c *ChatController) transition(ev chatEvent) ChatState {
	next, ok := chatTransitions[c.state][ev]
	if !ok {
		return c.state
	}
	if next == ChatIdle && c.inFlight > 0 {
		return ChatSending
	}
	return next
}

func (c *ChatController) appendLocked(sender domain.ChatSender, content string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:        c.newID(),
		Content:   content,
		Sender:    sender,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

func (c *ChatController) AddMessage(msg domain.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// AddErrorMessage posts assistant-authored text into the log. Upload outcomes use it too.
func (c *ChatController) AddErrorMessage(text string) domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(domain.SenderAssistant, text)
}

// AddWelcomeMessage announces sources already present in storage.
func (c *ChatController) AddWelcomeMessage(pdfCount int) {
	if pdfCount <= 0 {
		return
	}
	c.AddErrorMessage(domain.ExistingSourcesText(pdfCount))
}

func (c *ChatController) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

func (c *ChatController) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsLoading is advisory; callers gate input on it, the controller does not.
func (c *ChatController) IsLoading() bool {
	return c.State() == ChatSending
}
