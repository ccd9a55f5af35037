package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

type identityFake struct {
	mu          sync.Mutex
	current     *domain.Identity
	currentErr  error
	signInErr   error
	signInCalls int
	listeners   int
	unsubscribe int
}

func (f *identityFake) CurrentSession(context.Context) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	if f.current == nil {
		return nil, nil
	}
	copyIdentity := *f.current
	return &copyIdentity, nil
}

func (f *identityFake) SignInAnonymously(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	if f.signInErr != nil {
		return f.signInErr
	}
	f.current = &domain.Identity{UserID: "anon-1", AccessToken: "token", Anonymous: true}
	return nil
}

func (f *identityFake) OnAuthStateChange(func(domain.AuthEvent, *domain.Identity)) ports.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners++
	return subscriptionFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribe++
	})
}

type subscriptionFunc func()

func (fn subscriptionFunc) Unsubscribe() { fn() }

type storageFake struct {
	mu        sync.Mutex
	objects   []domain.StoredObject
	listErr   error
	listOpts  domain.ListOptions
	uploadErr map[string]error
	uploaded  map[string]string
	upserts   []bool
	panicOn   string

	// entered receives once per call; the call then waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *storageFake) hold(ctx context.Context) error {
	if f.release == nil {
		return nil
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *storageFake) List(ctx context.Context, _ string, opts domain.ListOptions) ([]domain.StoredObject, error) {
	if err := f.hold(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOpts = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	limit := opts.Limit
	if limit > len(f.objects) {
		limit = len(f.objects)
	}
	return f.objects[:limit], nil
}

func (f *storageFake) Upload(ctx context.Context, objectName string, body io.Reader, opts domain.UploadOptions) (domain.UploadedObject, error) {
	if err := f.hold(ctx); err != nil {
		return domain.UploadedObject{}, err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return domain.UploadedObject{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for name, uploadErr := range f.uploadErr {
		if strings.HasSuffix(objectName, name) {
			return domain.UploadedObject{}, uploadErr
		}
	}
	if f.panicOn != "" && strings.HasSuffix(objectName, f.panicOn) {
		panic("storage exploded")
	}
	if f.uploaded == nil {
		f.uploaded = map[string]string{}
	}
	f.uploaded[objectName] = string(raw)
	f.upserts = append(f.upserts, opts.Upsert)
	return domain.UploadedObject{Path: objectName}, nil
}

func (f *storageFake) PublicURL(objectName string) string {
	return "https://storage.local/pdfs/" + objectName
}

func (f *storageFake) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploaded)
}

type chatAPIFake struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   []string
	release chan struct{}
}

func (f *chatAPIFake) ProcessMessage(ctx context.Context, userMessage string) (*domain.BotReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userMessage)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BotReply{BotResponse: f.reply}, nil
}

type backendFake struct {
	mu           sync.Mutex
	summary      *domain.Summary
	summaryErr   error
	summaryCalls int
	history      json.RawMessage
	processErr   error
	processCalls int

	summaryEntered chan struct{}
	summaryRelease chan struct{}
}

func (f *backendFake) FetchSummary(ctx context.Context) (*domain.Summary, error) {
	f.mu.Lock()
	f.summaryCalls++
	entered, release := f.summaryEntered, f.summaryRelease
	f.mu.Unlock()

	if release != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return f.summary, nil
}

func (f *backendFake) ProcessDocuments(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.processErr != nil {
		return nil, f.processErr
	}
	return json.RawMessage(`{"processed":true}`), nil
}

func (f *backendFake) FetchChatHistory(context.Context) (json.RawMessage, error) {
	if f.history == nil {
		return nil, errors.New("history unavailable")
	}
	return f.history, nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.DocumentsUploadedEvent
	err    error
}

func (f *publisherFake) PublishDocumentsUploaded(_ context.Context, event domain.DocumentsUploadedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func pdfFile(name, body string) domain.File {
	return domain.NewBytesFile(name, domain.PDFContentType, []byte(body))
}

func sizePtr(v int64) *int64 { return &v }
