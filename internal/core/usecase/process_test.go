package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestDocumentProcessorReturnsBackendResult(t *testing.T) {
	api := &backendFake{}
	p := NewDocumentProcessor(api, nil, nil)

	result, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if string(result) != `{"processed":true}` {
		t.Fatalf("unexpected result %s", result)
	}
	if p.IsProcessing() {
		t.Fatalf("expected processing flag reset")
	}
}

func TestDocumentProcessorWrapsFailure(t *testing.T) {
	backendErr := errors.New("Failed to process documents")
	p := NewDocumentProcessor(&backendFake{processErr: backendErr}, nil, nil)

	_, err := p.Process(context.Background())
	if !errors.Is(err, backendErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	if p.IsProcessing() {
		t.Fatalf("expected processing flag reset after failure")
	}
}
