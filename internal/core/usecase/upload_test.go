package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

type callbackRecorder struct {
	successCalls int
	sources      []domain.Source
	message      string
	errors       []string
}

func (r *callbackRecorder) callbacks() UploadCallbacks {
	return UploadCallbacks{
		OnSuccess: func(sources []domain.Source, message string) {
			r.successCalls++
			r.sources = sources
			r.message = message
		},
		OnError: func(message string) {
			r.errors = append(r.errors, message)
		},
	}
}

func TestUploadFilesOnlyNonPDFNeverSucceeds(t *testing.T) {
	storage := &storageFake{}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	result := o.UploadFiles(context.Background(), []domain.File{
		domain.NewBytesFile("a.png", "image/png", []byte("x")),
		domain.NewBytesFile("b.txt", "text/plain", []byte("y")),
	}, 0, rec.callbacks())

	if rec.successCalls != 0 || len(rec.errors) != 0 {
		t.Fatalf("expected no callbacks, got success=%d errors=%v", rec.successCalls, rec.errors)
	}
	if result.Eligible != 0 || result.Skipped != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if storage.uploadCount() != 0 {
		t.Fatalf("expected no uploads")
	}
	if o.IsUploading() {
		t.Fatalf("expected uploading=false after batch")
	}
}

func TestUploadFilesPartialFailureReportsOnce(t *testing.T) {
	storage := &storageFake{uploadErr: map[string]error{"bad.pdf": errors.New("bucket full")}}
	publisher := &publisherFake{}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{Publisher: publisher})
	rec := &callbackRecorder{}

	result := o.UploadFiles(context.Background(), []domain.File{
		pdfFile("a.pdf", "a"),
		pdfFile("bad.pdf", "b"),
		pdfFile("c.pdf", "c"),
		domain.NewBytesFile("d.docx", "application/msword", []byte("d")),
	}, 0, rec.callbacks())

	if rec.successCalls != 1 {
		t.Fatalf("expected exactly one success callback, got %d", rec.successCalls)
	}
	if len(rec.sources) != 2 || rec.sources[0].Name != "a.pdf" || rec.sources[1].Name != "c.pdf" {
		t.Fatalf("unexpected succeeded sources: %+v", rec.sources)
	}
	if rec.message != "Successfully uploaded 2 file(s) to storage." {
		t.Fatalf("unexpected message: %q", rec.message)
	}
	if len(result.Succeeded)+result.FailedCount != result.Eligible || result.Eligible != 3 {
		t.Fatalf("outcomes do not add up: %+v", result)
	}
	if len(publisher.events) != 1 || len(publisher.events[0].Paths) != 2 {
		t.Fatalf("expected one publish with two paths, got %+v", publisher.events)
	}
}

func TestUploadFilesAllFailedFiresNoCallback(t *testing.T) {
	storage := &storageFake{uploadErr: map[string]error{".pdf": errors.New("denied")}}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	result := o.UploadFiles(context.Background(), []domain.File{pdfFile("a.pdf", "a"), pdfFile("b.pdf", "b")}, 0, rec.callbacks())

	if rec.successCalls != 0 || len(rec.errors) != 0 {
		t.Fatalf("expected no callbacks, got success=%d errors=%v", rec.successCalls, rec.errors)
	}
	if result.FailedCount != 2 || result.Status() != domain.UploadError {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUploadFilesCapUsesBatchStartCount(t *testing.T) {
	storage := &storageFake{}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	result := o.UploadFiles(context.Background(), []domain.File{
		pdfFile("a.pdf", "a"), pdfFile("b.pdf", "b"), pdfFile("c.pdf", "c"),
	}, 19, rec.callbacks())

	if result.Eligible != 3 || len(result.Succeeded) != 3 {
		t.Fatalf("expected all three attempted and stored, got %+v", result)
	}
	if 19+len(rec.sources) != 22 {
		t.Fatalf("expected tracked count to reach 22, got %d", 19+len(rec.sources))
	}

	rec = &callbackRecorder{}
	result = o.UploadFiles(context.Background(), []domain.File{pdfFile("z.pdf", "z")}, 20, rec.callbacks())
	if result.Eligible != 0 || rec.successCalls != 0 {
		t.Fatalf("expected cap to reject batch at 20, got %+v", result)
	}
}

func TestUploadFilesNilSelectionReportsError(t *testing.T) {
	o := NewUploadOrchestrator(NewSourceRepository(&storageFake{}, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	o.UploadFiles(context.Background(), nil, 0, rec.callbacks())
	if len(rec.errors) != 1 || rec.errors[0] != domain.UploadFailedText {
		t.Fatalf("expected error callback, got %v", rec.errors)
	}

	rec = &callbackRecorder{}
	o.UploadFiles(context.Background(), []domain.File{}, 0, rec.callbacks())
	if len(rec.errors) != 0 || rec.successCalls != 0 {
		t.Fatalf("expected empty selection to be silent")
	}
}

func TestUploadFilesRecoversPanicAsError(t *testing.T) {
	storage := &storageFake{panicOn: "boom.pdf"}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	o.UploadFiles(context.Background(), []domain.File{pdfFile("ok.pdf", "a"), pdfFile("boom.pdf", "b")}, 0, rec.callbacks())

	if rec.successCalls != 0 {
		t.Fatalf("expected no success callback after panic")
	}
	if len(rec.errors) != 1 {
		t.Fatalf("expected one error callback, got %v", rec.errors)
	}
	if o.IsUploading() {
		t.Fatalf("expected uploading flag reset")
	}
}

func TestUploadFilesReportsUploadingUntilSettled(t *testing.T) {
	storage := &storageFake{entered: make(chan struct{}), release: make(chan struct{})}
	o := NewUploadOrchestrator(NewSourceRepository(storage, nil), UploadOrchestratorOptions{})
	rec := &callbackRecorder{}

	done := make(chan domain.UploadBatchResult, 1)
	go func() {
		done <- o.UploadFiles(context.Background(), []domain.File{pdfFile("a.pdf", "a")}, 0, rec.callbacks())
	}()

	<-storage.entered
	if !o.IsUploading() {
		t.Fatalf("expected uploading=true while a file is in flight")
	}
	close(storage.release)

	result := <-done
	if len(result.Succeeded) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if o.IsUploading() {
		t.Fatalf("expected uploading=false after batch")
	}
}
