package domain

import (
	"errors"
	"io"
	"testing"
)

func TestFormatSize(t *testing.T) {
	cases := map[int64]string{
		0:         "0.00 MB",
		1048576:   "1.00 MB",
		1572864:   "1.50 MB",
		123456789: "117.74 MB",
	}
	for in, want := range cases {
		if got := FormatSize(in); got != want {
			t.Fatalf("FormatSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayNameStripsTimestampPrefix(t *testing.T) {
	cases := map[string]string{
		"1712345678901-report.pdf": "report.pdf",
		"report.pdf":               "report.pdf",
		"12-34-notes.pdf":          "34-notes.pdf",
		"v2-final.pdf":             "v2-final.pdf",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsPDFName(t *testing.T) {
	if !IsPDFName("Paper.PDF") {
		t.Fatalf("expected upper-case extension to match")
	}
	if IsPDFName("notes.txt") || IsPDFName("pdf") {
		t.Fatalf("expected non-pdf names to be rejected")
	}
}

func TestFileOpenReturnsFreshReader(t *testing.T) {
	f := NewBytesFile("a.pdf", PDFContentType, []byte("%PDF"))
	for i := 0; i < 2; i++ {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		raw, _ := io.ReadAll(rc)
		_ = rc.Close()
		if string(raw) != "%PDF" {
			t.Fatalf("read %d returned %q", i, raw)
		}
	}
	if !f.IsPDF() {
		t.Fatalf("expected pdf content type")
	}
	if PlaceholderPDF("x.pdf").Size != 0 {
		t.Fatalf("expected empty placeholder")
	}
}

func TestUploadBatchResultStatus(t *testing.T) {
	if got := (UploadBatchResult{}).Status(); got != UploadIdle {
		t.Fatalf("empty batch status = %s", got)
	}
	if got := (UploadBatchResult{FailedCount: 2}).Status(); got != UploadError {
		t.Fatalf("failed batch status = %s", got)
	}
	partial := UploadBatchResult{Succeeded: []Source{{ID: "1"}}, FailedCount: 1}
	if got := partial.Status(); got != UploadSuccess {
		t.Fatalf("partial batch status = %s", got)
	}
}

func TestSessionStateStatus(t *testing.T) {
	if got := (SessionState{}).Status(); got != NotebookLoading {
		t.Fatalf("unready status = %s", got)
	}
	failed := SessionState{Ready: true, Error: "boom"}
	if failed.Status() != NotebookError || failed.Usable() {
		t.Fatalf("expected error state to be unusable")
	}
	ok := SessionState{Ready: true, UserID: "u1"}
	if ok.Status() != NotebookReady || !ok.Usable() {
		t.Fatalf("expected ready state to be usable")
	}
}

type displayErr struct{ msg string }

func (e displayErr) Error() string          { return "status 500: raw body" }
func (e displayErr) DisplayMessage() string { return e.msg }

func TestDisplayMessagePrefersWrappedDisplayText(t *testing.T) {
	err := WrapError(ErrTemporary, "fetch summary", displayErr{msg: "Failed to fetch summary"})
	if got := DisplayMessage(err); got != "Failed to fetch summary" {
		t.Fatalf("DisplayMessage() = %q", got)
	}
	if !IsKind(err, ErrTemporary) {
		t.Fatalf("expected kind to survive wrapping")
	}
	plain := errors.New("plain")
	if got := DisplayMessage(plain); got != "plain" {
		t.Fatalf("DisplayMessage(plain) = %q", got)
	}
	if DisplayMessage(nil) != "" {
		t.Fatalf("expected empty message for nil")
	}
}
