package xlsx

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

func sampleMessages() []domain.ChatMessage {
	at := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)
	return []domain.ChatMessage{
		{ID: "1", Content: domain.WelcomeMessageText, Sender: domain.SenderAssistant, Timestamp: at},
		{ID: "2", Content: "What is chapter 3 about?", Sender: domain.SenderUser, Timestamp: at.Add(time.Minute)},
	}
}

func TestWriteTranscriptRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTranscript(&buf, sampleMessages()); err != nil {
		t.Fatalf("WriteTranscript() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "Message" || rows[2][1] != "user" || rows[2][2] != "What is chapter 3 about?" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][0] != "2026-10-15T08:30:00Z" {
		t.Fatalf("unexpected timestamp cell %q", rows[1][0])
	}
}

func TestSaveTranscriptCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.xlsx")
	if err := SaveTranscript(path, sampleMessages()); err != nil {
		t.Fatalf("SaveTranscript() error = %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex(sheetName); idx < 0 {
		t.Fatalf("expected %s sheet", sheetName)
	}
}
