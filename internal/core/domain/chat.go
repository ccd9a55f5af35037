package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type ChatSender string

const (
	SenderUser      ChatSender = "user"
	SenderAssistant ChatSender = "assistant"
)

const (
	WelcomeMessageID   = "1"
	WelcomeMessageText = "Hey there👋 I'm here to help you with your notebook. What would you like to know? 🤔"
	ChatErrorText      = "Sorry, I encountered an error processing your message. Please try again."
	UploadFailedText   = "File upload failed. Please try again."
)

type ChatMessage struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Sender    ChatSender `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
}

func ExistingSourcesText(pdfCount int) string {
	return fmt.Sprintf("Found %d existing PDF(s) in your storage. You can upload more or start asking questions about the documents.", pdfCount)
}

func UploadSucceededText(count int) string {
	return fmt.Sprintf("Successfully uploaded %d file(s) to storage.", count)
}

type BotReply struct {
	BotResponse string `json:"botResponse"`
}

type Summary struct {
	Summary string          `json:"summary"`
	Sources json.RawMessage `json:"sources,omitempty"`
	Cached  bool            `json:"cached"`
}
