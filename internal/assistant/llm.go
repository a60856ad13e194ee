// Package assistant backs the AI endpoints: chat, medication suggestions, health tips
// and skin image analysis. Without a configured model every answer is canned.
package assistant

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

// Response is the model's reply.
type Response struct {
	Text       string
	StopReason string
}

// Client completes a conversation.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
