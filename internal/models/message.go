package models

import (
	"strings"
	"time"
)

// Message represents an individual communication entry within a chat. It contains the core
// components of a chat message including its unique identifier, the participant's role, the
// ordered message contents, the model that produced or will receive it, and the precise time
// when the message was created.
type Message struct {
	ID        string
	Role      Role
	Contents  []Content
	Model     string
	Timestamp time.Time
}

// Content is a message content with its type. A plain text turn carries a single text content;
// a multimodal user turn carries a text content followed by an image content.
type Content struct {
	Type ContentType

	// Text would be filled if Type is ContentTypeText.
	Text string

	// ImageData would be filled if Type is ContentTypeImage. It holds a base64-encoded
	// data URL as produced by the upload endpoint.
	ImageData string
}

// Role represents the role of a message participant.
type Role string

// ContentType represents the type of content in messages.
type ContentType string

const (
	// RoleSystem represents the behavioral priming message. Messages with this role are
	// never rendered in the UI but are always prepended to outbound completion requests.
	RoleSystem Role = "system"
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"

	// ContentTypeText represents text content.
	ContentTypeText ContentType = "text"
	// ContentTypeImage represents an embedded image.
	ContentTypeImage ContentType = "image"
)

// DefaultModel is the model used for synthesized messages and as the fallback selection.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You are InfoAgent, a smart assistant optimized to provide accurate, ` +
	`useful, and thoughtful information using multiple advanced AI models. Always identify ` +
	`yourself as InfoAgent when introducing yourself.`

const welcomeText = `👋 Hello! I'm InfoAgent, your advanced AI assistant. I can help with ` +
	`Q&A, reasoning, code generation, and productivity tasks. How can I assist you today?`

// SystemMessage returns the fixed behavioral priming message sent with every completion
// request. It is never stored in a chat nor shown to the user.
func SystemMessage() Message {
	return Message{
		Role:      RoleSystem,
		Contents:  []Content{{Type: ContentTypeText, Text: systemPrompt}},
		Model:     DefaultModel,
		Timestamp: time.Now(),
	}
}

// WelcomeMessage returns the synthesized greeting every new chat starts with.
func WelcomeMessage(model string) Message {
	return Message{
		Role:      RoleAssistant,
		Contents:  []Content{{Type: ContentTypeText, Text: welcomeText}},
		Model:     model,
		Timestamp: time.Now(),
	}
}

// TextMessage builds a message holding a single text content.
func TextMessage(role Role, model, text string) Message {
	return Message{
		Role:      role,
		Contents:  []Content{{Type: ContentTypeText, Text: text}},
		Model:     model,
		Timestamp: time.Now(),
	}
}

// FlattenText joins the text contents of a message with single spaces, skipping image
// contents. An image-only message flattens to the empty string.
func FlattenText(contents []Content) string {
	var parts []string
	for _, ct := range contents {
		if ct.Type == ContentTypeText && ct.Text != "" {
			parts = append(parts, ct.Text)
		}
	}
	return strings.Join(parts, " ")
}
