package models

import (
	"strings"
	"time"
)

// Chat represents a conversation container in the chat system. It holds the ordered message
// thread together with identification and labeling metadata.
type Chat struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	// DefaultTitle is the placeholder title every chat is created with.
	DefaultTitle = "New Conversation"
	// ImageOnlyTitle is used when a title should be derived but the first user message
	// carries no extractable text.
	ImageOnlyTitle = "Image Conversation"

	titleWordLimit = 8
)

// DeriveTitle computes the human-readable title for a chat holding the given messages. The
// title transitions away from DefaultTitle exactly once: when at least three messages exist
// and a user message is found, it becomes the first eight whitespace-separated words of that
// message's flattened text, with an ellipsis appended when truncated. An already derived
// title is returned unchanged, as is the placeholder when the conditions are not yet met.
func DeriveTitle(title string, messages []Message) string {
	if title != DefaultTitle || len(messages) < 3 {
		return title
	}

	var firstUser *Message
	for i := range messages {
		if messages[i].Role == RoleUser {
			firstUser = &messages[i]
			break
		}
	}
	if firstUser == nil {
		return title
	}

	words := strings.Fields(FlattenText(firstUser.Contents))
	derived := strings.Join(words[:min(titleWordLimit, len(words))], " ")
	if len(words) > titleWordLimit {
		derived += "..."
	}

	if strings.TrimSpace(derived) == "" {
		return ImageOnlyTitle
	}
	return derived
}
