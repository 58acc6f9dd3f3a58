package utils

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"clipfolio/internal/domain/repository"
)

// EncodeMessageCursor serializes a page boundary into an opaque token.
func EncodeMessageCursor(cursor *repository.MessageCursor) string {
	if cursor == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", cursor.CreatedAt.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeMessageCursor parses a token produced by EncodeMessageCursor. An
// empty token means the newest page.
func DecodeMessageCursor(token string) (*repository.MessageCursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}

	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}

	return &repository.MessageCursor{CreatedAt: ts, ID: parts[1]}, nil
}
