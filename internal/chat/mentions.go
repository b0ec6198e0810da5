package chat

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bloomcircle/backend/internal/models"
)

// ScanMentions returns the roster members whose rendered mention token
// ("@" + display name) appears in the message body. The author never
// mentions themselves. Each member is reported at most once, in roster
// order.
func ScanMentions(body string, roster []models.Member, authorID uuid.UUID) []models.Member {
	if !strings.Contains(body, "@") {
		return nil
	}
	var hits []models.Member
	for _, m := range roster {
		if m.ID == authorID || m.DisplayName == "" {
			continue
		}
		if strings.Contains(body, "@"+m.DisplayName) {
			hits = append(hits, m)
		}
	}
	return hits
}

// Excerpt shortens a message body for notification payloads.
func Excerpt(body string, max int) string {
	if len(body) <= max {
		return body
	}
	// cut on a rune boundary
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}
