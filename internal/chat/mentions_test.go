package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/bloomcircle/backend/internal/models"
)

func roster(names ...string) []models.Member {
	list := make([]models.Member, 0, len(names))
	for _, n := range names {
		list = append(list, models.Member{ID: uuid.New(), DisplayName: n})
	}
	return list
}

func TestScanMentions(t *testing.T) {
	r := roster("Alice", "Bob", "Albert")

	hits := ScanMentions("hi @Alice how are you", r, uuid.New())
	if assert.Len(t, hits, 1) {
		assert.Equal(t, "Alice", hits[0].DisplayName)
	}
}

func TestScanMentionsNoToken(t *testing.T) {
	r := roster("Alice")
	assert.Nil(t, ScanMentions("hi Alice", r, uuid.New()))
}

func TestScanMentionsMultiple(t *testing.T) {
	r := roster("Alice", "Bob", "Albert")
	hits := ScanMentions("@Bob and @Albert please review", r, uuid.New())
	if assert.Len(t, hits, 2) {
		// roster order, not body order
		assert.Equal(t, "Bob", hits[0].DisplayName)
		assert.Equal(t, "Albert", hits[1].DisplayName)
	}
}

func TestScanMentionsExcludesAuthor(t *testing.T) {
	r := roster("Alice", "Bob")
	hits := ScanMentions("@Alice talking to myself", r, r[0].ID)
	assert.Empty(t, hits)
}

func TestScanMentionsDeduplicates(t *testing.T) {
	r := roster("Alice")
	hits := ScanMentions("@Alice @Alice @Alice", r, uuid.New())
	assert.Len(t, hits, 1)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("short", 80))

	long := make([]byte, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'a')
	}
	got := Excerpt(string(long), 80)
	assert.Equal(t, 80+len("…"), len(got))
}
