package chatsync

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloomcircle/backend/internal/models"
)

func memberRoster(names ...string) []models.Member {
	out := make([]models.Member, 0, len(names))
	for _, n := range names {
		out = append(out, models.Member{ID: uuid.New(), DisplayName: n})
	}
	return out
}

func TestMentionQueryExtraction(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice", "Bob"))

	m.Update("hi @Al", len("hi @Al"))
	assert.True(t, m.Active())
	assert.Equal(t, "Al", m.Query())

	// an email-style token is not a mention
	m.Update("mail me@Al", len("mail me@Al"))
	assert.False(t, m.Active())

	// whitespace between '@' and cursor ends the query
	m.Update("hi @Al there", len("hi @Al there"))
	assert.False(t, m.Active())

	// '@' at the start of the draft
	m.Update("@B", len("@B"))
	assert.True(t, m.Active())
	assert.Equal(t, "B", m.Query())
}

func TestMentionSuggestionsRosterOrderSubstring(t *testing.T) {
	m := NewMentionComposer(memberRoster("Malcolm", "Alice", "Albert", "Bob"))

	m.Update("@al", len("@al"))
	got := m.Suggestions()
	require.Len(t, got, 3)
	// substring match, case-insensitive, in roster order
	assert.Equal(t, "Malcolm", got[0].DisplayName)
	assert.Equal(t, "Alice", got[1].DisplayName)
	assert.Equal(t, "Albert", got[2].DisplayName)
}

func TestMentionEmptyQueryListsEveryone(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice", "Bob"))
	m.Update("@", 1)
	assert.Len(t, m.Suggestions(), 2)
}

func TestMentionCycleWrapsAround(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice", "Albert"))
	m.Update("@al", len("@al"))

	first, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Alice", first.DisplayName)

	m.Cycle(1)
	sel, _ := m.Selected()
	assert.Equal(t, "Albert", sel.DisplayName)

	m.Cycle(1)
	sel, _ = m.Selected()
	assert.Equal(t, "Alice", sel.DisplayName)

	m.Cycle(-1)
	sel, _ = m.Selected()
	assert.Equal(t, "Albert", sel.DisplayName)
}

func TestMentionCommitReplacesQuery(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice", "Bob"))
	m.Update("hi @Al", len("hi @Al"))

	draft, cursor, ok := m.Commit()
	require.True(t, ok)
	assert.Equal(t, "hi @Alice ", draft)
	assert.Equal(t, len("hi @Alice "), cursor)
	assert.False(t, m.Active())
}

func TestMentionCommitMidDraft(t *testing.T) {
	m := NewMentionComposer(memberRoster("Bob"))
	text := "ask @B about it"
	m.Update(text, len("ask @B"))

	draft, cursor, ok := m.Commit()
	require.True(t, ok)
	assert.Equal(t, "ask @Bob  about it", draft)
	assert.Equal(t, len("ask @Bob "), cursor)
}

func TestMentionCommitWithoutMatch(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice"))
	m.Update("@zzz", len("@zzz"))

	_, _, ok := m.Commit()
	assert.False(t, ok)
}

func TestMentionDismiss(t *testing.T) {
	m := NewMentionComposer(memberRoster("Alice"))
	m.Update("@Al", len("@Al"))
	require.True(t, m.Active())

	m.Dismiss()
	assert.False(t, m.Active())
	assert.Empty(t, m.Suggestions())

	// the next edit re-opens the query
	m.Update("@Ali", len("@Ali"))
	assert.True(t, m.Active())
}

func TestMentionSpans(t *testing.T) {
	roster := memberRoster("Alex", "Alexandra", "Bob")

	tests := []struct {
		name string
		text string
		want []string // "<start>-<end>:<name>"
	}{
		{"no token", "plain text", nil},
		{"single", "hi @Bob", []string{"3-7:Bob"}},
		{"longest name wins", "ask @Alexandra first", []string{"4-14:Alexandra"}},
		{"shorter roster name", "ask @Alex first", []string{"4-9:Alex"}},
		{"two spans in order", "@Bob meet @Alex", []string{"0-4:Bob", "10-15:Alex"}},
		{"unknown name unstyled", "@Zoe and @Bob", []string{"9-13:Bob"}},
		{"bare at sign", "price @ 10", nil},
		{"email-style text", "mail me@Bob.dev", []string{"7-11:Bob"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, sp := range MentionSpans(tt.text, roster) {
				got = append(got, fmt.Sprintf("%d-%d:%s", sp.Start, sp.End, sp.Member.DisplayName))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
