package chatsync

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bloomcircle/backend/internal/models"
)

// MentionComposer drives @-mention autocomplete over a draft being typed.
// The UI feeds it the draft and cursor on every edit; the composer exposes
// the candidate list, a highlighted candidate that cycles with wraparound,
// and commit, which splices the chosen name into the draft.
type MentionComposer struct {
	roster   []models.Member
	draft    string
	cursor   int // byte offset
	start    int // byte offset of the active '@', -1 when inactive
	matches  []models.Member
	selected int
}

// NewMentionComposer creates a composer over a roster. Candidate order
// follows roster order, which the server keeps stable.
func NewMentionComposer(roster []models.Member) *MentionComposer {
	return &MentionComposer{roster: roster, start: -1}
}

// SetRoster replaces the roster, keeping any active query.
func (m *MentionComposer) SetRoster(roster []models.Member) {
	m.roster = roster
	m.refresh()
}

// Update feeds the current draft and cursor byte offset. Any edit resets the
// highlighted candidate to the first match.
func (m *MentionComposer) Update(draft string, cursor int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(draft) {
		cursor = len(draft)
	}
	m.draft = draft
	m.cursor = cursor
	m.selected = 0
	m.refresh()
}

func (m *MentionComposer) refresh() {
	m.start = activeTokenStart(m.draft, m.cursor)
	m.matches = m.matches[:0]
	if m.start < 0 {
		return
	}
	query := strings.ToLower(m.draft[m.start+1 : m.cursor])
	for _, member := range m.roster {
		if member.DisplayName == "" {
			continue
		}
		if query == "" || strings.Contains(strings.ToLower(member.DisplayName), query) {
			m.matches = append(m.matches, member)
		}
	}
	if m.selected >= len(m.matches) {
		m.selected = 0
	}
}

// activeTokenStart returns the byte offset of the '@' opening the mention
// token the cursor sits in, or -1. The '@' must start the draft or follow
// whitespace, and the text between it and the cursor must be space-free.
func activeTokenStart(draft string, cursor int) int {
	for i := cursor; i > 0; {
		r, size := utf8.DecodeLastRuneInString(draft[:i])
		i -= size
		if unicode.IsSpace(r) {
			return -1
		}
		if r == '@' {
			if i == 0 {
				return i
			}
			prev, _ := utf8.DecodeLastRuneInString(draft[:i])
			if unicode.IsSpace(prev) {
				return i
			}
			return -1
		}
	}
	return -1
}

// Dismiss hides suggestions without touching the draft; the next Update
// re-evaluates from scratch.
func (m *MentionComposer) Dismiss() {
	m.start = -1
	m.matches = m.matches[:0]
	m.selected = 0
}

// Active reports whether a mention query is in progress.
func (m *MentionComposer) Active() bool { return m.start >= 0 }

// Query returns the text typed after the '@', without the '@'.
func (m *MentionComposer) Query() string {
	if m.start < 0 {
		return ""
	}
	return m.draft[m.start+1 : m.cursor]
}

// Suggestions returns the matching roster members in roster order.
func (m *MentionComposer) Suggestions() []models.Member {
	out := make([]models.Member, len(m.matches))
	copy(out, m.matches)
	return out
}

// Selected returns the highlighted candidate.
func (m *MentionComposer) Selected() (models.Member, bool) {
	if len(m.matches) == 0 {
		return models.Member{}, false
	}
	return m.matches[m.selected], true
}

// Cycle moves the highlight by delta with wraparound; +1 is next, -1 is
// previous.
func (m *MentionComposer) Cycle(delta int) {
	n := len(m.matches)
	if n == 0 {
		return
	}
	m.selected = ((m.selected+delta)%n + n) % n
}

// MentionSpan marks one "@DisplayName" run inside finalized message text,
// for styling. Start is the byte offset of the '@'; End is one past the
// last byte of the name.
type MentionSpan struct {
	Start  int
	End    int
	Member models.Member
}

// MentionSpans rescans finalized text for mention tokens that exactly match
// a roster display name. At each '@' the longest matching name wins, so a
// roster holding both "Alex" and "Alexandra" styles "@Alexandra" whole.
// Spans come back in text order and never overlap.
func MentionSpans(text string, roster []models.Member) []MentionSpan {
	var spans []MentionSpan
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '@')
		if j < 0 {
			break
		}
		i += j
		rest := text[i+1:]
		var best models.Member
		bestLen := 0
		for _, m := range roster {
			if len(m.DisplayName) <= bestLen {
				continue
			}
			if strings.HasPrefix(rest, m.DisplayName) {
				best, bestLen = m, len(m.DisplayName)
			}
		}
		if bestLen == 0 {
			i++
			continue
		}
		spans = append(spans, MentionSpan{Start: i, End: i + 1 + bestLen, Member: best})
		i += 1 + bestLen
	}
	return spans
}

// Commit splices the highlighted candidate into the draft, replacing
// everything from the '@' to the cursor with "@Name " and returning the new
// draft and cursor. Returns ok=false when nothing is active or matched.
func (m *MentionComposer) Commit() (draft string, cursor int, ok bool) {
	member, found := m.Selected()
	if !found || m.start < 0 {
		return m.draft, m.cursor, false
	}
	inserted := "@" + member.DisplayName + " "
	draft = m.draft[:m.start] + inserted + m.draft[m.cursor:]
	cursor = m.start + len(inserted)
	m.Update(draft, cursor)
	return draft, cursor, true
}
