package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortNotesNewestFirst(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	notes := []Note{
		{ID: "7", CreatedAt: base},
		{ID: "9", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "8", CreatedAt: base.Add(time.Hour)},
	}

	SortNotesNewestFirst(notes)

	assert.Equal(t, []ID{"9", "8", "7"}, []ID{notes[0].ID, notes[1].ID, notes[2].ID})
}

func TestWithoutNotes(t *testing.T) {
	notes := []Note{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	got := WithoutNotes(notes, map[ID]bool{"1": true, "3": true})

	assert.Equal(t, []Note{{ID: "2"}}, got)
	assert.Len(t, notes, 3)
}

func TestNote_CloneDetachesTags(t *testing.T) {
	n := Note{ID: "7", Tags: []Tag{{ID: "18", Text: "bee"}}}

	c := n.Clone()
	c.Tags[0].Text = "wasp"

	assert.Equal(t, "bee", n.Tags[0].Text)
	assert.True(t, n.HasTag("18"))
	assert.Equal(t, []ID{"18"}, n.TagIDs())
}

func TestSortTagsRecentFirst(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	tags := []Tag{
		{ID: "18", Text: "bee", UpdatedAt: base},
		{ID: "19", Text: "buzz", UpdatedAt: base.Add(time.Minute)},
		{ID: "17", Text: "ant", UpdatedAt: base},
	}

	SortTagsRecentFirst(tags)

	assert.Equal(t, "buzz", tags[0].Text)
	assert.Equal(t, "ant", tags[1].Text)
	assert.Equal(t, "bee", tags[2].Text)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()

	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Hour)}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now.Add(10 * time.Second)}).Expired(now))
}

func TestRandomColor_FromPalette(t *testing.T) {
	for range 50 {
		c := RandomColor()
		found := false
		for _, p := range Palette {
			if p.Hex == c {
				found = true
			}
		}
		assert.True(t, found, "color %s not in palette", c)
	}
	assert.Len(t, Palette, 16)
}
