package mediagroups

import (
	"testing"

	"tgfb-relay/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photoItem(id, update int, group, text string) source.Item {
	return source.Item{
		ID:       id,
		UpdateID: update,
		GroupKey: group,
		Text:     text,
		Media:    []source.MediaRef{{Kind: source.MediaPhoto, FileID: "f" + string(rune('a'+id%26)), MessageID: id}},
	}
}

func TestManager_AssembleStandalone(t *testing.T) {
	m := NewManager(0, 0)
	it := source.Item{ID: 100, UpdateID: 5, Text: "Hello world, this is news"}

	post := m.Assemble(it, []source.Item{it})
	assert.Equal(t, 100, post.AnchorID)
	assert.Equal(t, []int{100}, post.MemberIDs)
	assert.Equal(t, "Hello world, this is news", post.Text)
	assert.False(t, post.HasMedia())
	assert.False(t, m.Handled(""))
}

func TestManager_AssembleGroup(t *testing.T) {
	m := NewManager(10, 10)
	batch := []source.Item{
		photoItem(103, 13, "G2", ""),
		photoItem(102, 12, "G1", ""),
		photoItem(101, 11, "G1", "caption on first"),
		photoItem(99, 9, "", "standalone"),
	}

	// anchor reached oldest-first is 101, but any member yields the same post
	post := m.Assemble(batch[1], batch)
	require.Equal(t, []int{101, 102}, post.MemberIDs)
	assert.Equal(t, 101, post.AnchorID)
	assert.Equal(t, 11, post.UpdateID)
	assert.Equal(t, "G1", post.GroupKey)
	assert.Equal(t, "caption on first", post.Text)
	require.Len(t, post.Media, 2)
	assert.Equal(t, 101, post.Media[0].MessageID)
	assert.Equal(t, 102, post.Media[1].MessageID)

	assert.True(t, m.Handled("G1"))
	assert.False(t, m.Handled("G2"))
}

func TestManager_ScanWindowIsBounded(t *testing.T) {
	m := NewManager(2, 10)
	batch := []source.Item{
		photoItem(200, 1, "G", "a"),
		photoItem(202, 2, "G", ""),
		photoItem(205, 3, "G", ""),
	}

	post := m.Assemble(batch[0], batch)
	assert.Equal(t, []int{200, 202}, post.MemberIDs)
}

func TestManager_MaxSize(t *testing.T) {
	m := NewManager(10, 2)
	batch := []source.Item{
		photoItem(3, 3, "G", ""),
		photoItem(1, 1, "G", ""),
		photoItem(2, 2, "G", ""),
	}

	post := m.Assemble(batch[0], batch)
	assert.Equal(t, []int{1, 2}, post.MemberIDs)
	assert.Len(t, post.Media, 2)
}

func TestManager_AnchorOutsideBatch(t *testing.T) {
	m := NewManager(10, 10)
	anchor := photoItem(50, 4, "G", "text")

	post := m.Assemble(anchor, nil)
	assert.Equal(t, []int{50}, post.MemberIDs)
	assert.True(t, m.Handled("G"))
}
