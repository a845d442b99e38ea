package mediagroups

import (
	"log"
	"sort"

	"tgfb-relay/internal/source"
)

const (
	// DefaultScanWindow is how many message ids around the anchor are inspected for group members.
	DefaultScanWindow = 10
	// DefaultMaxGroupSize limits the number of messages folded into one group (Telegram albums hold at most 10).
	DefaultMaxGroupSize = 10
)

// Manager assembles media groups out of a fetched batch and remembers, for
// the lifetime of one run, which groups were already handled.
// It is not safe for concurrent use; the pipeline processes one item at a time.
type Manager struct {
	window  int
	maxSize int
	handled map[string]struct{}
}

// NewManager creates a new media group manager. Non-positive values select the defaults.
func NewManager(window, maxSize int) *Manager {
	if window <= 0 {
		window = DefaultScanWindow
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxGroupSize
	}
	return &Manager{
		window:  window,
		maxSize: maxSize,
		handled: make(map[string]struct{}),
	}
}

// Handled reports whether groupKey was already assembled during this run.
func (m *Manager) Handled(groupKey string) bool {
	if groupKey == "" {
		return false
	}
	_, ok := m.handled[groupKey]
	return ok
}

// MarkHandled records groupKey as handled without assembling it.
func (m *Manager) MarkHandled(groupKey string) {
	if groupKey != "" {
		m.handled[groupKey] = struct{}{}
	}
}

// Assemble builds the post anchored at anchor. For a standalone item it returns
// the item itself. For a group member it scans batch for messages carrying the
// same group key within the id window around the anchor, orders them by id and
// marks the group handled. Members further away than the window are missed.
func (m *Manager) Assemble(anchor source.Item, batch []source.Item) source.Post {
	if anchor.GroupKey == "" {
		return source.PostFromItem(anchor)
	}
	groupID := anchor.GroupKey

	members := make([]source.Item, 0, m.maxSize)
	seen := make(map[int]struct{})
	for _, it := range batch {
		if it.GroupKey != groupID || abs(it.ID-anchor.ID) > m.window {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		members = append(members, it)
	}
	if _, ok := seen[anchor.ID]; !ok {
		members = append(members, anchor)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	if len(members) > m.maxSize {
		log.Printf("[MediaGroupManager Group:%s] Group limit (%d) reached, %d message(s) dropped.", groupID, m.maxSize, len(members)-m.maxSize)
		members = members[:m.maxSize]
	}

	post := source.Post{
		AnchorID: members[0].ID,
		GroupKey: groupID,
		UpdateID: members[0].UpdateID,
	}
	for _, it := range members {
		post.MemberIDs = append(post.MemberIDs, it.ID)
		post.Media = append(post.Media, it.Media...)
		if post.Text == "" && it.Text != "" {
			post.Text = it.Text
		}
		if it.UpdateID < post.UpdateID {
			post.UpdateID = it.UpdateID
		}
	}

	m.MarkHandled(groupID)
	log.Printf("[MediaGroupManager Group:%s] Assembled %d message(s) around %d.", groupID, len(members), anchor.ID)
	return post
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
