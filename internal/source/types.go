package source

import "time"

// MediaKind distinguishes attachment types. It is resolved once at fetch time
// from the Telegram attachment field, never from a file name.
type MediaKind int

const (
	MediaPhoto MediaKind = iota + 1
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MediaRef is an opaque handle to one attachment of a channel post.
type MediaRef struct {
	Kind      MediaKind
	FileID    string
	MimeType  string // video only, may be empty
	MessageID int
}

// Item is one message pulled from the source channel.
type Item struct {
	ID       int
	UpdateID int
	Text     string
	GroupKey string
	Media    []MediaRef
	Date     time.Time
}

// HasMedia reports whether the item carries any attachment.
func (i Item) HasMedia() bool { return len(i.Media) > 0 }

// Post is one logical publishable unit: a standalone item or an assembled media group.
type Post struct {
	AnchorID int
	GroupKey string
	Text     string
	Media    []MediaRef
	// MemberIDs holds every message id folded into the post, ascending.
	MemberIDs []int
	// UpdateID is the smallest Bot API update id among the members.
	UpdateID int
}

// HasMedia reports whether the post carries any attachment.
func (p Post) HasMedia() bool { return len(p.Media) > 0 }

// PostFromItem wraps a standalone item.
func PostFromItem(it Item) Post {
	return Post{
		AnchorID:  it.ID,
		GroupKey:  it.GroupKey,
		Text:      it.Text,
		Media:     append([]MediaRef(nil), it.Media...),
		MemberIDs: []int{it.ID},
		UpdateID:  it.UpdateID,
	}
}
