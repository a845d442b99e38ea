package source

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

// Channel identifies the source channel either by public username or by numeric chat id.
type Channel struct {
	Username string
	ID       int64
}

// ParseChannel accepts "https://t.me/name", "t.me/name", "@name", "name" or a numeric chat id.
func ParseChannel(raw string) (Channel, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Channel{}, fmt.Errorf("channel identifier is empty")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Channel{ID: id}, nil
	}

	if strings.Contains(s, "t.me/") || strings.Contains(s, "telegram.me/") {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		u, err := url.Parse(s)
		if err != nil {
			return Channel{}, fmt.Errorf("invalid channel url %q: %w", raw, err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		s = parts[0]
		// t.me/s/<name> is the public web preview of a channel
		if s == "s" && len(parts) > 1 {
			s = parts[1]
		}
	}

	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.ContainsAny(s, " /?#") {
		return Channel{}, fmt.Errorf("invalid channel identifier %q", raw)
	}
	return Channel{Username: s}, nil
}

// ChatID returns the Bot API chat identifier for the channel.
func (c Channel) ChatID() telego.ChatID {
	if c.ID != 0 {
		return telego.ChatID{ID: c.ID}
	}
	return telego.ChatID{Username: "@" + c.Username}
}

// Matches reports whether chat is this channel.
func (c Channel) Matches(chat telego.Chat) bool {
	if c.ID != 0 {
		return chat.ID == c.ID
	}
	return strings.EqualFold(chat.Username, c.Username)
}

func (c Channel) String() string {
	if c.ID != 0 {
		return strconv.FormatInt(c.ID, 10)
	}
	return "@" + c.Username
}
