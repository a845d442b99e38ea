package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"tgfb-relay/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// maxUpdatesPerCall is the Bot API upper bound for getUpdates.
const maxUpdatesPerCall = 100

var allowedUpdates = []string{"channel_post"}

// FetchError is returned when the channel cannot be read. It is fatal for a run.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch channel posts: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// DownloadError is returned when one media reference cannot be materialized.
type DownloadError struct {
	Ref MediaRef
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s of message %d: %v", e.Ref.Kind, e.Ref.MessageID, e.Err)
}
func (e *DownloadError) Unwrap() error { return e.Err }

// Reader reads recent posts of one channel through the Bot API. The bot must
// be an administrator of the channel to receive its posts as updates.
type Reader struct {
	bot        telegoapi.BotAPI
	channel    Channel
	httpClient *http.Client
	debug      bool

	lastUpdateID int
	ackedOffset  int
}

// NewReader creates a Reader for channel.
func NewReader(bot telegoapi.BotAPI, channel Channel, debug bool) (*Reader, error) {
	if bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if channel.ID == 0 && channel.Username == "" {
		return nil, fmt.Errorf("channel cannot be empty")
	}
	return &Reader{
		bot:        bot,
		channel:    channel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		debug:      debug,
	}, nil
}

// Channel returns the channel this reader is bound to.
func (r *Reader) Channel() Channel { return r.channel }

// FetchRecent returns up to limit of the most recent channel posts, newest first.
// Pending updates are not confirmed here; see Acknowledge.
func (r *Reader) FetchRecent(ctx context.Context, limit int) ([]Item, error) {
	updates, err := r.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Limit:          maxUpdatesPerCall,
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	items := make([]Item, 0, len(updates))
	for _, upd := range updates {
		if upd.UpdateID > r.lastUpdateID {
			r.lastUpdateID = upd.UpdateID
		}
		if upd.ChannelPost == nil || !r.channel.Matches(upd.ChannelPost.Chat) {
			continue
		}
		items = append(items, itemFromMessage(upd.UpdateID, *upd.ChannelPost))
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if r.debug {
		log.Printf("[Fetch Channel:%s] %d update(s), %d channel post(s) kept", r.channel, len(updates), len(items))
	}
	return items, nil
}

// Acknowledge confirms pending updates with id < before so Telegram stops redelivering them.
func (r *Reader) Acknowledge(ctx context.Context, before int) error {
	if before <= 0 || before <= r.ackedOffset {
		return nil
	}
	if _, err := r.bot.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:         before,
		Limit:          1,
		AllowedUpdates: allowedUpdates,
	}); err != nil {
		return fmt.Errorf("acknowledge updates before %d: %w", before, err)
	}
	r.ackedOffset = before
	return nil
}

// AcknowledgeAll confirms every update seen by FetchRecent.
func (r *Reader) AcknowledgeAll(ctx context.Context) error {
	if r.lastUpdateID == 0 {
		return nil
	}
	return r.Acknowledge(ctx, r.lastUpdateID+1)
}

// Download materializes ref at path.
func (r *Reader) Download(ctx context.Context, ref MediaRef, path string) error {
	file, err := r.bot.GetFile(ctx, &telego.GetFileParams{FileID: ref.FileID})
	if err != nil {
		return &DownloadError{Ref: ref, Err: err}
	}
	if file == nil || file.FilePath == "" {
		return &DownloadError{Ref: ref, Err: errors.New("file has no download path")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return &DownloadError{Ref: ref, Err: err}
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return &DownloadError{Ref: ref, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &DownloadError{Ref: ref, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	out, err := os.Create(path)
	if err != nil {
		return &DownloadError{Ref: ref, Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return &DownloadError{Ref: ref, Err: err}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return &DownloadError{Ref: ref, Err: err}
	}
	return nil
}

func itemFromMessage(updateID int, msg telego.Message) Item {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	item := Item{
		ID:       msg.MessageID,
		UpdateID: updateID,
		Text:     text,
		GroupKey: msg.MediaGroupID,
		Date:     time.Unix(msg.Date, 0),
	}

	if len(msg.Photo) > 0 {
		// Photo holds the same image in several sizes; keep the largest.
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.FileSize > best.FileSize || (p.FileSize == best.FileSize && p.Width*p.Height > best.Width*best.Height) {
				best = p
			}
		}
		item.Media = append(item.Media, MediaRef{Kind: MediaPhoto, FileID: best.FileID, MessageID: msg.MessageID})
	}
	if msg.Video != nil {
		item.Media = append(item.Media, MediaRef{
			Kind:      MediaVideo,
			FileID:    msg.Video.FileID,
			MimeType:  msg.Video.MimeType,
			MessageID: msg.MessageID,
		})
	} else if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "video/") {
		item.Media = append(item.Media, MediaRef{
			Kind:      MediaVideo,
			FileID:    msg.Document.FileID,
			MimeType:  msg.Document.MimeType,
			MessageID: msg.MessageID,
		})
	}
	return item
}
