package facebook

import (
	"context"
	"fmt"
	"log"

	"tgfb-relay/internal/stager"
)

// Session caches the page token for one run. A token failure is sticky: once
// the exchange failed, every later publish in the run fails fast.
type Session struct {
	fetched bool
	token   string
	err     error
}

// NewSession returns an empty run session.
func NewSession() *Session {
	return &Session{}
}

// Publisher posts captions and staged media to the page.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// NewSession starts a run session.
func (p *Publisher) NewSession() *Session {
	return NewSession()
}

func (p *Publisher) token(ctx context.Context, s *Session) (string, error) {
	if s.fetched {
		return s.token, s.err
	}
	s.token, s.err = p.client.PageToken(ctx)
	s.fetched = true
	if s.err != nil {
		log.Printf("[FB] Page token unavailable, publishing disabled for this run: %v", s.err)
	}
	return s.token, s.err
}

// Publish posts caption with group's media and reports success. Video wins
// over photos, photos over text only. Errors are logged, never raised.
func (p *Publisher) Publish(ctx context.Context, s *Session, caption string, group *stager.MediaGroup) bool {
	ok, err := p.publish(ctx, s, caption, group)
	if err != nil {
		log.Printf("[FB Error] %v", err)
		return false
	}
	return ok
}

func (p *Publisher) publish(ctx context.Context, s *Session, caption string, group *stager.MediaGroup) (bool, error) {
	token, err := p.token(ctx, s)
	if err != nil {
		return false, err
	}

	switch {
	case group != nil && group.VideoPath != "":
		id, err := p.client.UploadVideo(ctx, token, group.VideoPath, caption)
		if err != nil {
			return false, fmt.Errorf("video publish failed: %w", err)
		}
		log.Printf("[FB] Video post success (id %s).", id)

	case group != nil && len(group.PhotoPaths) > 0:
		mediaIDs := make([]string, 0, len(group.PhotoPaths))
		for _, path := range group.PhotoPaths {
			id, err := p.client.UploadPhoto(ctx, token, path)
			if err != nil {
				log.Printf("[FB Error] Photo upload failed for %s: %v", path, err)
				continue
			}
			mediaIDs = append(mediaIDs, id)
		}
		if len(mediaIDs) == 0 {
			return false, fmt.Errorf("no photo of %d could be uploaded", len(group.PhotoPaths))
		}
		id, err := p.client.PostFeed(ctx, token, caption, mediaIDs)
		if err != nil {
			return false, fmt.Errorf("photo post failed: %w", err)
		}
		log.Printf("[FB] Photo post success with %d photo(s) (id %s).", len(mediaIDs), id)

	default:
		id, err := p.client.PostFeed(ctx, token, caption, nil)
		if err != nil {
			return false, fmt.Errorf("text post failed: %w", err)
		}
		log.Printf("[FB] Post success (id %s).", id)
	}
	return true, nil
}
