// Package stager downloads the media of a post into local scratch storage.
package stager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"tgfb-relay/internal/source"
)

// Downloader materializes one media reference at a local path.
type Downloader interface {
	Download(ctx context.Context, ref source.MediaRef, path string) error
}

// MediaGroup is the materialized media of one post.
type MediaGroup struct {
	GroupKey   string
	PhotoPaths []string
	VideoPath  string
}

// Empty reports whether nothing was staged.
func (g *MediaGroup) Empty() bool {
	return g == nil || (len(g.PhotoPaths) == 0 && g.VideoPath == "")
}

// Files returns every staged file path.
func (g *MediaGroup) Files() []string {
	if g == nil {
		return nil
	}
	files := append([]string(nil), g.PhotoPaths...)
	if g.VideoPath != "" {
		files = append(files, g.VideoPath)
	}
	return files
}

// Cleanup removes every staged file. Missing files are not an error.
func (g *MediaGroup) Cleanup() error {
	var errs []error
	for _, path := range g.Files() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stager downloads post media into dir.
type Stager struct {
	downloader Downloader
	dir        string
}

// New creates a Stager writing into dir, which is created on demand.
func New(downloader Downloader, dir string) *Stager {
	return &Stager{downloader: downloader, dir: dir}
}

// Dir returns the scratch directory.
func (s *Stager) Dir() string { return s.dir }

// Stage downloads the media of post in order. A reference that fails to
// download is logged and dropped; the rest of the group is still staged.
// Only the first video that downloads is kept.
func (s *Stager) Stage(ctx context.Context, post source.Post) (*MediaGroup, error) {
	group := &MediaGroup{GroupKey: post.GroupKey}
	if !post.HasMedia() {
		return group, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return group, fmt.Errorf("failed to create media dir: %w", err)
	}

	logPrefix := fmt.Sprintf("[Stage Post:%d]", post.AnchorID)
	for i, ref := range post.Media {
		if ref.Kind == source.MediaVideo && group.VideoPath != "" {
			log.Printf("%s Extra video from message %d ignored", logPrefix, ref.MessageID)
			continue
		}
		if err := ctx.Err(); err != nil {
			return group, err
		}

		path := filepath.Join(s.dir, FileName(ref, i))
		if err := s.downloader.Download(ctx, ref, path); err != nil {
			log.Printf("%s Dropping %s from message %d: %v", logPrefix, ref.Kind, ref.MessageID, err)
			continue
		}
		switch ref.Kind {
		case source.MediaVideo:
			group.VideoPath = path
		case source.MediaPhoto:
			group.PhotoPaths = append(group.PhotoPaths, path)
		}
	}
	return group, nil
}

// FileName builds a collision-free name from the message id, kind and position.
func FileName(ref source.MediaRef, index int) string {
	return fmt.Sprintf("%d_%s_%d%s", ref.MessageID, ref.Kind, index, extension(ref))
}

func extension(ref source.MediaRef) string {
	if ref.Kind == source.MediaPhoto {
		return ".jpg"
	}
	switch strings.ToLower(ref.MimeType) {
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".mp4"
	}
}
