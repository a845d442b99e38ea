package stager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tgfb-relay/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDownloader writes the file id as content and fails for ids listed in fail.
type fakeDownloader struct {
	fail  map[string]bool
	calls []string
}

func (f *fakeDownloader) Download(_ context.Context, ref source.MediaRef, path string) error {
	f.calls = append(f.calls, ref.FileID)
	if f.fail[ref.FileID] {
		return errors.New("telegram file gone")
	}
	return os.WriteFile(path, []byte(ref.FileID), 0o644)
}

func TestStage_PreservesOrderAndDropsFailures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	dl := &fakeDownloader{fail: map[string]bool{"p2": true}}
	s := New(dl, dir)

	post := source.Post{
		AnchorID: 101,
		GroupKey: "G1",
		Media: []source.MediaRef{
			{Kind: source.MediaPhoto, FileID: "p1", MessageID: 101},
			{Kind: source.MediaPhoto, FileID: "p2", MessageID: 102},
			{Kind: source.MediaPhoto, FileID: "p3", MessageID: 103},
		},
	}

	group, err := s.Stage(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "G1", group.GroupKey)
	require.Equal(t, []string{
		filepath.Join(dir, "101_photo_0.jpg"),
		filepath.Join(dir, "103_photo_2.jpg"),
	}, group.PhotoPaths)
	assert.Empty(t, group.VideoPath)
	assert.Equal(t, []string{"p1", "p2", "p3"}, dl.calls)

	require.NoError(t, group.Cleanup())
	for _, p := range group.PhotoPaths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestStage_KeepsFirstWorkingVideo(t *testing.T) {
	dl := &fakeDownloader{fail: map[string]bool{"v1": true}}
	s := New(dl, t.TempDir())

	post := source.Post{
		AnchorID: 7,
		Media: []source.MediaRef{
			{Kind: source.MediaVideo, FileID: "v1", MessageID: 7},
			{Kind: source.MediaVideo, FileID: "v2", MimeType: "video/quicktime", MessageID: 8},
			{Kind: source.MediaVideo, FileID: "v3", MessageID: 9},
			{Kind: source.MediaPhoto, FileID: "p1", MessageID: 10},
		},
	}

	group, err := s.Stage(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "8_video_1.mov"), group.VideoPath)
	assert.Len(t, group.PhotoPaths, 1)
	assert.Equal(t, []string{"v1", "v2", "p1"}, dl.calls)
	assert.Len(t, group.Files(), 2)
}

func TestStage_NoMedia(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	s := New(&fakeDownloader{}, dir)

	group, err := s.Stage(context.Background(), source.Post{AnchorID: 1, Text: "text only"})
	require.NoError(t, err)
	assert.True(t, group.Empty())
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanup_MissingFilesIgnored(t *testing.T) {
	g := &MediaGroup{PhotoPaths: []string{filepath.Join(t.TempDir(), "gone.jpg")}}
	assert.NoError(t, g.Cleanup())

	var nilGroup *MediaGroup
	assert.NoError(t, nilGroup.Cleanup())
	assert.True(t, nilGroup.Empty())
}
