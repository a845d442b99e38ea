package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tgfb-relay/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int, text string) models.PublishRecord {
	return models.PublishRecord{
		SourceID:          id,
		OriginalText:      text,
		TranslatedCaption: "kapsyen " + text,
		Status:            models.StatusPosted,
		PostedAt:          time.Date(2026, 10, 17, 9, 30, 0, 0, time.Local),
	}
}

func TestJSONStore_LoadMissingFile(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "results.json"))

	records, err := store.Load(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONStore_AppendKeepsPriorRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")
	store := NewJSONStore(path)

	require.NoError(t, store.Append(ctx, []models.PublishRecord{record(100, "first")}))
	require.NoError(t, store.Append(ctx, []models.PublishRecord{record(101, "second"), record(102, "third")}))
	require.NoError(t, store.Append(ctx, nil))

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int{100, 101, 102}, []int{records[0].SourceID, records[1].SourceID, records[2].SourceID})
	assert.Equal(t, "first", records[0].OriginalText)
	assert.Equal(t, "kapsyen first", records[0].TranslatedCaption)
	assert.True(t, records[0].PostedAt.Equal(record(100, "first").PostedAt))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	store := NewJSONStore(path)
	rec := record(100, "Harga <emas> naik")
	rec.MediaGroupID = "G1"
	require.NoError(t, store.Append(context.Background(), []models.PublishRecord{rec}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "\n    {\n        \"telegram_id\": 100,")
	assert.Contains(t, content, `"original_text": "Harga <emas> naik"`)
	assert.Contains(t, content, `"fb_status": "Posted"`)
	assert.Contains(t, content, `"date_posted": "2026-10-17 09:30:00"`)
	assert.Contains(t, content, `"media_group_id": "G1"`)
	assert.NotContains(t, content, "sourceId")

	var generic []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
}

func TestJSONStore_ReadsLegacyRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	legacy := `[
    {"telegram_id": 7, "original_text": "a", "translated_caption": "b", "fb_status": "Failed", "date_posted": "2025-01-02 03:04:05"},
    {"sourceId": 8, "original_text": "c", "translated_caption": "d", "fb_status": "Posted", "date_posted": "2025-01-02 03:04:06"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	records, err := NewJSONStore(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 7, records[0].SourceID)
	assert.Equal(t, models.StatusFailed, records[0].Status)
	assert.Equal(t, 8, records[1].SourceID)
	assert.Equal(t, 6, records[1].PostedAt.Second())
}

func TestJSONStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "results.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"telegram_id": 1, "orig`), 0o644))

	store := NewJSONStore(path)
	store.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	records, err := store.Load(ctx)
	assert.Empty(t, records)
	assert.True(t, errors.Is(err, ErrCorruptStore))

	require.NoError(t, store.Append(ctx, []models.PublishRecord{record(5, "fresh")}))

	quarantined, err := os.ReadFile(path + ".corrupt-20261017T120000")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(quarantined), `[{"telegram_id": 1`))

	records, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].SourceID)
}

func TestJSONStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	records, err := NewJSONStore(path).Load(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONStore_MalformedEntryDoesNotHideOthers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.json")
	content := `[
    {"telegram_id": 1, "original_text": "satu", "translated_caption": "x", "fb_status": "Posted", "date_posted": "2024-05-01 10:00:00"},
    {"telegram_id": 2, "original_text": "dua", "translated_caption": "y", "fb_status": "Posted", "date_posted": "2024-05-01T10:00:00"},
    {"original_text": "tiada id", "translated_caption": "z", "fb_status": "Posted"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	store := NewJSONStore(path)

	records, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].SourceID)
	assert.Equal(t, 2, records[1].SourceID)
	assert.Equal(t, "dua", records[1].OriginalText)
	assert.True(t, records[1].PostedAt.IsZero())
	assert.Equal(t, "2024-05-01T10:00:00", records[1].DatePosted())

	require.NoError(t, store.Append(ctx, []models.PublishRecord{record(3, "tiga")}))

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date_posted": "2024-05-01T10:00:00"`)
	assert.Contains(t, string(raw), `"original_text": "tiada id"`)

	var generic []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Len(t, generic, 4)

	records, err = store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{records[0].SourceID, records[1].SourceID, records[2].SourceID})
}
