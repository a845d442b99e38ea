package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// DateLayout is the on-disk format of PublishRecord.PostedAt.
const DateLayout = "2006-01-02 15:04:05"

// Status is the outcome of a publish attempt.
type Status string

const (
	StatusPosted Status = "Posted"
	StatusFailed Status = "Failed"
)

// ErrMissingID is returned when a stored record carries no post id.
var ErrMissingID = errors.New("record has no telegram_id")

// PublishRecord stores information about a channel post republished to the page.
// Records are append-only and never mutated after creation.
type PublishRecord struct {
	SourceID          int       `bson:"telegram_id"`
	OriginalText      string    `bson:"original_text"`
	TranslatedCaption string    `bson:"translated_caption"`
	Status            Status    `bson:"fb_status"`
	PostedAt          time.Time `bson:"date_posted"`
	MediaGroupID      string    `bson:"media_group_id,omitempty"` // For media groups

	// rawDate keeps a date_posted that did not match DateLayout.
	rawDate string
}

// DatePosted returns the posting time in DateLayout, or the stored text
// when it could not be parsed.
func (r PublishRecord) DatePosted() string {
	if !r.PostedAt.IsZero() {
		return r.PostedAt.Format(DateLayout)
	}
	return r.rawDate
}

type publishRecordJSON struct {
	SourceID          *int   `json:"telegram_id,omitempty"`
	LegacySourceID    *int   `json:"sourceId,omitempty"`
	OriginalText      string `json:"original_text"`
	TranslatedCaption string `json:"translated_caption"`
	Status            Status `json:"fb_status"`
	DatePosted        string `json:"date_posted"`
	MediaGroupID      string `json:"media_group_id,omitempty"`
}

// MarshalJSON writes the record with the results file field names.
func (r PublishRecord) MarshalJSON() ([]byte, error) {
	id := r.SourceID
	aux := publishRecordJSON{
		SourceID:          &id,
		OriginalText:      r.OriginalText,
		TranslatedCaption: r.TranslatedCaption,
		Status:            r.Status,
		DatePosted:        r.DatePosted(),
		MediaGroupID:      r.MediaGroupID,
	}
	// Captions are plain text; keep <, > and & readable in the file.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(aux); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON accepts both telegram_id and sourceId as the id field.
func (r *PublishRecord) UnmarshalJSON(data []byte) error {
	var aux publishRecordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.SourceID != nil:
		r.SourceID = *aux.SourceID
	case aux.LegacySourceID != nil:
		r.SourceID = *aux.LegacySourceID
	default:
		return ErrMissingID
	}
	r.OriginalText = aux.OriginalText
	r.TranslatedCaption = aux.TranslatedCaption
	r.Status = aux.Status
	r.MediaGroupID = aux.MediaGroupID
	r.PostedAt, r.rawDate = time.Time{}, ""
	if aux.DatePosted != "" {
		t, err := time.ParseInLocation(DateLayout, aux.DatePosted, time.Local)
		if err != nil {
			r.rawDate = aux.DatePosted
		} else {
			r.PostedAt = t
		}
	}
	return nil
}
