package database

import (
	"context"

	"tgfb-relay/internal/database/models"
)

// ResultStore is the durable, append-only log of publish attempts.
type ResultStore interface {
	// Load returns every stored record. A missing store yields no records and no error.
	Load(ctx context.Context) ([]models.PublishRecord, error)
	// Append adds records after the existing ones; prior records are never altered.
	Append(ctx context.Context, records []models.PublishRecord) error
}
