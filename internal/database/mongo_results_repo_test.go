package database

import (
	"context"
	"testing"
	"time"

	"tgfb-relay/internal/database/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoResultRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load decodes records in order", func(mt *mtest.T) {
		repo := NewMongoResultRepository(mt.DB)
		ns := mt.DB.Name() + "." + resultsCollectionName
		posted := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "telegram_id", Value: 100},
				{Key: "original_text", Value: "Hello world"},
				{Key: "translated_caption", Value: "Hai dunia"},
				{Key: "fb_status", Value: "Posted"},
				{Key: "date_posted", Value: posted},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "telegram_id", Value: 101},
				{Key: "fb_status", Value: "Posted"},
				{Key: "date_posted", Value: posted},
				{Key: "media_group_id", Value: "G1"},
			},
		))

		records, err := repo.Load(context.Background())
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, 100, records[0].SourceID)
		assert.Equal(mt, "Hai dunia", records[0].TranslatedCaption)
		assert.Equal(mt, models.StatusPosted, records[0].Status)
		assert.True(mt, posted.Equal(records[0].PostedAt))
		assert.Equal(mt, "G1", records[1].MediaGroupID)
	})

	mt.Run("append inserts", func(mt *mtest.T) {
		repo := NewMongoResultRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Append(context.Background(), []models.PublishRecord{
			{SourceID: 102, Status: models.StatusPosted, PostedAt: time.Now()},
		})
		require.NoError(mt, err)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
	})

	mt.Run("append reports write errors", func(mt *mtest.T) {
		repo := NewMongoResultRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key",
		}))

		err := repo.Append(context.Background(), []models.PublishRecord{{SourceID: 1, Status: models.StatusPosted}})
		assert.Error(mt, err)
	})

	mt.Run("append of nothing is a no-op", func(mt *mtest.T) {
		repo := NewMongoResultRepository(mt.DB)
		require.NoError(mt, repo.Append(context.Background(), nil))
		assert.Nil(mt, mt.GetStartedEvent())
	})
}
