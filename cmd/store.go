package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"tgfb-relay/internal/config"
	"tgfb-relay/internal/database"
)

// openStore opens the configured results store. The returned close func is never nil.
func openStore(ctx context.Context, sc config.StoreConfig) (database.ResultStore, func(), error) {
	if sc.DedupBackend != config.BackendMongo {
		return database.NewJSONStore(sc.ResultsPath), func() {}, nil
	}

	client, db, err := database.ConnectDB(ctx, sc.MongoDBURI, sc.MongoDBDatabase)
	if err != nil {
		return nil, func() {}, err
	}
	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}

	repo := database.NewMongoResultRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("failed to prepare results collection: %w", err)
	}
	return repo, closeFn, nil
}
