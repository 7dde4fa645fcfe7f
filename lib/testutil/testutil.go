package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"tcaqs/internal/db"
	"tcaqs/internal/telemetry"
)

type StoreParams struct {
	Name string
	// if unspecified, a fresh file inside t.TempDir() is used
	DbPath string
}

type StoreResult struct {
	Store db.Store
	// Tel records everything the store reported.
	Tel *telemetry.Recorder
}

// SetupStore opens a store with the schema applied, the returned cleanup
// closes it and flushes test telemetry.
func SetupStore(t testing.TB, params StoreParams) (StoreResult, func()) {
	cleanupTel := telemetry.SetupForTesting(t, "test:"+params.Name)

	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = filepath.Join(t.TempDir(), "characters.db")
	}
	database, err := db.Config{File: dbpath}.OpenDB(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	tel := &telemetry.Recorder{}
	result := StoreResult{
		Store: db.NewStore(database, tel),
		Tel:   tel,
	}
	return result, func() {
		database.Close()
		cleanupTel()
	}
}
