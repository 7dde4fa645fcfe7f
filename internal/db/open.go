package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// Config selects where characters are stored. A non-empty Url opens a remote
// libsql database, otherwise File is opened with the embedded sqlite driver.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// OpenDB opens the database and applies the schema.
func (config Config) OpenDB(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	var err error
	if config.Url != "" {
		db, err = config.openRemote()
	} else {
		db, err = config.openFile()
	}
	if err != nil {
		return nil, err
	}

	for _, stmt := range schemaStatements() {
		_, err = db.ExecContext(ctx, stmt)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func (config Config) openRemote() (*sql.DB, error) {
	dsn, err := url.Parse(config.Url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if config.AuthToken != "" {
		query := dsn.Query()
		query.Set("authToken", config.AuthToken)
		dsn.RawQuery = query.Encode()
	}
	return sql.Open("libsql", dsn.String())
}

func (config Config) openFile() (*sql.DB, error) {
	if config.File == "" {
		return nil, fmt.Errorf("a path was not specified")
	}

	dbpath := config.File
	if dbpath != ":memory:" {
		_, statErr := os.Stat(dbpath)
		if os.IsNotExist(statErr) {
			err := os.MkdirAll(filepath.Dir(dbpath), 0755)
			if err != nil {
				return nil, err
			}
			f, err := os.Create(dbpath)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", dbpath)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers, a single connection avoids SQLITE_BUSY
	// under the concurrent ingest workers.
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("PRAGMA synchronous=NORMAL")
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
