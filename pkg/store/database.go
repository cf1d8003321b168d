package store

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectorFunc opens the database the alarm store lives in
type ConnectorFunc func() (*gorm.DB, error)

// NewSQLiteConnector opens the sqlite database at path. Use "file::memory:"
// for a throwaway database.
func NewSQLiteConnector(path string) ConnectorFunc {
	return func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open database %s: %w", path, err)
		}

		sqldb, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(1)

		return db, nil
	}
}
