package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/storage/badger"
	"github.com/ternarybob/sitetest/internal/storage/sqlite"
)

// Manager wires the SQLite relational store (runs, action log, reports)
// and the Badger artifact store (screenshots) behind one interface.
type Manager struct {
	sqliteDB    *sqlite.SQLiteDB
	badgerDB    *badger.BadgerDB
	runs        interfaces.RunStorage
	actionLog   interfaces.ActionLogStorage
	reports     interfaces.ReportStorage
	screenshots interfaces.ScreenshotStorage
	logger      arbor.ILogger
}

// NewManager opens both stores and constructs the storage implementations
func NewManager(config *common.StorageConfig, logger arbor.ILogger) (interfaces.StorageManager, error) {
	sqliteDB, err := sqlite.NewSQLiteDB(logger, &config.SQLite)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
	}

	badgerDB, err := badger.NewBadgerDB(logger, &config.Badger)
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to initialize badger storage: %w", err)
	}

	return &Manager{
		sqliteDB:    sqliteDB,
		badgerDB:    badgerDB,
		runs:        sqlite.NewRunStorage(sqliteDB, logger),
		actionLog:   sqlite.NewActionLogStorage(sqliteDB, logger),
		reports:     sqlite.NewReportStorage(sqliteDB, logger),
		screenshots: badger.NewScreenshotStorage(badgerDB, logger),
		logger:      logger,
	}, nil
}

func (m *Manager) Runs() interfaces.RunStorage               { return m.runs }
func (m *Manager) ActionLog() interfaces.ActionLogStorage    { return m.actionLog }
func (m *Manager) Reports() interfaces.ReportStorage         { return m.reports }
func (m *Manager) Screenshots() interfaces.ScreenshotStorage { return m.screenshots }

// Close closes both stores
func (m *Manager) Close() error {
	var firstErr error
	if err := m.badgerDB.Close(); err != nil {
		firstErr = err
	}
	if err := m.sqliteDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
