package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLedger persists the audit trail with Gorm + SQLite.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger opens (or creates) the ledger database at path and migrates
// the audit schema.
func NewGormLedger(path string) (*GormLedger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm ledger: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&auditRecordModel{}); err != nil {
		return nil, fmt.Errorf("gorm ledger: migrate failed: %w", err)
	}
	return &GormLedger{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (l *GormLedger) Append(ctx context.Context, rec Record) error {
	m := toModel(rec)
	return l.db.WithContext(ctx).Create(&m).Error
}

func (l *GormLedger) Records(ctx context.Context, signalID string) ([]Record, error) {
	var models []auditRecordModel
	err := l.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(models))
	for _, m := range models {
		out = append(out, fromModel(m))
	}
	return out, nil
}

func (l *GormLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
