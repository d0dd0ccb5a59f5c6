// Package persistence stores the summary of rooms the bot has left.
package persistence

import (
	"context"
	"fmt"

	"github.com/wfunc/wordbot/config"
	"github.com/wfunc/wordbot/models"
)

const (
	DriverGorm = "gorm"
	DriverSQL  = "sql"
)

// Archive 房间归档接口
type Archive interface {
	SaveRoomRecord(ctx context.Context, record *models.RoomRecord) error
	// ListRoomRecords returns the newest records for code, newest first.
	ListRoomRecords(ctx context.Context, code string, limit int) ([]models.RoomRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrUnknownDriver  = fmt.Errorf("unknown database driver")
)

// Open returns the archive selected by cfg, or Nop when archiving is disabled.
func Open(cfg config.DatabaseConfig) (Archive, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	switch cfg.Driver {
	case DriverGorm:
		return NewGormPostgreSQL(cfg.Postgres.DSN())
	case DriverSQL:
		return NewPostgreSQL(cfg.Postgres.DSN())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Nop discards every record.
type Nop struct{}

func (Nop) SaveRoomRecord(context.Context, *models.RoomRecord) error { return nil }

func (Nop) ListRoomRecords(context.Context, string, int) ([]models.RoomRecord, error) {
	return nil, ErrRecordNotFound
}

func (Nop) Close() error { return nil }
