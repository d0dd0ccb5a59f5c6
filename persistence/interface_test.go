package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/wfunc/wordbot/config"
	"github.com/wfunc/wordbot/models"
)

func TestOpen_DisabledReturnsNop(t *testing.T) {
	archive, err := Open(config.DatabaseConfig{Enabled: false, Driver: DriverGorm})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := archive.(Nop); !ok {
		t.Fatalf("Expected Nop archive, got %T", archive)
	}
	if err := archive.SaveRoomRecord(context.Background(), &models.RoomRecord{RoomCode: "ABCD"}); err != nil {
		t.Errorf("Nop save should succeed, got %v", err)
	}
	if _, err := archive.ListRoomRecords(context.Background(), "ABCD", 5); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Enabled: true, Driver: "mongo"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Expected ErrUnknownDriver, got %v", err)
	}
}
