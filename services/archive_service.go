package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/models"
	"github.com/wfunc/wordbot/persistence"
	"github.com/wfunc/wordbot/room"
)

// RoomSource is the part of a room actor that gets archived.
type RoomSource interface {
	Code() string
	UsedWords(ctx context.Context) ([]string, error)
	Players(ctx context.Context) (map[int64]room.PlayerStats, error)
}

type ArchiveService struct {
	archive persistence.Archive
	now     func() time.Time
}

func NewArchiveService(archive persistence.Archive) *ArchiveService {
	return &ArchiveService{archive: archive, now: time.Now}
}

// Snapshot reads the room state into a record. It must run before the actor
// is closed.
func (s *ArchiveService) Snapshot(ctx context.Context, src RoomSource) (*models.RoomRecord, error) {
	used, err := src.UsedWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", src.Code(), err)
	}
	players, err := src.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", src.Code(), err)
	}

	record := &models.RoomRecord{
		ID:        uuid.NewString(),
		RoomCode:  src.Code(),
		UsedWords: used,
		ClosedAt:  s.now().UTC(),
	}
	for peerID, p := range players {
		record.Players = append(record.Players, models.PlayerRecord{
			PeerID:   peerID,
			Nickname: p.Nickname,
			Roles:    p.Roles,
			Words:    p.Words,
			Subs:     p.Subs,
			Longs:    p.Longs,
			Hyphens:  p.Hyphens,
			Multi:    p.Multi,
			Lives:    p.Lives,
		})
	}
	sort.Slice(record.Players, func(i, j int) bool {
		return record.Players[i].PeerID < record.Players[j].PeerID
	})
	return record, nil
}

// ArchiveRoom snapshots src and saves it.
func (s *ArchiveService) ArchiveRoom(ctx context.Context, src RoomSource) error {
	record, err := s.Snapshot(ctx, src)
	if err != nil {
		return err
	}
	if err := s.archive.SaveRoomRecord(ctx, record); err != nil {
		return fmt.Errorf("archive %s: %w", record.RoomCode, err)
	}
	logger.Log.Infow("room archived", "room", record.RoomCode, "players", len(record.Players), "words", len(record.UsedWords))
	return nil
}

// History returns up to limit archived records for code.
func (s *ArchiveService) History(ctx context.Context, code string, limit int) ([]models.RoomRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.archive.ListRoomRecords(ctx, code, limit)
}

func (s *ArchiveService) Close() error {
	return s.archive.Close()
}
