package models

import (
	"strings"

	"gorm.io/gorm"
)

// GormRoomRecord 房间归档
type GormRoomRecord struct {
	gorm.Model
	RecordID  string             `gorm:"uniqueIndex;not null"`
	RoomCode  string             `gorm:"index;not null"`
	UsedWords string             `gorm:"type:text"`
	Players   []GormPlayerRecord `gorm:"foreignKey:RoomRecordID"`
}

// GormPlayerRecord 玩家战绩
type GormPlayerRecord struct {
	gorm.Model
	RoomRecordID uint   `gorm:"index;not null"`
	PeerID       int64  `gorm:"not null"`
	Nickname     string `gorm:"not null"`
	Roles        string
	Words        int `gorm:"default:0"`
	Subs         int `gorm:"default:0"`
	Longs        int `gorm:"default:0"`
	Hyphens      int `gorm:"default:0"`
	Multi        int `gorm:"default:0"`
	Lives        int `gorm:"default:0"`
}

const listSeparator = "\n"

// NewGormRoomRecord converts r into its table rows.
func NewGormRoomRecord(r *RoomRecord) *GormRoomRecord {
	g := &GormRoomRecord{
		RecordID:  r.ID,
		RoomCode:  r.RoomCode,
		UsedWords: strings.Join(r.UsedWords, listSeparator),
	}
	g.CreatedAt = r.ClosedAt
	for _, p := range r.Players {
		g.Players = append(g.Players, GormPlayerRecord{
			PeerID:   p.PeerID,
			Nickname: p.Nickname,
			Roles:    strings.Join(p.Roles, ","),
			Words:    p.Words,
			Subs:     p.Subs,
			Longs:    p.Longs,
			Hyphens:  p.Hyphens,
			Multi:    p.Multi,
			Lives:    p.Lives,
		})
	}
	return g
}

// RoomRecord converts the rows back.
func (g *GormRoomRecord) RoomRecord() RoomRecord {
	r := RoomRecord{
		ID:        g.RecordID,
		RoomCode:  g.RoomCode,
		UsedWords: splitList(g.UsedWords, listSeparator),
		ClosedAt:  g.CreatedAt,
	}
	for _, p := range g.Players {
		r.Players = append(r.Players, PlayerRecord{
			PeerID:   p.PeerID,
			Nickname: p.Nickname,
			Roles:    splitList(p.Roles, ","),
			Words:    p.Words,
			Subs:     p.Subs,
			Longs:    p.Longs,
			Hyphens:  p.Hyphens,
			Multi:    p.Multi,
			Lives:    p.Lives,
		})
	}
	return r
}

func splitList(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
