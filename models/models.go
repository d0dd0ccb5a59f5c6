package models

import (
	"time"
)

// RoomRecord is the archived summary of a room the bot left.
type RoomRecord struct {
	ID        string         `json:"id"`
	RoomCode  string         `json:"room_code"`
	UsedWords []string       `json:"used_words"`
	Players   []PlayerRecord `json:"players"`
	ClosedAt  time.Time      `json:"closed_at"`
}

// PlayerRecord is one player's final stats in a room.
type PlayerRecord struct {
	PeerID   int64    `json:"peer_id"`
	Nickname string   `json:"nickname"`
	Roles    []string `json:"roles"`
	Words    int      `json:"words"`
	Subs     int      `json:"subs"`
	Longs    int      `json:"longs"`
	Hyphens  int      `json:"hyphens"`
	Multi    int      `json:"multi"`
	Lives    int      `json:"lives"`
}
