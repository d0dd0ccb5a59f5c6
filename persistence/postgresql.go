package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/wfunc/wordbot/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS room_records (
            id SERIAL PRIMARY KEY,
            record_id VARCHAR(64) UNIQUE NOT NULL,
            room_code VARCHAR(32) NOT NULL,
            used_words TEXT[] NOT NULL,
            players JSONB NOT NULL,
            closed_at TIMESTAMP NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_room_records_code ON room_records(room_code)`)
	return err
}

// SaveRoomRecord inserts record. Saving the same record id twice keeps the first.
func (p *PostgreSQL) SaveRoomRecord(ctx context.Context, record *models.RoomRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO room_records (record_id, room_code, used_words, players, closed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (record_id) DO NOTHING
    `, record.ID, record.RoomCode, pq.Array(record.UsedWords), players, record.ClosedAt)
	return err
}

func (p *PostgreSQL) ListRoomRecords(ctx context.Context, code string, limit int) ([]models.RoomRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT record_id, room_code, used_words, players, closed_at
        FROM room_records WHERE room_code = $1
        ORDER BY closed_at DESC LIMIT $2
    `, code, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RoomRecord
	for rows.Next() {
		var (
			r       models.RoomRecord
			players []byte
		)
		if err := rows.Scan(&r.ID, &r.RoomCode, pq.Array(&r.UsedWords), &players, &r.ClosedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &r.Players); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRecordNotFound
	}
	return records, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
