package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/qianlnk/werewolf-session/models"
)

// SQLiteStore 基于SQLite的存储，每个对局一行JSON文档
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 创建SQLite存储
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接：":memory:" 库才能共享，写入也被串行化
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return store, nil
}

// migrate 建表
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			join_code TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			document TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_code
			ON sessions(join_code) WHERE status != 'finished'`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("执行迁移失败: %w\n%s", err, m)
		}
	}

	return nil
}

// Close 关闭数据库连接
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create 插入新对局，版本号为 1
func (s *SQLiteStore) Create(ctx context.Context, session *models.Session) error {
	session.Version = 1
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化对局失败: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, join_code, status, version, document, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, normalizeCode(session.JoinCode), string(session.Status), session.Version, string(doc), time.Now().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.ExtendedCode {
			case sqlite3.ErrConstraintPrimaryKey:
				return ErrConflict
			case sqlite3.ErrConstraintUnique:
				return ErrJoinCodeTaken
			}
		}
		return fmt.Errorf("插入对局失败: %w", err)
	}
	return nil
}

// Load 按ID读取对局
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, document FROM sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// Save 版本号匹配时才写入
func (s *SQLiteStore) Save(ctx context.Context, session *models.Session) error {
	next := *session
	next.Version = session.Version + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("序列化对局失败: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET join_code = ?, status = ?, version = ?, document = ?, updated_at = ?
		 WHERE session_id = ? AND version = ?`,
		normalizeCode(session.JoinCode), string(session.Status), next.Version, string(doc), time.Now().UTC(),
		session.ID, session.Version)
	if err != nil {
		return fmt.Errorf("更新对局失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新对局失败: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, session.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("检查对局失败: %w", err)
		}
		return ErrConflict
	}

	session.Version = next.Version
	return nil
}

// FindByJoinCode 按房间码查找未结束的对局
func (s *SQLiteStore) FindByJoinCode(ctx context.Context, code string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version, document FROM sessions WHERE join_code = ? AND status != 'finished'`, normalizeCode(code))
	return scanSession(row)
}

// Delete 删除对局
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("删除对局失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("删除对局失败: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var (
		version int64
		doc     string
	)
	if err := row.Scan(&version, &doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取对局失败: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("反序列化对局失败: %w", err)
	}
	session.Version = version
	if session.NightBallot == nil {
		session.NightBallot = models.Ballot{}
	}
	if session.DayBallot == nil {
		session.DayBallot = models.Ballot{}
	}
	return &session, nil
}
