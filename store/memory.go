package store

import (
	"context"
	"strings"
	"sync"

	"github.com/qianlnk/werewolf-session/models"
)

// MemoryStore 进程内存储，按对局ID索引
type MemoryStore struct {
	sessions map[string]*models.Session
	codes    map[string]string // 房间码 -> 对局ID，仅未结束的对局
	mu       sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		codes:    make(map[string]string),
	}
}

// Create 保存新对局，版本号为 1
func (s *MemoryStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return ErrConflict
	}
	code := normalizeCode(session.JoinCode)
	if _, taken := s.codes[code]; taken {
		return ErrJoinCodeTaken
	}

	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	if session.Status != models.StatusFinished {
		s.codes[code] = session.ID
	}
	return nil
}

// Load 返回对局副本
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

// Save 版本号未变时覆盖保存
func (s *MemoryStore) Save(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[session.ID]
	if !exists {
		return ErrNotFound
	}
	if stored.Version != session.Version {
		return ErrConflict
	}

	session.Version++
	s.sessions[session.ID] = session.Clone()
	if session.Status == models.StatusFinished {
		delete(s.codes, normalizeCode(session.JoinCode))
	}
	return nil
}

// FindByJoinCode 按房间码查找未结束的对局
func (s *MemoryStore) FindByJoinCode(ctx context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.codes[normalizeCode(code)]
	if !exists {
		return nil, ErrNotFound
	}
	return s.sessions[id].Clone(), nil
}

// Delete 删除对局
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[sessionID]
	if !exists {
		return ErrNotFound
	}
	code := normalizeCode(stored.JoinCode)
	if s.codes[code] == sessionID {
		delete(s.codes, code)
	}
	delete(s.sessions, sessionID)
	return nil
}

// Close 无需释放资源
func (s *MemoryStore) Close() error {
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
