// Package store 对局持久化，使用乐观并发控制
package store

import (
	"context"
	"errors"

	"github.com/qianlnk/werewolf-session/models"
)

var (
	ErrNotFound      = errors.New("对局不存在")
	ErrConflict      = errors.New("对局版本冲突")
	ErrJoinCodeTaken = errors.New("房间码已被占用")
)

// Store 引擎依赖的读-改-写接口
//
// Load 返回独立副本，调用方修改后交给 Save。
// 仅当存储中的版本号仍等于 session.Version 时 Save 才成功，成功后 session.Version 加一。
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Load(ctx context.Context, sessionID string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	FindByJoinCode(ctx context.Context, code string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
