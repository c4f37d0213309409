package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "yukyubor/backend/pkg/errors"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User     UserRepository
	Location LocationRepository
	Request  RequestRepository
	Response ResponseRepository
	Chat     ChatRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		User:     NewUserRepo(db),
		Location: NewLocationRepo(db),
		Request:  NewRequestRepo(db),
		Response: NewResponseRepo(db),
		Chat:     NewChatRepo(db),
	}
}

// Transaction 在同一数据库事务中执行 fn，fn 收到绑定到该事务的 Repository
// fn 返回错误时整体回滚。未绑定数据库连接（单元测试中手工组装）时直接执行 fn。
// 死锁与序列化失败被数据库中止的事务统一报告为 ErrStaleState。
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
	if isTxAborted(err) {
		return pkgerrors.ErrStaleState
	}
	return err
}

// PostgreSQL 中止事务的 SQLSTATE：40001 serialization_failure、40P01 deadlock_detected
var abortedStates = map[string]bool{"40001": true, "40P01": true}

func isTxAborted(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && abortedStates[pgErr.Code]
}
