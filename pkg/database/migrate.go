package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// DefaultMigrationsTable 迁移版本表；与同库其他服务的 schema_migrations 分开
const DefaultMigrationsTable = "yukyubor_schema_migrations"

// schemaFS 寄件 / 带件匹配服务的表结构迁移，随二进制发布
//
//go:embed migrations/*.sql
var schemaFS embed.FS

func schemaSource() (source.Driver, error) {
	return iofs.New(schemaFS, "migrations")
}

// RunMigrations 将内嵌迁移应用到最新版本，版本记录写入 table（为空时用 DefaultMigrationsTable）
func RunMigrations(db *sql.DB, table string, logger *zap.Logger) error {
	if table == "" {
		table = DefaultMigrationsTable
	}

	src, err := schemaSource()
	if err != nil {
		return fmt.Errorf("加载内嵌迁移失败: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("创建 postgres 迁移驱动失败: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移失败: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("表结构已是最新", zap.String("table", table))
	case err != nil:
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", verr)
	}
	if dirty {
		// dirty 需人工修复后再启动
		return fmt.Errorf("迁移版本 %d 处于 dirty 状态", version)
	}
	logger.Info("数据库迁移完成", zap.Uint("version", version), zap.String("table", table))
	return nil
}
