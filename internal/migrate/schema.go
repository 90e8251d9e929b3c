// 包 migrate：统计库结构迁移，SQL 文件随二进制嵌入
package migrate

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"survey-map/internal/logger"
)

//go:embed migrations
var migrations embed.FS

// 迁移版本记录表，与统计表同库
const versionTable = "_relay_schema_migrations"

// 背景：首次运行自动创建统计表，重复执行无副作用
// 约束：已是最新版本时返回 nil；不调用 m.Close，连接池由调用方持有
func EnsureSchema(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	dst, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: versionTable})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", dst)
	if err != nil {
		return err
	}
	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.L().Debug("schema_up_to_date")
	case err != nil:
		return err
	default:
		v, _, _ := m.Version()
		logger.L().Info("schema_migrated", "version", v)
	}
	return nil
}
