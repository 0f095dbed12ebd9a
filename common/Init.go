package common

import (
	"time"

	"bjl-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// InitDB 建立主库连接并设置连接池参数，失败直接 Fatal
// 结算路径依赖行锁，会话级 innodb_lock_wait_timeout 压到 5s，避免慢事务堆积
func InitDB(dsn string, maxIdleConn, maxOpenConn int) *sqlx.DB {
	db, err := sqlx.Connect("mysql", dsn+"&parseTime=true&loc=Local")
	if err != nil {
		logger.Fatalf("InitDB sqlx.Connect", zap.Error(err))
	}

	db.SetMaxOpenConns(maxOpenConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(2 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if _, err := db.Exec("SET SESSION innodb_lock_wait_timeout = ?", 5); err != nil {
		logger.Warn("SET innodb_lock_wait_timeout failed", zap.Error(err))
	}

	if err := db.Ping(); err != nil {
		logger.Fatalf("InitDB ping failed:", zap.Error(err))
	}

	return db
}
