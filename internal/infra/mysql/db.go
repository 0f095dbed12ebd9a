package mysql

import (
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

var (
	db     *sql.DB
	once   sync.Once
	sqlxDB *sqlx.DB
)

// UseDB 注入启动阶段初始化好的 *sql.DB（见 common.InitDB）
func UseDB(d *sql.DB) {
	if d == nil {
		return
	}
	db = d
}

// DB 返回全局 *sql.DB 句柄
func DB() *sql.DB { return db }

// SQLX 在同一底层连接上惰性构建 *sqlx.DB，供 model 层使用
func SQLX() *sqlx.DB {
	once.Do(func() {
		if db != nil {
			sqlxDB = sqlx.NewDb(db, "mysql")
		}
	})
	return sqlxDB
}
