package model

import (
	"context"
	"database/sql"
	"time"

	"bjl-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Customer 用户表
// 用户唯一标识 = platform_id + platform_user_id
// 金额使用 DECIMAL(18,2) 存储，Go 层以 float64 表示
// status: 1=正常 2=禁用
type Customer struct {
	UserID         int64   `db:"user_id"`          // 自增ID（内部使用）
	PlatformID     int8    `db:"platform_id"`      // 平台ID
	PlatformUserID string  `db:"platform_user_id"` // 平台用户ID
	Username       string  `db:"username"`         // 用户名（可选）
	Balance        float64 `db:"balance"`          // 余额（非负）
	RebateBalance  float64 `db:"rebate_balance"`   // 洗码费可用余额
	RebateTotal    float64 `db:"rebate_total"`     // 洗码费累计
	IsExempt       int8    `db:"is_exempt"`        // 默认免佣模式: 0=标准 1=免佣
	Status         int8    `db:"status"`           // 状态: 1=正常 2=禁用
	CreatedAt      int64   `db:"created_at"`       // 创建时间（13位毫秒时间戳）
	UpdatedAt      int64   `db:"updated_at"`       // 更新时间（13位毫秒时间戳）
}

const customerColumns = "user_id, platform_id, platform_user_id, username, balance, rebate_balance, rebate_total, is_exempt, status, created_at, updated_at"

// GetCustomerByPlatformUser 根据平台ID和平台用户ID查询用户
func GetCustomerByPlatformUser(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID string) (*Customer, error) {
	query := "SELECT " + customerColumns + ` FROM customers
	          WHERE platform_id = ? AND platform_user_id = ?
	          LIMIT 1`

	var user Customer
	err := db.GetContext(ctx, &user, query, platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get customer by platform user failed",
			zap.Int8("platform_id", platformID),
			zap.String("platform_user_id", platformUserID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetCustomerByID 根据内部ID查询用户
func GetCustomerByID(ctx context.Context, db *sqlx.DB, userID int64) (*Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE user_id = ? LIMIT 1"

	var user Customer
	err := db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get customer by id failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetCustomerForUpdate 根据内部ID加锁查询（FOR UPDATE），必须在事务中调用。
// 余额读改写的唯一入口在这把行锁之内。
func GetCustomerForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Customer, error) {
	query := "SELECT " + customerColumns + " FROM customers WHERE user_id = ? FOR UPDATE"

	var user Customer
	err := sqlx.GetContext(ctx, exec, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get customer for update failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// GetCustomerByPlatformUserForUpdate 按平台用户加锁查询（FOR UPDATE），必须在事务中调用
func GetCustomerByPlatformUserForUpdate(ctx context.Context, exec sqlx.ExtContext, platformID int8, platformUserID string) (*Customer, error) {
	query := "SELECT " + customerColumns + ` FROM customers
	          WHERE platform_id = ? AND platform_user_id = ?
	          LIMIT 1 FOR UPDATE`

	var user Customer
	err := sqlx.GetContext(ctx, exec, &user, query, platformID, platformUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get customer by platform user for update failed",
			zap.Int8("platform_id", platformID),
			zap.String("platform_user_id", platformUserID),
			zap.Error(err))
		return nil, err
	}

	return &user, nil
}

// Insert 插入用户
func (u *Customer) Insert(ctx context.Context, db *sqlx.DB) error {
	now := time.Now().UnixMilli()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `INSERT INTO customers (platform_id, platform_user_id, username, balance, rebate_balance, rebate_total, is_exempt, status, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := db.ExecContext(ctx, query,
		u.PlatformID, u.PlatformUserID, u.Username, u.Balance, u.RebateBalance, u.RebateTotal, u.IsExempt, u.Status, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		logger.Error("insert customer failed",
			zap.Int8("platform_id", u.PlatformID),
			zap.String("platform_user_id", u.PlatformUserID),
			zap.Error(err))
		return err
	}

	id, _ := result.LastInsertId()
	u.UserID = id

	logger.Info("customer created",
		zap.Int64("user_id", u.UserID),
		zap.Int8("platform_id", u.PlatformID),
		zap.String("platform_user_id", u.PlatformUserID))

	return nil
}

// UpdateCustomerBalance 更新用户余额
func UpdateCustomerBalance(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := "UPDATE customers SET balance = ?, updated_at = ? WHERE user_id = ?"

	_, err := exec.ExecContext(ctx, query, newBalance, now, userID)
	if err != nil {
		logger.Error("update customer balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
		return err
	}

	return nil
}

// AddCustomerRebate 累加洗码费（可用余额与累计同步增长）
func AddCustomerRebate(ctx context.Context, exec sqlx.ExtContext, userID int64, amount float64) error {
	now := time.Now().UnixMilli()
	query := "UPDATE customers SET rebate_balance = rebate_balance + ?, rebate_total = rebate_total + ?, updated_at = ? WHERE user_id = ?"

	_, err := exec.ExecContext(ctx, query, amount, amount, now, userID)
	if err != nil {
		logger.Error("add customer rebate failed",
			zap.Int64("user_id", userID),
			zap.Float64("amount", amount),
			zap.Error(err))
		return err
	}

	return nil
}

// GetOrCreateCustomer 获取或创建用户（自动注册）
func GetOrCreateCustomer(ctx context.Context, db *sqlx.DB, platformID int8, platformUserID, username string) (*Customer, error) {
	user, err := GetCustomerByPlatformUser(ctx, db, platformID, platformUserID)
	if err == nil {
		return user, nil
	}

	if err == sql.ErrNoRows {
		newUser := &Customer{
			PlatformID:     platformID,
			PlatformUserID: platformUserID,
			Username:       username,
			Balance:        0.00,
			Status:         1,
		}

		if err := newUser.Insert(ctx, db); err != nil {
			// 并发创建撞唯一索引时回查
			if IsDuplicateKeyError(err) {
				logger.Info("concurrent customer creation detected, retry query",
					zap.Int8("platform_id", platformID),
					zap.String("platform_user_id", platformUserID))
				return GetCustomerByPlatformUser(ctx, db, platformID, platformUserID)
			}
			return nil, err
		}

		return newUser, nil
	}

	return nil, err
}

// GetCustomerBalance 获取用户余额（非锁查询）
func GetCustomerBalance(ctx context.Context, db *sqlx.DB, userID int64) (float64, error) {
	query := "SELECT balance FROM customers WHERE user_id = ? LIMIT 1"

	var balance float64
	if err := db.GetContext(ctx, &balance, query, userID); err != nil {
		return 0, err
	}
	return balance, nil
}
