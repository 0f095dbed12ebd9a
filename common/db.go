package common

import (
	"context"
	"fmt"
	"reflect"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

// goqu 仅用于动态条件查询（列表/筛选类接口）；
// 写路径与锁查询统一使用原生 SQL，避免 goqu 在某些 MySQL 版本上的兼容性问题。
var dialect = g.Dialect("mysql")

// QueryArg 动态列表查询参数
type QueryArg struct {
	Db     *sqlx.DB
	Table  string
	Fields []interface{}
	Ex     []exp.Expression        // where 条件
	Order  []exp.OrderedExpression // 排序
	Offset uint
	Limit  uint
}

// EnumFields 通过 db tag 枚举结构体的查询列，保证 SELECT 列与扫描目标一致
func EnumFields(obj interface{}) []interface{} {
	rt := reflect.TypeOf(obj)
	if rt.Kind() != reflect.Struct {
		return nil
	}

	var fields []interface{}
	for i := 0; i < rt.NumField(); i++ {
		if col := rt.Field(i).Tag.Get("db"); col != "" && col != "-" {
			fields = append(fields, col)
		}
	}
	return fields
}

// SelectAllCtx 按 QueryArg 拼装并执行列表查询
func SelectAllCtx(ctx context.Context, data interface{}, args QueryArg) error {
	if args.Db == nil {
		return fmt.Errorf("invalid db")
	}
	if args.Table == "" {
		return fmt.Errorf("invalid table")
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("invalid fields")
	}

	ds := dialect.Select(args.Fields...).From(args.Table)
	if len(args.Ex) > 0 {
		ds = ds.Where(args.Ex...)
	}
	if len(args.Order) > 0 {
		ds = ds.Order(args.Order...)
	}
	if args.Offset > 0 {
		ds = ds.Offset(args.Offset)
	}
	if args.Limit > 0 {
		ds = ds.Limit(args.Limit)
	}

	query, qargs, err := ds.ToSQL()
	if err != nil {
		return err
	}
	return args.Db.SelectContext(ctx, data, query, qargs...)
}
