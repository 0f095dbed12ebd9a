package helper

import "github.com/shopspring/decimal"

// TrimDecimal 金额统一输出为四舍五入后的两位小数字符串
// 注意不能用截断，0.005 级别的精度差会导致对账不平
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(2)
}
