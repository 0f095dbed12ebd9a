package api

import (
	"bjl-server/internal/queue"
	"bjl-server/internal/service"
)

// 控制器依赖的服务实例。通过 InitServices 在启动时注入，
// 测试可直接替换为桩实现。
var (
	betSvc   service.BetService
	dealSvc  service.DealService
	tableSvc service.TableService
	voidSvc  service.VoidService
)

// InitServices 初始化控制器层使用的业务服务
func InitServices(q *queue.Queue) {
	betSvc = service.NewBetService(q)
	dealSvc = service.NewDealService(q)
	tableSvc = service.NewTableService(q)
	voidSvc = service.NewVoidService(q)
}
