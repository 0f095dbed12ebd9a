package service

import (
	"context"
	"sync"
	"testing"

	"bjl-server/common"
	"bjl-server/common/logger"
	infmysql "bjl-server/internal/infra/mysql"
	"bjl-server/internal/queue"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	mysqlerr "github.com/go-sql-driver/mysql"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	m.Run()
}

var (
	settleMockOnce sync.Once
	settleMock     sqlmock.Sqlmock
)

// 结算执行器通过全局 DB 句柄取连接，这里注入一个 sqlmock 实例，
// 本包内走全局句柄的用例共享它（期望按用例顺序逐个消费）
func settleMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	settleMockOnce.Do(func() {
		db, mock, err := sqlmock.New()
		if err != nil {
			panic(err)
		}
		infmysql.UseDB(db)
		settleMock = mock
	})
	if infmysql.SQLX() == nil {
		t.Fatal("mock db not injected before first SQLX use")
	}
	return settleMock
}

func settleTask(t *testing.T, roundID int64) *queue.Task {
	t.Helper()
	payload, err := common.JsonMarshal(settlePayload{RoundID: roundID})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return &queue.Task{Kind: TaskRoundSettle, Key: "T1-S2-R5", Payload: payload, TraceID: "trace-1"}
}

// 庄 K+6=6 点，闲 4+4=8 点：闲赢
const settleTestCardList = `{"1":"13|r","2":"6|h","4":"4|f","5":"4|m"}`

func settleRoundRow(id int64, status, isSettled int8) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "table_id", "shoe_number", "round_number", "game_type", "card_list",
		"banker_point", "player_point", "banker_pair", "player_pair", "lucky_total", "lucky_size",
		"dragon7", "panda8", "category", "category_str", "status", "status_str", "is_settled",
		"trace_id", "created_at", "updated_at",
	}).AddRow(id, 1, 2, 5, 3, settleTestCardList,
		6, 8, 0, 0, 0, 0,
		0, 0, 2, "player", status, "outcome_computed", isSettled,
		"trace-1", 0, 0)
}

// 第一层幂等：is_settled=1 的局直接跳过，不再有任何写入
func TestSettleSkipsAlreadySettledRound(t *testing.T) {
	mock := settleMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, is_settled FROM rounds WHERE id = \? FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "is_settled"}).AddRow(3, 1))
	mock.ExpectRollback()

	q := queue.New()
	res, err := NewSettler(q).HandleRoundSettle(context.Background(), settleTask(t, 7))
	if err != nil || res != queue.Done {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if n := q.PendingCount(); n != 0 {
		t.Fatalf("redelivery must not enqueue downstream tasks, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// 第二层幂等：settlement_log 唯一键冲突按已结算处理
func TestSettleSkipsDuplicateSettlementLog(t *testing.T) {
	mock := settleMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, is_settled FROM rounds WHERE id = \? FOR UPDATE`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "is_settled"}).AddRow(2, 0))
	mock.ExpectQuery(`SELECT id, table_id, .+ FROM rounds WHERE id = \?`).
		WithArgs(int64(8)).
		WillReturnRows(settleRoundRow(8, 2, 0))
	mock.ExpectExec(`INSERT INTO settlement_log`).
		WillReturnError(&mysqlerr.MySQLError{Number: 1062, Message: "Duplicate entry '8' for key 'uk_round_id'"})
	mock.ExpectRollback()

	q := queue.New()
	res, err := NewSettler(q).HandleRoundSettle(context.Background(), settleTask(t, 8))
	if err != nil || res != queue.Done {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if n := q.PendingCount(); n != 0 {
		t.Fatalf("duplicate settlement must not enqueue downstream tasks, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

// 第三层幂等：settle_status=1 条件更新命中 0 行的注单不入账。
// 期望序列里没有 wallet_ledger / customers 语句，出现即失败。
func TestSettleSkipsBetsSettledConcurrently(t *testing.T) {
	mock := settleMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, is_settled FROM rounds WHERE id = \? FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "is_settled"}).AddRow(2, 0))
	mock.ExpectQuery(`SELECT id, table_id, .+ FROM rounds WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(settleRoundRow(9, 2, 0))
	mock.ExpectExec(`INSERT INTO settlement_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT bill_no, .+ FROM bets WHERE round_id = \? AND settle_status = 1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"bill_no", "round_id", "table_id", "user_id", "platform_id", "platform_user_id",
			"user_name", "wager_type", "bet_amount", "is_exempt", "bet_time", "settle_status",
			"currency", "trace_id",
		}).AddRow("B1", 9, 1, 100, 1, "u100", "user100", 6, 100.0, 0, 1700000000000, 1, "CNY", "trace-1"))
	mock.ExpectExec(`UPDATE bets SET win_amount = .+ WHERE bill_no = \? AND settle_status = 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE settlement_log SET total_bets = \?`).
		WithArgs(0, 0.0, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE rounds SET is_settled = 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO round_audit`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	q := queue.New()
	res, err := NewSettler(q).HandleRoundSettle(context.Background(), settleTask(t, 9))
	if err != nil || res != queue.Done {
		t.Fatalf("res=%v err=%v", res, err)
	}
	// 已结算注单跳过入账后仍要推进钱包通知与洗码任务
	if n := q.PendingCount(); n != 2 {
		t.Fatalf("downstream tasks: want 2 got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
