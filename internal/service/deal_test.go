package service

import (
	"context"
	"database/sql"
	"testing"

	"bjl-server/internal/state"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockTx(t *testing.T) (*sqlx.Tx, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	tx, err := sqlx.NewDb(db, "mysql").BeginTxx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx, mock
}

func gameTableRow(runState string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "game_type", "run_state", "shoe_number", "round_number",
		"countdown_sec", "status", "created_at", "updated_at",
	}).AddRow(1, "T1", 3, runState, 2, 5, 30, 1, 0, 0)
}

func TestCloseBettingOnDealFlipsBettingTable(t *testing.T) {
	tx, mock := newMockTx(t)
	mock.ExpectQuery(`SELECT .+ FROM game_tables WHERE id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(gameTableRow(state.TableBetting))
	mock.ExpectExec(`UPDATE game_tables SET run_state = \?`).
		WithArgs(state.TableDealing, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := closeBettingOnDeal(context.Background(), tx, 1); err != nil {
		t.Fatalf("closeBettingOnDeal: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCloseBettingOnDealLeavesNonBettingState(t *testing.T) {
	// 已封盘/洗牌中的台桌不再改写运行状态（倒计时归零可能先一步封盘）
	for _, rs := range []string{state.TableDealing, state.TableShuffling} {
		tx, mock := newMockTx(t)
		mock.ExpectQuery(`SELECT .+ FROM game_tables WHERE id = \? FOR UPDATE`).
			WithArgs(int64(1)).
			WillReturnRows(gameTableRow(rs))

		if err := closeBettingOnDeal(context.Background(), tx, 1); err != nil {
			t.Fatalf("state %q: %v", rs, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("state %q: %v", rs, err)
		}
	}
}

func TestCloseBettingOnDealMissingTable(t *testing.T) {
	tx, mock := newMockTx(t)
	mock.ExpectQuery(`SELECT .+ FROM game_tables WHERE id = \? FOR UPDATE`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	if err := closeBettingOnDeal(context.Background(), tx, 99); err != nil {
		t.Fatalf("missing table must not fail the deal: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
