package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bjl-server/common"
	"bjl-server/internal/config"
	"bjl-server/internal/queue"
	"bjl-server/internal/wallet"
)

// walletStub 起一个假钱包端点，记录收到的关联ID并固定应答
func walletStub(t *testing.T, respBody string) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var txIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req wallet.SettleRequest
		_ = common.JsonUnmarshal(body, &req)
		mu.Lock()
		txIDs = append(txIDs, req.TransactionID)
		mu.Unlock()
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), txIDs...)
	}
}

func voidTask(t *testing.T) *queue.Task {
	t.Helper()
	payload, err := common.JsonMarshal(voidPayload{
		RoundID:     9,
		RoundNo:     "T1-S2-R5",
		TableID:     1,
		ShoeNumber:  2,
		RoundNumber: 5,
		Reason:      "dealer error",
		Users: []voidUserEntry{
			{UserID: 100, UserName: "user100", BetAmount: "100.00", Adjust: "100.00", BetTime: 1700000000000},
			{UserID: 101, UserName: "user101", BetAmount: "50.00", Adjust: "-45.00", BetTime: 1700000000000},
		},
	})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	return &queue.Task{Kind: TaskWalletVoid, Key: "T1-S2-R5", Payload: payload, TraceID: "trace-1"}
}

func TestHandleWalletVoidNotifiesEachUser(t *testing.T) {
	srv, received := walletStub(t, `{"code":200}`)

	cfg := &config.Config{}
	cfg.Wallet.Endpoint = srv.URL
	config.SetCurrent(cfg)

	rc := NewReconciler(wallet.NewClient())
	res, err := rc.HandleWalletVoid(context.Background(), voidTask(t))
	if err != nil || res != queue.Done {
		t.Fatalf("res=%v err=%v", res, err)
	}

	got := received()
	if len(got) != 2 {
		t.Fatalf("notified users: %v", got)
	}
	want := map[string]bool{
		"BJL_VOID_T1_S2_R5_U100": true,
		"BJL_VOID_T1_S2_R5_U101": true,
	}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("correlation id: %q", id)
		}
	}
}

func TestHandleWalletVoidTreatsDuplicateAsDelivered(t *testing.T) {
	// 重投递：钱包已处理过该关联ID，任务按已送达结束
	srv, received := walletStub(t, `{"code":400,"error_code":"DUPLICATE_TRANSACTION"}`)

	cfg := &config.Config{}
	cfg.Wallet.Endpoint = srv.URL
	config.SetCurrent(cfg)

	rc := NewReconciler(wallet.NewClient())
	res, err := rc.HandleWalletVoid(context.Background(), voidTask(t))
	if err != nil || res != queue.Done {
		t.Fatalf("res=%v err=%v", res, err)
	}
	if got := received(); len(got) != 2 {
		t.Fatalf("notified users: %v", got)
	}
}
