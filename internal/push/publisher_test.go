package push

import (
	"context"
	"testing"

	"bjl-server/common"
	"bjl-server/common/logger"
	infrds "bjl-server/internal/infra/redis"

	goredis "github.com/redis/go-redis/v9"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	m.Run()
}

// fakeCache 以内存 map 模拟轮询所需的 Redis 读取
type fakeCache struct {
	data map[string]string
}

func (f *fakeCache) Get(_ context.Context, key string) *goredis.StringCmd {
	if v, ok := f.data[key]; ok {
		return goredis.NewStringResult(v, nil)
	}
	return goredis.NewStringResult("", goredis.Nil)
}

type recvFrame struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload"`
}

func mustRecv(t *testing.T, c *Connection) recvFrame {
	t.Helper()
	select {
	case msg := <-c.Send:
		var fr recvFrame
		if err := common.JsonUnmarshal(msg, &fr); err != nil {
			t.Fatalf("frame decode: %v (%s)", err, msg)
		}
		return fr
	default:
		t.Fatal("expected frame, channel empty")
		return recvFrame{}
	}
}

func mustNotRecv(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected frame: %s", msg)
	default:
	}
}

func TestPollCountdownSuppressesOutcomeAndPayout(t *testing.T) {
	r := NewRegistry()
	conn := addClient(r, 1, 100)
	p := NewPublisher(r)

	cache := &fakeCache{data: map[string]string{
		infrds.CountdownKey(1):       "10",
		infrds.TableOutcomeKey(1):    `{"round_no":"T1-S2-R5","table_id":1,"category":"player"}`,
		infrds.UserPayoutKey(1, 100): `{"round_no":"T1-S2-R5","user_id":100,"win_amount":"195.00","delta":"95.00"}`,
	}}

	// 倒计时进行中：只收到倒计时帧
	p.poll(context.Background(), cache)
	fr := mustRecv(t, conn)
	if fr.Message != "countdown" {
		t.Fatalf("message: %q", fr.Message)
	}
	if fr.Payload["remaining"] != "10" {
		t.Fatalf("remaining: %v", fr.Payload["remaining"])
	}
	mustNotRecv(t, conn)

	// 数值未变的重复 tick：不重发倒计时，也仍然不放行结果与派彩
	p.poll(context.Background(), cache)
	mustNotRecv(t, conn)

	// 倒计时缓存过期后才轮到结果与派彩
	delete(cache.data, infrds.CountdownKey(1))
	p.poll(context.Background(), cache)

	fr = mustRecv(t, conn)
	if fr.Message != "outcome" {
		t.Fatalf("message: %q", fr.Message)
	}
	if fr.Payload["round_no"] != "T1-S2-R5" {
		t.Fatalf("outcome round_no: %v", fr.Payload["round_no"])
	}

	fr = mustRecv(t, conn)
	if fr.Message != "payout" {
		t.Fatalf("message: %q", fr.Message)
	}
	if fr.Payload["win_amount"] != "195.00" {
		t.Fatalf("payout win_amount: %v", fr.Payload["win_amount"])
	}

	// 同一局去重：再轮询一轮不产生任何帧
	p.poll(context.Background(), cache)
	mustNotRecv(t, conn)
}

func TestPollCountdownResumesAfterDealing(t *testing.T) {
	r := NewRegistry()
	conn := addClient(r, 1, 0)
	p := NewPublisher(r)

	cache := &fakeCache{data: map[string]string{infrds.CountdownKey(1): "3"}}
	p.poll(context.Background(), cache)
	if fr := mustRecv(t, conn); fr.Message != "countdown" {
		t.Fatalf("message: %q", fr.Message)
	}

	// 滴答推进要逐秒可见
	cache.data[infrds.CountdownKey(1)] = "2"
	p.poll(context.Background(), cache)
	fr := mustRecv(t, conn)
	if fr.Payload["remaining"] != "2" {
		t.Fatalf("remaining: %v", fr.Payload["remaining"])
	}
}

func TestEncodeFrameEnvelope(t *testing.T) {
	msg, err := encodeFrame("countdown", map[string]any{"remaining": "5"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := common.JsonUnmarshal(msg, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("envelope keys: %v", raw)
	}
	if raw["code"] != float64(pushCodeOK) || raw["message"] != "countdown" {
		t.Fatalf("envelope: %v", raw)
	}
	if _, ok := raw["payload"].(map[string]any); !ok {
		t.Fatalf("payload: %v", raw["payload"])
	}
}
