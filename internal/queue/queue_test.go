package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bjl-server/common/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	m.Run()
}

func TestQueueDone(t *testing.T) {
	var runs int32
	done := make(chan struct{})

	q := New(WithWorkers(1), WithRetryDelay(5*time.Millisecond))
	q.Register("noop", func(ctx context.Context, task *Task) (Result, error) {
		atomic.AddInt32(&runs, 1)
		close(done)
		return Done, nil
	})
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(&Task{Kind: "noop", Key: "k1"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
	if q.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", q.PendingCount())
	}
}

func TestQueueRetryExhausted(t *testing.T) {
	var runs int32
	dead := make(chan string, 1)

	q := New(
		WithWorkers(1),
		WithRetryDelay(5*time.Millisecond),
		WithMaxRetries(3),
		WithDeadLetter(func(ctx context.Context, task *Task, reason string, lastErr error) {
			dead <- reason
		}),
	)
	q.Register("flaky", func(ctx context.Context, task *Task) (Result, error) {
		atomic.AddInt32(&runs, 1)
		return Retry, errors.New("wallet timeout")
	})
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(&Task{Kind: "flaky", Key: "k2"})

	select {
	case reason := <-dead:
		if reason != "exhausted" {
			t.Fatalf("reason = %s, want exhausted", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("task never dead-lettered")
	}

	// 首次执行 + 3 次重试 = 4 次
	if got := atomic.LoadInt32(&runs); got != 4 {
		t.Fatalf("runs = %d, want 4", got)
	}
	if q.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", q.PendingCount())
	}
}

func TestQueueFatal(t *testing.T) {
	var runs int32
	dead := make(chan string, 1)

	q := New(
		WithWorkers(1),
		WithRetryDelay(5*time.Millisecond),
		WithDeadLetter(func(ctx context.Context, task *Task, reason string, lastErr error) {
			dead <- reason
		}),
	)
	q.Register("broken", func(ctx context.Context, task *Task) (Result, error) {
		atomic.AddInt32(&runs, 1)
		return Fatal, errors.New("duplicate transaction")
	})
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(&Task{Kind: "broken", Key: "k3"})

	select {
	case reason := <-dead:
		if reason != "fatal" {
			t.Fatalf("reason = %s, want fatal", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never dead-lettered")
	}

	// 致命错误不得重试
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestQueueUnknownKind(t *testing.T) {
	dead := make(chan string, 1)

	q := New(
		WithWorkers(1),
		WithDeadLetter(func(ctx context.Context, task *Task, reason string, lastErr error) {
			if !errors.Is(lastErr, ErrNoHandler) {
				t.Errorf("lastErr = %v, want ErrNoHandler", lastErr)
			}
			dead <- reason
		}),
	)
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(&Task{Kind: "nobody", Key: "k4"})

	select {
	case reason := <-dead:
		if reason != "fatal" {
			t.Fatalf("reason = %s, want fatal", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never dead-lettered")
	}
}

func TestQueueDelayedEnqueue(t *testing.T) {
	ran := make(chan time.Time, 1)

	q := New(WithWorkers(1))
	q.Register("later", func(ctx context.Context, task *Task) (Result, error) {
		ran <- time.Now()
		return Done, nil
	})
	q.Start(context.Background())
	defer q.Stop()

	start := time.Now()
	q.EnqueueDelayed(&Task{Kind: "later", Key: "k5"}, 300*time.Millisecond)

	select {
	case at := <-ran:
		if at.Sub(start) < 300*time.Millisecond {
			t.Fatalf("task ran too early: %v", at.Sub(start))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("delayed task never ran")
	}
}
