package push

import "testing"

func addClient(r *Registry, tableID, userID int64) *Connection {
	c := &Connection{
		TableID:  tableID,
		UserID:   userID,
		Send:     make(chan []byte, 4),
		registry: r,
	}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
	return c
}

func TestRegistryTablesAndUsers(t *testing.T) {
	r := NewRegistry()
	addClient(r, 1, 100)
	addClient(r, 1, 100) // 同一用户多端
	addClient(r, 1, 0)   // 匿名旁观
	addClient(r, 2, 200)

	tables := r.Tables()
	if len(tables) != 2 {
		t.Fatalf("tables: %v", tables)
	}

	users := r.Users(1)
	if len(users) != 1 || users[0] != 100 {
		t.Fatalf("users of table 1: %v", users)
	}
	if got := r.Users(3); len(got) != 0 {
		t.Fatalf("users of empty table: %v", got)
	}
}

func TestBroadcastTableTargetsSubscribersOnly(t *testing.T) {
	r := NewRegistry()
	a := addClient(r, 1, 100)
	b := addClient(r, 1, 0)
	other := addClient(r, 2, 200)

	r.BroadcastTable(1, []byte("hello"))

	for _, c := range []*Connection{a, b} {
		select {
		case msg := <-c.Send:
			if string(msg) != "hello" {
				t.Fatalf("message: %q", msg)
			}
		default:
			t.Fatal("subscriber missed broadcast")
		}
	}
	select {
	case <-other.Send:
		t.Fatal("other table received broadcast")
	default:
	}
}

func TestSendToUser(t *testing.T) {
	r := NewRegistry()
	target := addClient(r, 1, 100)
	sameTable := addClient(r, 1, 101)
	anon := addClient(r, 1, 0)

	r.SendToUser(1, 100, []byte("payout"))

	select {
	case msg := <-target.Send:
		if string(msg) != "payout" {
			t.Fatalf("message: %q", msg)
		}
	default:
		t.Fatal("target user missed message")
	}
	for _, c := range []*Connection{sameTable, anon} {
		select {
		case <-c.Send:
			t.Fatal("non-target connection received message")
		default:
		}
	}
}
