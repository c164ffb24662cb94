package transport

import (
	"net"
	"testing"
	"time"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	server, err := Bind(0)
	if err != nil {
		t.Fatalf("bind server: %v", err)
	}
	defer server.Close()

	client, err := Bind(0)
	if err != nil {
		t.Fatalf("bind client: %v", err)
	}
	defer client.Close()

	serverAddr := server.LocalAddr().(*net.UDPAddr)
	if err := client.Send([]byte("hello"), serverAddr); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, addr, err := server.Receive(MaxUDPPayload, time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", data)
	}
	if addr == nil {
		t.Fatal("expected non-nil sender address")
	}
}

func TestReceiveTimesOutWithoutError(t *testing.T) {
	server, err := Bind(0)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer server.Close()

	_, _, err = server.Receive(MaxUDPPayload, 10*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestClientTableUpsertAndGet(t *testing.T) {
	table := NewClientTable()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4000}
	now := time.Now()

	rec := table.Upsert(addr, now)
	if rec.ClientID != addr.String() {
		t.Fatalf("expected client ID %q, got %q", addr.String(), rec.ClientID)
	}
	if rec.CorrelationID == "" {
		t.Fatal("expected a correlation ID to be assigned")
	}

	again := table.Upsert(addr, now.Add(time.Second))
	if again.CorrelationID != rec.CorrelationID {
		t.Fatal("expected re-upsert of the same address to reuse the existing record")
	}

	got, ok := table.Get(addr.String())
	if !ok || got != rec {
		t.Fatal("expected Get to return the same record")
	}
}

func TestClientTableEvictInactive(t *testing.T) {
	table := NewClientTable()
	stale := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4001}
	fresh := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4002}

	base := time.Now()
	table.Upsert(stale, base.Add(-time.Minute))
	table.Upsert(fresh, base)

	evicted := table.EvictInactive(base, 10*time.Second)
	if len(evicted) != 1 || evicted[0] != stale.String() {
		t.Fatalf("expected only the stale client evicted, got %v", evicted)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 surviving client, got %d", table.Len())
	}
	if _, ok := table.Get(fresh.String()); !ok {
		t.Fatal("expected the fresh client to survive eviction")
	}
}

func TestClientTableSnapshotIsIndependentOfTable(t *testing.T) {
	table := NewClientTable()
	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 4003}
	table.Upsert(addr, time.Now())

	snap := table.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 record in snapshot, got %d", len(snap))
	}

	table.Remove(addr.String())
	if len(snap) != 1 {
		t.Fatal("expected snapshot to be unaffected by subsequent table mutation")
	}
	if table.Len() != 0 {
		t.Fatal("expected table to reflect the removal")
	}
}
