// Package transport implements the UDP I/O loop: binding a socket,
// per-datagram send/receive with a bounded timeout, and the
// address-keyed client table with inactivity eviction that the server
// session uses to track who it has heard from recently.
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReceiveBufferSize is the minimum receive buffer size a UDP socket needs.
const ReceiveBufferSize = 2048

// MaxUDPPayload is the largest datagram this transport will attempt to
// read in one call, safely above any single packet this codec produces.
const MaxUDPPayload = 2048

// DefaultClientTimeout is how long a client record may go unseen before an
// inactivity sweep evicts it.
const DefaultClientTimeout = 60 * time.Second

// ErrTimeout is returned by Receive when no datagram arrived within the
// requested deadline. It is not a transport error: callers should treat it
// as "nothing to do this iteration", not log it as a failure.
var ErrTimeout = errors.New("transport: receive timeout")

// Socket wraps a bound UDP connection with a timeout-bounded Receive, so a
// caller's receive loop can observe a shutdown flag at a predictable
// cadence instead of blocking forever.
type Socket struct {
	conn *net.UDPConn
}

// Bind opens a UDP socket on port. port == 0 lets the OS choose an
// ephemeral port, which the client session uses.
func Bind(port int) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the underlying socket. Persistent I/O errors during
// shutdown are suppressed by the caller's receive loop, not here.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Send writes data to addr. A send failure is never fatal to the caller's
// loop; it is returned so the caller can log it and continue.
func (s *Socket) Send(data []byte, addr *net.UDPAddr) error {
	_, err := s.conn.WriteToUDP(data, addr)
	return err
}

// Receive reads up to maxSize bytes with the given timeout. A timeout
// expiring with no datagram returns ErrTimeout, not an error: it is the
// expected steady state of a receive loop polling with a bounded timeout.
func (s *Socket) Receive(maxSize int, timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	buf := make([]byte, maxSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, err
	}
	return buf[:n], addr, nil
}

// ClientRecord tracks one remote peer the server has heard from.
type ClientRecord struct {
	Address           *net.UDPAddr
	ClientID          string // stringified address, the table key
	CorrelationID     string // uuid, for log correlation across a session
	LastSeen          time.Time
	LastInputSequence uint32
}

// ClientTable is the address-keyed map of known clients, guarded by a
// single mutex. Broadcast takes a snapshot of the client set under the
// lock and sends outside it, so a slow remote peer can never block the
// receive path.
type ClientTable struct {
	mu      sync.Mutex
	clients map[string]*ClientRecord
}

// NewClientTable constructs an empty ClientTable.
func NewClientTable() *ClientTable {
	return &ClientTable{clients: make(map[string]*ClientRecord)}
}

// Upsert records addr as seen just now, creating a ClientRecord on first
// contact. It returns the (possibly newly created) record.
func (t *ClientTable) Upsert(addr *net.UDPAddr, now time.Time) *ClientRecord {
	key := addr.String()

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.clients[key]
	if !ok {
		rec = &ClientRecord{
			Address:       addr,
			ClientID:      key,
			CorrelationID: uuid.NewString(),
		}
		t.clients[key] = rec
	}
	rec.LastSeen = now
	return rec
}

// Get returns the record for clientID, if any.
func (t *ClientTable) Get(clientID string) (*ClientRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.clients[clientID]
	return rec, ok
}

// Remove deletes clientID from the table.
func (t *ClientTable) Remove(clientID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, clientID)
}

// Snapshot returns a new slice holding every currently known client
// record, safe to range over and send to without holding the table's lock.
// The slice is a copy; the records it points at are shared with the table.
func (t *ClientTable) Snapshot() []*ClientRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*ClientRecord, 0, len(t.clients))
	for _, rec := range t.clients {
		out = append(out, rec)
	}
	return out
}

// EvictInactive removes every record whose LastSeen predates now-timeout,
// returning the evicted client IDs.
func (t *ClientTable) EvictInactive(now time.Time, timeout time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []string
	for id, rec := range t.clients {
		if now.Sub(rec.LastSeen) > timeout {
			delete(t.clients, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len reports the number of currently known clients.
func (t *ClientTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}
