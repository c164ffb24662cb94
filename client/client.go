// Package client implements the Client Session: it owns a UDP
// socket and the local player's entity, encodes predicted movement as
// PlayerMovementRequests, decodes server broadcasts, and drives
// reconciliation for the local player and interpolation for every other
// entity the server reports.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ancillary-agi-foundry/netcode/internal/logging"
	"github.com/ancillary-agi-foundry/netcode/internal/metrics"
	"github.com/ancillary-agi-foundry/netcode/pkg/entity"
	"github.com/ancillary-agi-foundry/netcode/pkg/interpolation"
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/prediction"
	"github.com/ancillary-agi-foundry/netcode/pkg/reconciliation"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
	"github.com/ancillary-agi-foundry/netcode/pkg/transport"
	"github.com/ancillary-agi-foundry/netcode/pkg/wire"
)

// State is the Client Session's connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateRegistering
	StateActive
	StateStopped
)

// DefaultRegistrationTimeout is how long Start waits in StateRegistering for
// the server's first broadcast before accepting the registration on its own
// and transitioning to StateActive anyway.
const DefaultRegistrationTimeout = 3 * time.Second

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Logger is the subset of the core's Logger collaborator the session uses.
type Logger interface {
	Info(component, message string)
	Warn(component, message string)
	Error(component, message string)
}

// Config configures a Client at construction time.
type Config struct {
	ServerAddr string
	PlayerID   uint32
	Entity     entity.NetworkedEntity
	Logger     Logger
	Metrics    *metrics.Collector

	ReconciliationThreshold  float32
	InterpolationDelay       time.Duration
	MaxInterpolationDistance float32

	// RegistrationTimeout bounds how long the session waits in
	// StateRegistering for the first broadcast before accepting the
	// registration on its own and transitioning to StateActive anyway.
	// Zero uses DefaultRegistrationTimeout.
	RegistrationTimeout time.Duration
}

// Client is the Client Session.
type Client struct {
	socket     *transport.Socket
	serverAddr *net.UDPAddr
	playerID   uint32
	logger     Logger

	localEntity entity.NetworkedEntity
	localRef    entity.NetworkedEntity

	store          *snapshot.Store
	prediction     *prediction.Engine
	reconciliation *reconciliation.Engine
	interpolation  *interpolation.Engine
	metrics        *metrics.Collector

	registrationTimeout time.Duration

	remoteMu sync.Mutex
	remote   map[uint32]entity.NetworkedEntity

	state  atomic.Int32
	cancel context.CancelFunc

	// LastRTT holds the most recently measured echo round-trip time.
	// Zero until the first ECHO_RESPONSE arrives.
	lastRTT atomic.Int64
}

// New binds an ephemeral UDP socket and constructs a Client ready to
// Start against serverAddr.
func New(cfg Config) (*Client, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		return nil, fmt.Errorf("client: resolve server address: %w", err)
	}
	socket, err := transport.Bind(0)
	if err != nil {
		return nil, fmt.Errorf("client: bind: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	store := snapshot.NewStore()
	predictionEngine := prediction.NewEngine(store)
	reconciliationEngine := reconciliation.NewEngine(store)
	interpolationEngine := interpolation.NewEngine(store)

	if cfg.ReconciliationThreshold > 0 {
		reconciliationEngine.SetThreshold(cfg.ReconciliationThreshold)
	}
	if cfg.InterpolationDelay > 0 {
		interpolationEngine.SetDelay(cfg.InterpolationDelay)
	}
	if cfg.MaxInterpolationDistance > 0 {
		interpolationEngine.SetMaxDistance(cfg.MaxInterpolationDistance)
	}

	registrationTimeout := cfg.RegistrationTimeout
	if registrationTimeout <= 0 {
		registrationTimeout = DefaultRegistrationTimeout
	}

	c := &Client{
		socket:              socket,
		serverAddr:          addr,
		playerID:            cfg.PlayerID,
		logger:              logger,
		localEntity:         cfg.Entity,
		store:               store,
		prediction:          predictionEngine,
		reconciliation:      reconciliationEngine,
		interpolation:       interpolationEngine,
		metrics:             cfg.Metrics,
		registrationTimeout: registrationTimeout,
		remote:              make(map[uint32]entity.NetworkedEntity),
	}
	c.localRef = cfg.Entity
	store.RegisterEntity(&c.localRef)

	reconciliationEngine.OnReconcile = func(uint32, netmath.Vector3, netmath.Vector3) {
		if c.metrics != nil {
			c.metrics.IncReconciliationFired()
		}
	}
	reconciliationEngine.OnSkipped = func(uint32, string) {
		if c.metrics != nil {
			c.metrics.IncReconciliationSkipped()
		}
	}

	return c, nil
}

// State returns the session's current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Start registers with the server (an initial movement request with
// sequence 0) and begins the receive loop. It returns once the socket is
// bound and the receive goroutine has started; it does not block waiting
// for the server's first reply. If no broadcast arrives before
// registrationTimeout elapses, the session accepts its own registration and
// transitions to StateActive anyway, since a lost or delayed first
// broadcast should never strand the session in StateRegistering forever.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Store(int32(StateRegistering))

	registerReq := wire.PlayerMovementRequest{PlayerID: c.playerID, InputSequenceNumber: 0}
	data := wire.EncodePacket(wire.MsgPlayerMovementRequest, 0, registerReq.Encode)
	if err := c.socket.Send(data, c.serverAddr); err != nil {
		return fmt.Errorf("client: send registration: %w", err)
	}

	go c.receiveLoop(ctx)
	go c.acceptRegistrationOnTimeout(ctx)
	return nil
}

// acceptRegistrationOnTimeout is the timeout-acceptance path out of
// StateRegistering: if the first broadcast never arrives (lost, delayed past
// the server's throttle interval, or never sent because the server never
// learned the player), the session still becomes Active once
// registrationTimeout elapses.
func (c *Client) acceptRegistrationOnTimeout(ctx context.Context) {
	timer := time.NewTimer(c.registrationTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		c.state.CompareAndSwap(int32(StateRegistering), int32(StateActive))
	}
}

// Stop transitions to Stopped and closes the socket; the receive goroutine
// observes ctx cancellation at its next timeout boundary and exits.
func (c *Client) Stop() {
	c.state.Store(int32(StateStopped))
	if c.cancel != nil {
		c.cancel()
	}
	c.socket.Close()
}

// SendInput predicts movement locally and transmits the resulting
// PlayerMovementRequest to the server.
func (c *Client) SendInput(movement netmath.Vector3, isJumping bool) error {
	seq, err := c.prediction.ApplyInput(&c.localRef, movement, isJumping)
	if err != nil {
		return fmt.Errorf("client: apply input: %w", err)
	}

	req := wire.PlayerMovementRequest{
		PlayerID:            c.playerID,
		Movement:            movement,
		VelocityY:           c.localEntity.VelocityY(),
		IsJumping:           isJumping,
		InputSequenceNumber: seq,
	}
	data := wire.EncodePacket(wire.MsgPlayerMovementRequest, seq, req.Encode)
	return c.socket.Send(data, c.serverAddr)
}

// SendEcho sends an ECHO_REQUEST carrying the current wall-clock time as
// Unix nanoseconds (not a monotonic clock reading), used to measure RTT
// before gameplay traffic starts.
func (c *Client) SendEcho() error {
	sendTime := time.Now().UnixNano()
	data := wire.EncodePacket(wire.MsgEchoRequest, 0, func(w *wire.Writer) {
		w.PutInt64(sendTime)
	})
	return c.socket.Send(data, c.serverAddr)
}

// LastRTT returns the most recently measured echo round trip, or zero if
// no ECHO_RESPONSE has arrived yet.
func (c *Client) LastRTT() time.Duration {
	return time.Duration(c.lastRTT.Load())
}

// UpdateRemote advances every remote entity's interpolation by delta. The
// local player's entity is not touched here: it already advances via
// prediction (SendInput) and reconciliation (Update).
func (c *Client) UpdateRemote(delta time.Duration) {
	c.remoteMu.Lock()
	entities := make([]entity.NetworkedEntity, 0, len(c.remote))
	for _, e := range c.remote {
		entities = append(entities, e)
	}
	c.remoteMu.Unlock()

	for _, e := range entities {
		c.interpolation.UpdateEntity(e, delta)
	}
}

// UpdateReconciliation drives the local player's reconciliation replay.
func (c *Client) UpdateReconciliation(delta time.Duration) {
	c.reconciliation.Update(delta)
}

// RemoteEntity returns the interpolated remote entity for playerID, if the
// client has seen a broadcast for it.
func (c *Client) RemoteEntity(playerID uint32) (entity.NetworkedEntity, bool) {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()
	e, ok := c.remote[playerID]
	return e, ok
}

func (c *Client) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, _, err := c.socket.Receive(transport.MaxUDPPayload, time.Second)
		if err != nil {
			if err == transport.ErrTimeout {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				c.logger.Warn("client", "receive error: "+err.Error())
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		c.handleDatagram(data)
	}
}

func (c *Client) handleDatagram(data []byte) {
	r := wire.NewReader(data)
	header, err := wire.ReadHeader(r)
	if err != nil {
		c.logger.Warn("client", "decode error: "+err.Error())
		return
	}

	switch header.Type {
	case wire.MsgPlayerStateUpdate:
		c.handlePlayerState(r)
	case wire.MsgEchoResponse:
		c.handleEchoResponse(r)
	case wire.MsgServerAnnouncement:
		c.handleAnnouncement(r)
	default:
		c.logger.Warn("client", fmt.Sprintf("unsupported message type %s", header.Type))
	}
}

func (c *Client) handlePlayerState(r *wire.Reader) {
	state, err := wire.DecodePlayerStatePacket(r)
	if err != nil {
		c.logger.Warn("client", "malformed player state: "+err.Error())
		return
	}

	if c.State() == StateRegistering {
		c.state.Store(int32(StateActive))
	}

	if state.PlayerID == c.playerID {
		c.reconciliation.Reconcile(c.localEntity, state.Position, state.LastProcessedInputSequence, time.Now(), state.IsJumping)
		return
	}

	c.getOrCreateRemote(state.PlayerID)
	c.interpolation.Record(state.PlayerID, state.Position, time.Now())
}

func (c *Client) getOrCreateRemote(playerID uint32) entity.NetworkedEntity {
	c.remoteMu.Lock()
	defer c.remoteMu.Unlock()
	e, ok := c.remote[playerID]
	if !ok {
		e = entity.NewPlayerEntity(playerID)
		c.remote[playerID] = e
	}
	return e
}

func (c *Client) handleEchoResponse(r *wire.Reader) {
	sendTimeNanos, err := r.Int64()
	if err != nil {
		c.logger.Warn("client", "malformed echo response: "+err.Error())
		return
	}
	c.lastRTT.Store(time.Now().UnixNano() - sendTimeNanos)
}

func (c *Client) handleAnnouncement(r *wire.Reader) {
	announcement, err := wire.DecodeServerAnnouncement(r)
	if err != nil {
		c.logger.Warn("client", "malformed announcement: "+err.Error())
		return
	}
	c.logger.Info("client", "server announcement: "+announcement.Text)
}
