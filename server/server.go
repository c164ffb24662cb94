// Package server implements the Server Session: the authoritative side
// of the simulation. It owns a UDP socket, runs a dedicated receive loop,
// validates and applies player movement requests through a bounded worker
// pool, and periodically broadcasts authoritative state to every
// registered client.
//
// The receive goroutine never mutates entity state directly, it only
// decodes and enqueues; a fixed pool of workers drains the queue and
// applies inputs to the authoritative entities.
package server

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
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
	"github.com/ancillary-agi-foundry/netcode/pkg/snapshot"
	"github.com/ancillary-agi-foundry/netcode/pkg/transport"
	"github.com/ancillary-agi-foundry/netcode/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// WorkerPoolSize is the number of goroutines draining the inbound message
// queue and applying validated inputs to authoritative entities.
const WorkerPoolSize = 16

// MessageQueueSize bounds how many decoded-but-unapplied inputs the
// receive loop can buffer before it blocks.
const MessageQueueSize = 1024

// ReceiveTimeout bounds each blocking receive call so shutdown latency is
// predictable.
const ReceiveTimeout = time.Second

// inboundMessage is a decoded datagram waiting to be applied by a worker.
type inboundMessage struct {
	msgType wire.MessageType
	from    *net.UDPAddr
	payload []byte
}

// playerState tracks one authoritative player: its entity and the
// bookkeeping the server needs for sequence enforcement and broadcast
// throttling.
type playerState struct {
	mu                    sync.Mutex
	entity                entity.NetworkedEntity
	ref                   entity.NetworkedEntity
	lastProcessedInputSeq uint32
	lastBroadcastAt       time.Time
}

// Logger is the subset of the core's Logger collaborator the session uses.
type Logger interface {
	Info(component, message string)
	Warn(component, message string)
	Error(component, message string)
}

// Server is the Server Session.
type Server struct {
	socket  *transport.Socket
	clients *transport.ClientTable
	store   *snapshot.Store
	logger  Logger
	metrics *metrics.Collector

	broadcastInterval time.Duration
	clientTimeout     time.Duration

	playersMu sync.RWMutex
	players   map[uint32]*playerState

	messageQueue chan inboundMessage

	running atomic.Bool
	cancel  context.CancelFunc
}

// Config configures a Server at construction time.
type Config struct {
	Port              int
	BroadcastInterval time.Duration
	ClientTimeout     time.Duration
	Logger            Logger
	Metrics           *metrics.Collector
}

// New binds a UDP socket on cfg.Port and constructs a Server ready to run.
func New(cfg Config) (*Server, error) {
	socket, err := transport.Bind(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("server: bind: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	metricsCollector := cfg.Metrics
	if metricsCollector == nil {
		metricsCollector = metrics.New()
	}
	broadcastInterval := cfg.BroadcastInterval
	if broadcastInterval <= 0 {
		broadcastInterval = 16 * time.Millisecond
	}
	clientTimeout := cfg.ClientTimeout
	if clientTimeout <= 0 {
		clientTimeout = transport.DefaultClientTimeout
	}

	return &Server{
		socket:            socket,
		clients:           transport.NewClientTable(),
		store:             snapshot.NewStore(),
		logger:            logger,
		metrics:           metricsCollector,
		broadcastInterval: broadcastInterval,
		clientTimeout:     clientTimeout,
		players:           make(map[uint32]*playerState),
		messageQueue:      make(chan inboundMessage, MessageQueueSize),
	}, nil
}

// RegisterPlayer makes playerID's entity authoritative on this server.
// Callers must register a player before the server will apply or
// broadcast its movement.
func (s *Server) RegisterPlayer(playerID uint32, ent entity.NetworkedEntity) {
	s.playersMu.Lock()
	defer s.playersMu.Unlock()
	ps := &playerState{entity: ent, ref: ent}
	s.players[playerID] = ps
	s.store.RegisterEntity(&ps.ref)
}

// LocalAddr returns the bound socket's local address.
func (s *Server) LocalAddr() net.Addr {
	return s.socket.LocalAddr()
}

// Run starts the receive loop, the worker pool, and the maintenance and
// broadcast loops, blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)
	defer s.running.Store(false)

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < WorkerPoolSize; i++ {
		g.Go(func() error {
			s.workerLoop(gctx)
			return nil
		})
	}
	g.Go(func() error {
		s.receiveLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.maintenanceLoop(gctx)
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(gctx)
		return nil
	})

	<-ctx.Done()
	g.Wait()
	return s.socket.Close()
}

// Stop signals every session loop to exit.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// receiveLoop blocks on socket reads with a bounded timeout, decodes
// packets, and enqueues them for the worker pool. It never mutates entity
// state directly.
func (s *Server) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, addr, err := s.socket.Receive(transport.MaxUDPPayload, ReceiveTimeout)
		if err != nil {
			if err == transport.ErrTimeout {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				s.logger.Warn("server", "receive error: "+err.Error())
				time.Sleep(10 * time.Millisecond)
				continue
			}
		}

		s.clients.Upsert(addr, time.Now())

		msgType, payload, err := decodeEnvelope(data)
		if err != nil {
			s.metrics.IncDecodeError()
			s.logger.Warn("server", "decode error from "+addr.String()+": "+err.Error())
			continue
		}

		select {
		case s.messageQueue <- inboundMessage{msgType: msgType, from: addr, payload: payload}:
		case <-ctx.Done():
			return
		}
	}
}

// decodeEnvelope reads the packet header and returns the remaining payload.
func decodeEnvelope(data []byte) (wire.MessageType, []byte, error) {
	r := wire.NewReader(data)
	header, err := wire.ReadHeader(r)
	if err != nil {
		return 0, nil, err
	}
	return header.Type, data[wire.HeaderSize:], nil
}

// workerLoop drains the message queue and applies each decoded message to
// authoritative state. Multiple workers run concurrently; each message is
// only ever processed by one worker, and per-player state is guarded by
// that player's own mutex so workers never race on the same entity.
func (s *Server) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.messageQueue:
			s.handleMessage(msg)
		}
	}
}

func (s *Server) handleMessage(msg inboundMessage) {
	switch msg.msgType {
	case wire.MsgPlayerMovementRequest:
		s.handleMovementRequest(msg)
	case wire.MsgEchoRequest:
		s.handleEchoRequest(msg)
	default:
		s.logger.Warn("server", fmt.Sprintf("unsupported message type %s from %s", msg.msgType, msg.from))
	}
}

// handleMovementRequest validates and applies a player's movement input:
// looks up the player, drops the message if the player is unknown or the
// sequence number is stale, otherwise applies the movement and broadcasts
// if the throttle interval has elapsed.
func (s *Server) handleMovementRequest(msg inboundMessage) {
	req, err := wire.DecodePlayerMovementRequest(wire.NewReader(msg.payload))
	if err != nil {
		s.metrics.IncDecodeError()
		s.logger.Warn("server", "malformed movement request: "+err.Error())
		return
	}

	s.playersMu.RLock()
	player, ok := s.players[req.PlayerID]
	s.playersMu.RUnlock()
	if !ok {
		s.metrics.IncMissingEntityDrop()
		s.logger.Warn("server", fmt.Sprintf("movement request for unknown player %d", req.PlayerID))
		return
	}

	player.mu.Lock()
	defer player.mu.Unlock()

	if req.InputSequenceNumber <= player.lastProcessedInputSeq {
		s.metrics.IncDroppedStaleSequence()
		return
	}

	player.entity.Move(req.Movement)
	if req.IsJumping {
		player.entity.Jump()
	}
	player.entity.Update()
	player.lastProcessedInputSeq = req.InputSequenceNumber

	if time.Since(player.lastBroadcastAt) >= s.broadcastInterval {
		s.broadcastPlayerState(req.PlayerID, player)
		player.lastBroadcastAt = time.Now()
	}
}

func (s *Server) handleEchoRequest(msg inboundMessage) {
	r := wire.NewReader(msg.payload)
	sendTimeNanos, err := r.Int64()
	if err != nil {
		s.metrics.IncDecodeError()
		return
	}

	data := wire.EncodePacket(wire.MsgEchoResponse, 0, func(w *wire.Writer) {
		w.PutInt64(sendTimeNanos)
	})
	if err := s.socket.Send(data, msg.from); err != nil {
		s.logger.Warn("server", "echo response send failed: "+err.Error())
	}
}

// broadcastPlayerState sends player's current authoritative state to
// every registered client, outside any lock that would block receive.
func (s *Server) broadcastPlayerState(playerID uint32, player *playerState) {
	packet := wire.PlayerStatePacket{
		PlayerID:                   playerID,
		Position:                   player.entity.Position(),
		VelocityY:                  player.entity.VelocityY(),
		IsJumping:                  player.entity.IsJumping(),
		LastProcessedInputSequence: player.lastProcessedInputSeq,
	}
	data := wire.EncodePacket(wire.MsgPlayerStateUpdate, player.lastProcessedInputSeq, packet.Encode)
	s.broadcast(data)
}

// broadcastLoop periodically pushes every player's latest state even when
// no new input arrived, so remote clients' interpolation history keeps
// advancing.
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.playersMu.RLock()
			ids := make([]uint32, 0, len(s.players))
			for id := range s.players {
				ids = append(ids, id)
			}
			s.playersMu.RUnlock()

			for _, id := range ids {
				s.playersMu.RLock()
				player := s.players[id]
				s.playersMu.RUnlock()

				player.mu.Lock()
				if time.Since(player.lastBroadcastAt) >= s.broadcastInterval {
					s.broadcastPlayerState(id, player)
					player.lastBroadcastAt = time.Now()
				}
				player.mu.Unlock()
			}
		}
	}
}

// Announce implements the SERVER_ANNOUNCEMENT admin operation: it encodes
// and broadcasts a message to every client outside the per-player
// broadcast-interval throttle.
func (s *Server) Announce(msg string) error {
	announcement := wire.ServerAnnouncement{Text: msg}
	data := wire.EncodePacket(wire.MsgServerAnnouncement, 0, announcement.Encode)
	s.broadcast(data)
	return nil
}

// SetPlayerPosition implements the admin teleport operation:
// it sets the entity's position directly and forces an immediate
// broadcast carrying the player's current last_processed_input_sequence,
// so clients perform no replay for that packet.
func (s *Server) SetPlayerPosition(playerID uint32, position netmath.Vector3, isJumping bool) error {
	s.playersMu.RLock()
	player, ok := s.players[playerID]
	s.playersMu.RUnlock()
	if !ok {
		return fmt.Errorf("server: unknown player %d", playerID)
	}

	player.mu.Lock()
	defer player.mu.Unlock()

	player.entity.SetPosition(position)
	if isJumping {
		player.entity.Jump()
	}
	s.broadcastPlayerState(playerID, player)
	player.lastBroadcastAt = time.Now()
	return nil
}

func (s *Server) broadcast(data []byte) {
	clients := s.clients.Snapshot()
	for _, c := range clients {
		if err := s.socket.Send(data, c.Address); err != nil {
			s.logger.Warn("server", "broadcast send to "+c.ClientID+" failed: "+err.Error())
		}
	}
	s.metrics.IncBroadcastSent()
}

// maintenanceLoop periodically evicts inactive clients and
// prunes aged snapshots.
func (s *Server) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			evicted := s.clients.EvictInactive(now, s.clientTimeout)
			for _, id := range evicted {
				s.logger.Info("server", "evicted inactive client "+id)
			}
			s.metrics.SetActiveClients(s.clients.Len())
			if pruned := s.store.Prune(now, time.Second); pruned > 0 {
				s.metrics.AddSnapshotsPruned(pruned)
			}
		}
	}
}
