package wire

import (
	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
)

// MessageType enumerates every packet kind the codec understands. It is
// encoded as a single byte.
type MessageType uint8

const (
	MsgNone MessageType = iota
	MsgEchoRequest
	MsgEchoResponse
	MsgPlayerMovementRequest
	MsgPlayerStateUpdate
	MsgServerAnnouncement
)

func (t MessageType) String() string {
	switch t {
	case MsgNone:
		return "NONE"
	case MsgEchoRequest:
		return "ECHO_REQUEST"
	case MsgEchoResponse:
		return "ECHO_RESPONSE"
	case MsgPlayerMovementRequest:
		return "PLAYER_MOVEMENT_REQUEST"
	case MsgPlayerStateUpdate:
		return "PLAYER_STATE_UPDATE"
	case MsgServerAnnouncement:
		return "SERVER_ANNOUNCEMENT"
	default:
		return "UNKNOWN"
	}
}

// PacketHeader prefixes every packet on the wire: a one-byte type followed
// by a 32-bit sequence number.
type PacketHeader struct {
	Type     MessageType
	Sequence uint32
}

// HeaderSize is the encoded size of a PacketHeader in bytes.
const HeaderSize = 1 + 4

// WriteHeader appends h to w.
func WriteHeader(w *Writer, h PacketHeader) {
	w.PutUint8(uint8(h.Type))
	w.PutUint32(h.Sequence)
}

// ReadHeader reads a PacketHeader from r.
func ReadHeader(r *Reader) (PacketHeader, error) {
	t, err := r.Uint8()
	if err != nil {
		return PacketHeader{}, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return PacketHeader{}, err
	}
	return PacketHeader{Type: MessageType(t), Sequence: seq}, nil
}

// PlayerMovementRequest is sent by a client for every locally predicted
// input.
type PlayerMovementRequest struct {
	PlayerID            uint32
	Movement            netmath.Vector3
	VelocityY           float32
	IsJumping           bool
	InputSequenceNumber uint32
}

// Encode appends the PlayerMovementRequest payload to w.
func (p PlayerMovementRequest) Encode(w *Writer) {
	w.PutUint32(p.PlayerID)
	w.PutVector3(p.Movement)
	w.PutFloat32(p.VelocityY)
	w.PutBool(p.IsJumping)
	w.PutUint32(p.InputSequenceNumber)
}

// DecodePlayerMovementRequest reads a PlayerMovementRequest payload from r.
func DecodePlayerMovementRequest(r *Reader) (PlayerMovementRequest, error) {
	var p PlayerMovementRequest
	var err error
	if p.PlayerID, err = r.Uint32(); err != nil {
		return p, err
	}
	if p.Movement, err = r.Vector3(); err != nil {
		return p, err
	}
	if p.VelocityY, err = r.Float32(); err != nil {
		return p, err
	}
	if p.IsJumping, err = r.Bool(); err != nil {
		return p, err
	}
	if p.InputSequenceNumber, err = r.Uint32(); err != nil {
		return p, err
	}
	return p, nil
}

// PlayerStatePacket is the authoritative state the server broadcasts for a
// player.
type PlayerStatePacket struct {
	PlayerID                    uint32
	Position                    netmath.Vector3
	VelocityY                   float32
	IsJumping                   bool
	LastProcessedInputSequence  uint32
}

// Encode appends the PlayerStatePacket payload to w.
func (p PlayerStatePacket) Encode(w *Writer) {
	w.PutUint32(p.PlayerID)
	w.PutVector3(p.Position)
	w.PutFloat32(p.VelocityY)
	w.PutBool(p.IsJumping)
	w.PutUint32(p.LastProcessedInputSequence)
}

// DecodePlayerStatePacket reads a PlayerStatePacket payload from r.
func DecodePlayerStatePacket(r *Reader) (PlayerStatePacket, error) {
	var p PlayerStatePacket
	var err error
	if p.PlayerID, err = r.Uint32(); err != nil {
		return p, err
	}
	if p.Position, err = r.Vector3(); err != nil {
		return p, err
	}
	if p.VelocityY, err = r.Float32(); err != nil {
		return p, err
	}
	if p.IsJumping, err = r.Bool(); err != nil {
		return p, err
	}
	if p.LastProcessedInputSequence, err = r.Uint32(); err != nil {
		return p, err
	}
	return p, nil
}

// ServerAnnouncement is an operator-broadcast text message: a
// length-prefixed UTF-8 string, nothing else.
type ServerAnnouncement struct {
	Text string
}

// Encode appends the ServerAnnouncement payload to w.
func (a ServerAnnouncement) Encode(w *Writer) {
	w.PutString(a.Text)
}

// DecodeServerAnnouncement reads a ServerAnnouncement payload from r. A
// declared length above MaxStringLength is rejected by Reader.String
// before any allocation.
func DecodeServerAnnouncement(r *Reader) (ServerAnnouncement, error) {
	text, err := r.String()
	if err != nil {
		return ServerAnnouncement{}, err
	}
	return ServerAnnouncement{Text: text}, nil
}

// Timestamped wraps a payload with a monotonic-nanosecond time point. The
// state-update form is the separate StateUpdate type, which carries a
// server-generation timestamp (ServerTimestamp) instead.
type Timestamped[T any] struct {
	Payload   T
	Timestamp int64 // client/local monotonic nanoseconds
}

// EncodeTimestamped appends a 64-bit monotonic-nanosecond timestamp
// followed by the result of encode.
func EncodeTimestamped[T any](w *Writer, t Timestamped[T], encode func(*Writer, T)) {
	w.PutInt64(t.Timestamp)
	encode(w, t.Payload)
}

// DecodeTimestamped reads a 64-bit timestamp followed by a payload decoded
// by decode.
func DecodeTimestamped[T any](r *Reader, decode func(*Reader) (T, error)) (Timestamped[T], error) {
	ts, err := r.Int64()
	if err != nil {
		return Timestamped[T]{}, err
	}
	payload, err := decode(r)
	if err != nil {
		return Timestamped[T]{}, err
	}
	return Timestamped[T]{Payload: payload, Timestamp: ts}, nil
}

// StateUpdate pairs a PlayerStatePacket with the server-generation
// timestamp the authoritative state was produced at. It carries only that
// one timestamp; it holds no local (receipt) timestamp alongside it.
type StateUpdate struct {
	State           PlayerStatePacket
	ServerTimestamp int64
}

// EncodeStateUpdate appends the server-generation timestamp followed by
// the PlayerStatePacket payload.
func EncodeStateUpdate(w *Writer, s StateUpdate) {
	w.PutInt64(s.ServerTimestamp)
	s.State.Encode(w)
}

// DecodeStateUpdate reads a StateUpdate payload from r.
func DecodeStateUpdate(r *Reader) (StateUpdate, error) {
	serverTS, err := r.Int64()
	if err != nil {
		return StateUpdate{}, err
	}
	state, err := DecodePlayerStatePacket(r)
	if err != nil {
		return StateUpdate{}, err
	}
	return StateUpdate{State: state, ServerTimestamp: serverTS}, nil
}

// EncodePacket writes a full packet: header, then payload via encode.
func EncodePacket(msgType MessageType, sequence uint32, encode func(*Writer)) []byte {
	w := NewWriter(64)
	WriteHeader(w, PacketHeader{Type: msgType, Sequence: sequence})
	encode(w)
	return w.Bytes()
}
