package event

import (
	"github.com/google/uuid"

	"github.com/Versifine/packetlib/internal/container"
)

const (
	EventSessionOpen  = "session.open"
	EventSessionClose = "session.close"
	EventPacket       = "packet"
)

type Direction int

const (
	Clientbound Direction = iota
	Serverbound
)

func (d Direction) String() string {
	switch d {
	case Clientbound:
		return "Clientbound"
	case Serverbound:
		return "Serverbound"
	default:
		return "Unknown"
	}
}

// SessionEvent reports a proxied connection opening or closing.
type SessionEvent struct {
	SessionID uuid.UUID
	Addr      string
	Identity  string
}

// PacketEvent carries a copy of a packet that passed through a session.
// Subscribers run asynchronously and may keep or modify it.
type PacketEvent struct {
	SessionID uuid.UUID
	Direction Direction
	Packet    *container.Packet
	Dropped   bool
}
