package proxy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sandertv/go-raknet"
	"github.com/sandertv/gophertunnel/minecraft"
)

// Pong is a parsed RakNet unconnected pong, the status line Bedrock servers
// answer pings with.
type Pong struct {
	Edition         string
	MOTD            string
	ProtocolID      int32
	ProtocolVersion string
	PlayerCount     int32
	MaxPlayerCount  int32
	ServerUUID      string
	SubMOTD         string
	GameMode        string
	GameModeID      int32
	IPv4Port        int32
	IPv6Port        int32
}

// Ping asks the backend for its status.
func Ping(ctx context.Context, addr string) (*Pong, error) {
	data, err := raknet.PingContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}
	return parsePong(data)
}

// splitPong splits on ';', honouring backslash escapes.
func splitPong(s string) []string {
	var b strings.Builder
	var tokens []string
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			b.WriteRune(r)
		case r == '\\':
			escaped = true
		case r == ';':
			tokens = append(tokens, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	return append(tokens, b.String())
}

func parsePong(data []byte) (*Pong, error) {
	f := splitPong(string(data))
	if len(f) < 6 {
		return nil, fmt.Errorf("pong has %d fields, want at least 6", len(f))
	}
	// Older servers stop after the game mode.
	for len(f) < 12 {
		f = append(f, "")
	}
	protocolID, err := strconv.Atoi(f[2])
	if err != nil {
		return nil, fmt.Errorf("invalid protocol id %q", f[2])
	}
	players, err := strconv.Atoi(f[4])
	if err != nil {
		return nil, fmt.Errorf("invalid player count %q", f[4])
	}
	maxPlayers, err := strconv.Atoi(f[5])
	if err != nil {
		return nil, fmt.Errorf("invalid max player count %q", f[5])
	}
	return &Pong{
		Edition:         f[0],
		MOTD:            f[1],
		ProtocolID:      int32(protocolID),
		ProtocolVersion: f[3],
		PlayerCount:     int32(players),
		MaxPlayerCount:  int32(maxPlayers),
		ServerUUID:      f[6],
		SubMOTD:         f[7],
		GameMode:        f[8],
		GameModeID:      atoiOr(f[9], 0),
		IPv4Port:        atoiOr(f[10], 19132),
		IPv6Port:        atoiOr(f[11], 19133),
	}, nil
}

func atoiOr(s string, def int32) int32 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return int32(n)
}

// statusProvider answers client pings with the backend's last known MOTD.
type statusProvider struct {
	pong atomic.Pointer[Pong]
}

func (p *statusProvider) ServerStatus(playerCount, maxPlayers int) minecraft.ServerStatus {
	status := minecraft.ServerStatus{
		ServerName:  "packetlib",
		PlayerCount: playerCount,
		MaxPlayers:  maxPlayers,
	}
	if pong := p.pong.Load(); pong != nil {
		status.ServerName = pong.MOTD
		status.MaxPlayers = int(pong.MaxPlayerCount)
	}
	return status
}
