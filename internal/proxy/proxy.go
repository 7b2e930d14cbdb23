// Package proxy runs a Bedrock man-in-the-middle proxy. Sessions are kept in
// the server's network and ticked by a single loop that forwards the packets
// each session read since the previous tick.
package proxy

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/Versifine/packetlib/internal/logger"
)

const defaultTickRate = 50 * time.Millisecond

type Options struct {
	ListenAddr  string
	BackendAddr string
	// TokenSource authenticates the backend dial. Nil dials offline.
	TokenSource oauth2.TokenSource
	TickRate    time.Duration
	// OnOpen runs before a new session is added to the network, OnClose after
	// it has been removed.
	OnOpen  func(Handler, SessionInfo)
	OnClose func(Handler, SessionInfo)
	Logger  *slog.Logger
}

// Proxy owns the server instance for the lifetime of the process.
type Proxy struct {
	server *Server
	opts   Options
	log    *slog.Logger
}

func New(opts Options) *Proxy {
	if opts.TickRate <= 0 {
		opts.TickRate = defaultTickRate
	}
	log := opts.Logger
	if log == nil {
		log = logger.Component("proxy")
	}
	return &Proxy{server: NewServer(opts, log), opts: opts, log: log}
}

func (p *Proxy) Server() *Server {
	return p.server
}

// Run pings the backend, then serves clients until ctx is done.
func (p *Proxy) Run(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pong, err := Ping(pctx, p.opts.BackendAddr)
	cancel()
	if err != nil {
		return err
	}
	p.log.Info("Backend reachable", "edition", pong.Edition, "motd", pong.MOTD, "protocol", pong.ProtocolID,
		"players", pong.PlayerCount, "max_players", pong.MaxPlayerCount)
	p.server.status.pong.Store(pong)
	return p.server.Start(ctx)
}
