package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sandertv/gophertunnel/minecraft"
)

const dialTimeout = 15 * time.Second

// Server accepts Bedrock clients and pairs each with a connection to the
// backend.
type Server struct {
	opts    Options
	network *Network
	status  *statusProvider
	log     *slog.Logger
}

func NewServer(opts Options, log *slog.Logger) *Server {
	return &Server{
		opts:    opts,
		network: newNetwork(opts, log),
		status:  &statusProvider{},
		log:     log,
	}
}

// Network returns the server's connection side.
func (s *Server) Network() *Network {
	return s.network
}

// Start serves clients until ctx is done or accepting fails. The network
// loop and every session have stopped by the time it returns.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting proxy server", "listener", s.opts.ListenAddr, "backend", s.opts.BackendAddr)
	listener, err := minecraft.ListenConfig{StatusProvider: s.status}.Listen("raknet", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.ListenAddr, err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down proxy server")
		_ = listener.Close()
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.network.run(ctx, s.opts.TickRate)
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info("Proxy server stopped")
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, listener, conn.(*minecraft.Conn))
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, listener *minecraft.Listener, client *minecraft.Conn) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	backend, err := minecraft.Dialer{
		TokenSource: s.opts.TokenSource,
		ClientData:  client.ClientData(),
	}.DialContext(dctx, "raknet", s.opts.BackendAddr)
	if err != nil {
		s.log.Error("Error connecting to backend", "client", client.RemoteAddr(), "error", err)
		_ = listener.Disconnect(client, "Backend unavailable")
		return
	}

	var startErr, spawnErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		startErr = client.StartGame(backend.GameData())
	}()
	go func() {
		defer wg.Done()
		spawnErr = backend.DoSpawn()
	}()
	wg.Wait()
	if err := errors.Join(startErr, spawnErr); err != nil {
		s.log.Error("Error spawning session", "client", client.RemoteAddr(), "error", err)
		_ = backend.Close()
		_ = listener.Disconnect(client, "Spawn failed")
		return
	}

	sess := newSession(client, backend, s.log)
	info := SessionInfo{
		ID:       sess.ID(),
		Addr:     client.RemoteAddr().String(),
		Identity: client.IdentityData().DisplayName,
	}
	s.serve(ctx, sess, info)
}

// serve registers sess with the network until it closes or ctx ends.
func (s *Server) serve(ctx context.Context, sess *session, info SessionInfo) {
	s.network.open(sess, info)
	sess.start()
	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.close(ctx.Err())
	}
	s.network.close(sess, info)
}
