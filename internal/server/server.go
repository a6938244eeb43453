package server

import (
	stdcontext "context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/eternalApril/actorhost/internal/resp"
	"go.uber.org/zap"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server: closed")

// Server accepts RESP connections and hands their commands to the engine
type Server struct {
	engine *Engine
	logger *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	peers    map[*Peer]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a server executing commands on engine
func NewServer(engine *Engine, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger,
		peers:  make(map[*Peer]struct{}),
	}
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			s.logger.Error("Accept error", zap.Error(err))
			continue
		}

		peer := NewPeer(conn)
		if !s.track(peer) {
			peer.Close() //nolint:errcheck
			return ErrServerClosed
		}

		go func() {
			defer s.wg.Done()
			s.handle(peer)
		}()
	}
}

func (s *Server) track(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.peers[p] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// handle serves a single client. Replies are flushed once the input buffer is drained,
// so a pipelined batch costs one write
func (s *Server) handle(peer *Peer) {
	log := s.logger.With(zap.String("peer", peer.ID()))
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", peer.RemoteAddr()))
	}

	defer func() {
		s.untrack(peer)
		peer.Close() //nolint:errcheck
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected")
		}
	}()

	for {
		cmdValue, err := peer.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("read command failed", zap.Error(err))
			}
			return
		}

		var result resp.Value
		switch {
		case cmdValue.Type != resp.TypeArray || cmdValue.IsNull:
			result = resp.MakeErrorf("protocol error: expected array of bulk strings")
		case len(cmdValue.Array) == 0:
			continue
		default:
			name := strings.ToUpper(string(cmdValue.Array[0].String))
			result = s.engine.Execute(name, cmdValue.Array[1:])
		}

		if err = peer.Send(result); err != nil {
			log.Error("error writing response", zap.Error(err))
			return
		}

		if peer.InputBuffered() == 0 {
			if err := peer.Flush(); err != nil {
				return
			}
		}
	}
}

// Shutdown closes the listener and all connections, then waits for the handlers
// to return or for ctx to expire
func (s *Server) Shutdown(ctx stdcontext.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		s.listener.Close() //nolint:errcheck
	}
	for p := range s.peers {
		p.Close() //nolint:errcheck
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
