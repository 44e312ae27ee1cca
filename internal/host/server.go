package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/roomcode"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Session over HTTP. Players connect with a WebSocket to
// /room/{address}, where address is the room's peer address.
type Server struct {
	cfg      *Config
	session  *Session
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer builds the router for session.
func NewServer(cfg *Config, session *Session, logger *log.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		session: session,
		logger:  logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			// Peers are identified by room code, not origin.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/room/{address}", s.handleRoom).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// PeerAddress returns the address players dial for this room.
func (s *Server) PeerAddress() string {
	return roomcode.PeerAddress(s.cfg.Host.PathPrefix, s.session.Code())
}

// RoomPath returns the WebSocket path for this room.
func (s *Server) RoomPath() string {
	return "/room/" + s.PeerAddress()
}

// Run listens on the configured address and scans heartbeats until ctx is
// cancelled, then ends the session and shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Host.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Host.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Hosting room", "code", s.session.Code(), "addr", ln.Addr().String(), "path", s.RoomPath())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return s.session.RunHeartbeat(ctx, s.cfg.HeartbeatInterval())
	})
	g.Go(func() error {
		<-ctx.Done()
		s.session.EndSession(ReasonEnded)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	code := roomcode.Normalize(strings.TrimPrefix(address, s.cfg.Host.PathPrefix))
	if code != s.session.Code() {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if s.session.Ended() {
		http.Error(w, "room has closed", http.StatusGone)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	conn := NewConnection(uuid.NewString(), ws, s.session, s.logger)
	s.logger.Debug("Peer connected", "conn", conn.ID(), "remote", r.RemoteAddr)
	conn.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

type stateResponse struct {
	RoomCode string     `json:"roomCode"`
	Seq      uint64     `json:"seq"`
	State    game.State `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		RoomCode: s.session.Code(),
		Seq:      s.session.Seq(),
		State:    s.session.State(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug("Failed to write state", "error", err)
	}
}
