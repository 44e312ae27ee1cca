// Package host runs the authoritative side of a room. A Session owns the only
// writable copy of the game state: every player message and host operation is
// validated, applied and broadcast while holding the session lock, so peers
// observe transitions in one total order.
package host

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/deathroll/internal/eventbus"
	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/persist"
	"github.com/lox/deathroll/internal/protocol"
	"github.com/lox/deathroll/internal/rollgen"
	"github.com/lox/deathroll/internal/roomcode"
)

// Rejection reasons sent in JOIN_REJECTED.
const (
	ReasonNameTaken = "Name already taken"
	ReasonRoomFull  = "Room is full"
	ReasonEnded     = "Room has closed"
)

var (
	ErrRoomFull     = errors.New("room is full")
	ErrSessionEnded = errors.New("session has ended")
	ErrNotLocal     = errors.New("player is not local to the host")
	ErrTimeout      = errors.New("heartbeat timeout")
)

// Peer is a transport endpoint. A peer is bound to at most one player once its
// join is accepted.
type Peer interface {
	ID() string
	Send(msg *protocol.Message) error
	Close() error
}

// Event is published to local observers after every committed transition.
type Event struct {
	Seq   uint64
	State game.State
	// LoserID is set when the transition revealed a losing roll.
	LoserID string
}

// Options configures a Session. Zero values fall back to production defaults.
type Options struct {
	Logger          *log.Logger
	Clock           quartz.Clock
	Roller          game.Roller
	Store           persist.HostStore
	Settings        game.Settings
	MaxPlayers      int
	ExtendedEffects bool
	StaleAfter      time.Duration
	NewID           func() string
}

type peerState struct {
	peer     Peer
	playerID string
	lastSeen time.Time
}

// Session is one hosted room.
type Session struct {
	code       string
	logger     *log.Logger
	clock      quartz.Clock
	roller     game.Roller
	store      persist.HostStore
	newID      func() string
	maxPlayers int
	staleAfter time.Duration
	events     *eventbus.Bus[Event]

	mu        sync.Mutex
	state     game.State
	seq       uint64
	peers     map[string]*peerState
	rollTimer *quartz.Timer
	effects   bool
	ended     bool
}

// NewSession opens a room with the given code. When opts.Store holds a fresh
// snapshot for the same code, the room resumes from it.
func NewSession(code string, opts Options) (*Session, error) {
	if err := roomcode.Validate(code); err != nil {
		return nil, fmt.Errorf("room code: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Roller == nil {
		opts.Roller = rollgen.New()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = len(game.Palette)
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 60 * time.Second
	}

	s := &Session{
		code:       roomcode.Normalize(code),
		logger:     opts.Logger.WithPrefix("host"),
		clock:      opts.Clock,
		roller:     opts.Roller,
		store:      opts.Store,
		newID:      opts.NewID,
		maxPlayers: opts.MaxPlayers,
		staleAfter: opts.StaleAfter,
		events:     eventbus.New[Event](),
		state:      game.NewState(opts.Settings),
		peers:      make(map[string]*peerState),
		effects:    opts.ExtendedEffects,
	}
	s.restore()
	return s, nil
}

func (s *Session) restore() {
	if s.store == nil {
		return
	}
	saved, ok, err := s.store.Load()
	if err != nil {
		s.logger.Warn("Ignoring unreadable saved room", "error", err)
		return
	}
	if !ok || saved.RoomCode != s.code {
		return
	}
	if !persist.Fresh(saved.Timestamp, s.clock.Now(), persist.TTL) {
		s.logger.Info("Saved room expired", "code", s.code, "saved", saved.Timestamp)
		return
	}
	s.state = game.Restore(saved.GameState)
	s.logger.Info("Restored room", "code", s.code, "players", len(s.state.Players), "phase", s.state.Phase)
}

// Code returns the normalized room code.
func (s *Session) Code() string { return s.code }

// State returns a copy of the current state as peers see it.
func (s *Session) State() game.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Public()
}

// Seq returns the sequence number of the last frame sent.
func (s *Session) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe registers fn for every committed transition.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	return s.events.Subscribe(fn)
}

// Attach registers a new transport endpoint. It stays anonymous until it
// sends an accepted JOIN_REQUEST.
func (s *Session) Attach(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		_ = p.Close()
		return
	}
	s.peers[p.ID()] = &peerState{peer: p, lastSeen: s.clock.Now()}
	s.logger.Debug("Peer attached", "conn", p.ID(), "peers", len(s.peers))
}

// Detach handles loss of a transport. The bound player, if any, is marked
// disconnected; nothing else about them changes.
func (s *Session) Detach(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.peers[connID]
	if !ok {
		return
	}
	delete(s.peers, connID)
	s.logger.Debug("Peer detached", "conn", connID, "player", ps.playerID)
	if ps.playerID != "" {
		s.disconnectPlayerLocked(ps.playerID)
	}
}

// Handle processes one frame from connID. Malformed frames and intents that
// no longer apply are logged and dropped; the connection stays up.
func (s *Session) Handle(connID string, msg *protocol.Message) {
	defer s.recoverAndResync("handling message", "conn", connID, "type", msg.Type)

	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.peers[connID]
	if !ok || s.ended {
		return
	}
	ps.lastSeen = s.clock.Now()

	pm, err := protocol.DecodePlayerMessage(msg)
	if err != nil {
		s.logger.Warn("Dropping invalid message", "conn", connID, "player", ps.playerID, "error", err)
		return
	}

	if _, isJoin := pm.(protocol.JoinRequest); !isJoin && ps.playerID == "" {
		if _, isHeartbeat := pm.(protocol.Heartbeat); !isHeartbeat {
			s.logger.Debug("Dropping intent from peer that has not joined", "conn", connID, "type", msg.Type)
			return
		}
	}

	switch m := pm.(type) {
	case protocol.JoinRequest:
		s.joinLocked(ps, m)
	case protocol.RollRequest:
		s.intentResult(ps.playerID, msg.Type, s.rollLocked(ps.playerID, m.GameRequest()))
	case protocol.SetRange:
		s.intentResult(ps.playerID, msg.Type, s.setRangeLocked(ps.playerID, m.MaxRange))
	case protocol.ChooseRoll:
		s.intentResult(ps.playerID, msg.Type, s.chooseLocked(ps.playerID, m.ChosenRoll))
	case protocol.Heartbeat:
		s.sendLocked(ps, protocol.HeartbeatAck{})
	case protocol.StateSyncRequest:
		s.sendLocked(ps, protocol.StateUpdate{State: s.state.Public()})
	}
}

func (s *Session) intentResult(playerID string, mt protocol.MessageType, err error) {
	switch {
	case err == nil:
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrStaleIntent), errors.Is(err, game.ErrInsufficientCoins):
		s.logger.Debug("Ignoring intent", "player", playerID, "type", mt, "reason", err)
	default:
		s.logger.Warn("Rejected intent", "player", playerID, "type", mt, "error", err)
	}
}

// recoverAndResync must be deferred directly. A recovered panic leaves the
// last committed state in place, so peers are sent it again.
func (s *Session) recoverAndResync(during string, keyvals ...any) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.Error("Recovered from panic while "+during, append(keyvals, "panic", r)...)
	s.Resync()
}

// Resync re-broadcasts the last committed state to every joined peer.
func (s *Session) Resync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(protocol.StateUpdate{State: s.state.Public()})
}

func (s *Session) joinLocked(ps *peerState, req protocol.JoinRequest) {
	if ps.playerID != "" {
		s.sendLocked(ps, protocol.StateUpdate{State: s.state.Public()})
		return
	}

	var existing game.Player
	found := false
	byID := false
	if req.PlayerID != "" {
		existing, found = s.state.PlayerByID(req.PlayerID)
		byID = found
	}
	if !found {
		existing, found = s.state.PlayerByName(req.Name)
	}

	if found {
		if existing.IsLocal || (existing.IsConnected && !byID) {
			s.logger.Info("Join rejected", "name", req.Name, "reason", ReasonNameTaken)
			s.sendLocked(ps, protocol.JoinRejected{Reason: ReasonNameTaken})
			return
		}
		s.reconnectLocked(ps, existing.ID)
		return
	}

	if len(s.state.Players) >= s.maxPlayers {
		s.logger.Info("Join rejected", "name", req.Name, "reason", ReasonRoomFull)
		s.sendLocked(ps, protocol.JoinRejected{Reason: ReasonRoomFull})
		return
	}

	id := s.newID()
	next := game.AddPlayer(s.state, game.Player{
		ID:           id,
		Name:         req.Name,
		IsConnected:  true,
		ConnectionID: ps.peer.ID(),
		IsSpectator:  req.Spectator,
	})
	ps.playerID = id
	s.logger.Info("Player joined", "player", id, "name", req.Name, "spectator", req.Spectator)
	s.sendLocked(ps, protocol.JoinAccepted{PlayerID: id, State: next.Public()})
	s.commitLocked(next, game.Outcome{})
}

func (s *Session) reconnectLocked(ps *peerState, playerID string) {
	for id, other := range s.peers {
		if other != ps && other.playerID == playerID {
			s.logger.Debug("Replacing previous connection", "player", playerID, "conn", id)
			other.playerID = ""
			delete(s.peers, id)
			_ = other.peer.Close()
		}
	}
	ps.playerID = playerID
	next := game.ReconnectPlayer(s.state, playerID, ps.peer.ID())
	s.logger.Info("Player reconnected", "player", playerID)
	s.sendLocked(ps, protocol.ReconnectAccepted{PlayerID: playerID, State: next.Public()})
	s.commitLocked(next, game.Outcome{})
}

func (s *Session) disconnectPlayerLocked(playerID string) {
	next := game.SetPlayerConnected(s.state, playerID, false)
	var out game.Outcome
	if next.AwaitingChoice() && next.Pending.PlayerID == playerID {
		next, out = s.autoChoose(next)
	}
	next = game.EnsureCurrentEligible(next)
	s.logger.Info("Player disconnected", "player", playerID)
	s.commitLocked(next, out)
}

// autoChoose commits the better roll-twice candidate for a chooser who is no
// longer connected.
func (s *Session) autoChoose(st game.State) (game.State, game.Outcome) {
	best, ok := game.BestChoice(st)
	if !ok {
		return st, game.Outcome{}
	}
	next, out, err := game.ChooseRoll(st, st.Pending.PlayerID, best)
	if err != nil {
		s.logger.Warn("Automatic roll choice failed", "player", st.Pending.PlayerID, "error", err)
		return st, game.Outcome{}
	}
	s.logger.Info("Chose roll for disconnected player", "player", out.PlayerID, "result", best)
	return next, out
}

func (s *Session) rollLocked(playerID string, req game.RollRequest) error {
	next, out, err := game.InitiateRoll(s.state, playerID, req, s.roller, s.clock.Now())
	if err != nil {
		return err
	}
	if out.Skipped {
		s.logger.Info("Roll skipped", "player", playerID)
		s.commitLocked(next, out)
		return nil
	}
	s.logger.Debug("Roll started", "player", playerID, "range", next.Pending.MaxRange, "twice", req.RollTwice)
	s.commitLocked(next, out)
	s.scheduleCompletionLocked(*next.Pending)
	return nil
}

func (s *Session) scheduleCompletionLocked(p game.PendingRoll) {
	s.stopRollTimerLocked()
	id := p.ID
	delay := game.AnimationDelay(p.MaxRange, s.effects)
	s.rollTimer = s.clock.AfterFunc(delay, func() { s.completeRoll(id) }, "host", "roll")
}

func (s *Session) stopRollTimerLocked() {
	if s.rollTimer != nil {
		s.rollTimer.Stop()
		s.rollTimer = nil
	}
}

// completeRoll runs when the reveal animation ends. It works on whatever the
// state is now; a roll that was superseded in the meantime is dropped.
func (s *Session) completeRoll(id uint64) {
	defer s.recoverAndResync("revealing roll", "roll", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.state.Pending == nil || s.state.Pending.ID != id || s.state.Pending.Revealed {
		return
	}
	next, out := game.CompleteRoll(s.state, id)
	if out.AwaitingChoice {
		if p, ok := next.PlayerByID(out.PlayerID); !ok || !p.IsConnected {
			next, out = s.autoChoose(next)
		}
	}
	if out.Applied {
		s.logger.Debug("Roll revealed", "player", out.PlayerID, "result", out.Result, "lost", out.Lost)
	}
	s.commitLocked(next, out)
}

func (s *Session) setRangeLocked(actorID string, maxRange int) error {
	next, err := game.SetRange(s.state, actorID, maxRange)
	if err != nil {
		return err
	}
	s.commitLocked(next, game.Outcome{})
	return nil
}

func (s *Session) chooseLocked(playerID string, chosen int) error {
	next, out, err := game.ChooseRoll(s.state, playerID, chosen)
	if err != nil {
		return err
	}
	s.commitLocked(next, out)
	return nil
}

// commitLocked installs next as the canonical state and broadcasts it. A
// losing roll is followed by GAME_OVER.
func (s *Session) commitLocked(next game.State, out game.Outcome) {
	s.state = next
	if s.state.Pending == nil || s.state.Pending.Revealed {
		s.stopRollTimerLocked()
	}

	public := s.state.Public()
	s.broadcastLocked(protocol.StateUpdate{State: public})
	ev := Event{State: public}
	if out.Lost {
		s.logger.Info("Round lost", "player", out.PlayerID, "round", s.state.RoundNumber-1)
		s.broadcastLocked(protocol.GameOver{LoserID: out.PlayerID})
		ev.LoserID = out.PlayerID
	}
	ev.Seq = s.seq
	s.saveLocked()
	s.events.Publish(ev)
}

func (s *Session) saveLocked() {
	if s.store == nil {
		return
	}
	err := s.store.Save(persist.SavedHostState{
		RoomCode:  s.code,
		GameState: s.state.Public(),
		Timestamp: s.clock.Now(),
	})
	if err != nil {
		s.logger.Warn("Failed to save room", "error", err)
	}
}

func (s *Session) broadcastLocked(p protocol.HostMessage) {
	msg, err := protocol.NewMessage(p)
	if err != nil {
		s.logger.Error("Failed to encode broadcast", "type", p.MessageType(), "error", err)
		return
	}
	for _, ps := range s.peers {
		if ps.playerID == "" {
			continue
		}
		s.deliverLocked(ps, *msg)
	}
}

func (s *Session) sendLocked(ps *peerState, p protocol.HostMessage) {
	msg, err := protocol.NewMessage(p)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", p.MessageType(), "error", err)
		return
	}
	s.deliverLocked(ps, *msg)
}

func (s *Session) deliverLocked(ps *peerState, msg protocol.Message) {
	s.seq++
	msg.Seq = s.seq
	if err := ps.peer.Send(&msg); err != nil {
		s.logger.Debug("Failed to send message", "conn", ps.peer.ID(), "player", ps.playerID, "type", msg.Type, "error", err)
	}
}

// CheckHeartbeats drops every peer that has been silent for longer than the
// stale timeout and returns how many were dropped.
func (s *Session) CheckHeartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	dropped := 0
	for id, ps := range s.peers {
		if now.Sub(ps.lastSeen) < s.staleAfter {
			continue
		}
		s.logger.Warn("Connection stale", "conn", id, "player", ps.playerID, "error", ErrTimeout)
		delete(s.peers, id)
		_ = ps.peer.Close()
		dropped++
		if ps.playerID != "" {
			s.disconnectPlayerLocked(ps.playerID)
		}
	}
	return dropped
}
