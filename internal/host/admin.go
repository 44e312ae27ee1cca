package host

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/protocol"
)

// Host operations. They run through the same lock and broadcast path as
// player messages.

// StartGame moves the room from the lobby into play.
func (s *Session) StartGame() error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.StartGame(st)
	})
}

// ResetGame returns to the lobby and wipes scores. A roll in flight is
// cancelled.
func (s *Session) ResetGame() error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.ResetGame(st), nil
	})
}

// SetRange sets the starting range as the host.
func (s *Session) SetRange(maxRange int) error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.SetRange(st, game.HostActor, maxRange)
	})
}

// SetCoins configures coin abilities. Lobby only.
func (s *Session) SetCoins(enabled bool, initial int) error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.SetCoins(st, enabled, initial)
	})
}

// SetTeamMode toggles team rotation.
func (s *Session) SetTeamMode(enabled bool) error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.SetTeamMode(st, enabled), nil
	})
}

// CreateTeam adds a team and returns its id.
func (s *Session) CreateTeam(name, color string) (string, error) {
	id := s.newID()
	err := s.apply(func(st game.State) (game.State, error) {
		return game.CreateTeam(st, game.Team{ID: id, Name: name, Color: color})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveTeam deletes a team; its members become unassigned.
func (s *Session) RemoveTeam(teamID string) error {
	return s.apply(func(st game.State) (game.State, error) {
		if _, ok := st.TeamByID(teamID); !ok {
			return st, game.ErrTeamNotFound
		}
		return game.RemoveTeam(st, teamID), nil
	})
}

// AssignTeam moves a player onto a team. An empty teamID unassigns.
func (s *Session) AssignTeam(playerID, teamID string) error {
	return s.apply(func(st game.State) (game.State, error) {
		return game.AssignPlayerToTeam(st, playerID, teamID)
	})
}

// SetExtendedEffects lengthens reveal animations. It takes effect from the
// next roll.
func (s *Session) SetExtendedEffects(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.effects = enabled
}

// ExtendedEffects reports whether extended effects are on.
func (s *Session) ExtendedEffects() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effects
}

// AddLocalPlayer adds a player sitting at the host and returns their id.
func (s *Session) AddLocalPlayer(name string) (string, error) {
	name = protocol.NormalizeName(name)
	if err := (protocol.JoinRequest{Name: name}).Validate(); err != nil {
		return "", err
	}
	id := s.newID()
	err := s.apply(func(st game.State) (game.State, error) {
		if _, taken := st.PlayerByName(name); taken {
			return st, game.ErrNameConflict
		}
		if len(st.Players) >= s.maxPlayers {
			return st, ErrRoomFull
		}
		return game.AddPlayer(st, game.Player{ID: id, Name: name, IsLocal: true}), nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Local player added", "player", id, "name", name)
	return id, nil
}

// EnsureLocalPlayer returns the id of the local player called name, adding
// them if absent. A restored room already holds its local players. The name
// still conflicts with a remote player.
func (s *Session) EnsureLocalPlayer(name string) (string, error) {
	if p, ok := s.State().PlayerByName(protocol.NormalizeName(name)); ok && p.IsLocal {
		return p.ID, nil
	}
	return s.AddLocalPlayer(name)
}

// RemoveLocalPlayer removes a player sitting at the host.
func (s *Session) RemoveLocalPlayer(playerID string) error {
	return s.apply(func(st game.State) (game.State, error) {
		if err := requireLocal(st, playerID); err != nil {
			return st, err
		}
		return game.RemovePlayer(st, playerID), nil
	})
}

// RollFor submits a roll intent for a local player.
func (s *Session) RollFor(playerID string, req game.RollRequest) error {
	return s.local(playerID, func() error { return s.rollLocked(playerID, req) })
}

// SetRangeFor submits a range change for a local player.
func (s *Session) SetRangeFor(playerID string, maxRange int) error {
	return s.local(playerID, func() error { return s.setRangeLocked(playerID, maxRange) })
}

// ChooseFor commits a roll-twice choice for a local player.
func (s *Session) ChooseFor(playerID string, chosen int) error {
	return s.local(playerID, func() error { return s.chooseLocked(playerID, chosen) })
}

// KickPlayer removes a player. A remote player is sent KICK with reason and
// their connection is closed; a roll they had in flight is cancelled.
func (s *Session) KickPlayer(playerID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if _, ok := s.state.PlayerByID(playerID); !ok {
		return game.ErrPlayerNotFound
	}
	for id, ps := range s.peers {
		if ps.playerID != playerID {
			continue
		}
		s.sendLocked(ps, protocol.Kick{Reason: reason})
		delete(s.peers, id)
		_ = ps.peer.Close()
	}
	s.logger.Info("Player kicked", "player", playerID, "reason", reason)
	s.commitLocked(game.RemovePlayer(s.state, playerID), game.Outcome{})
	return nil
}

// EndSession tells every peer the room is closing, drops all connections and
// forgets the saved snapshot. Later operations fail with ErrSessionEnded.
func (s *Session) EndSession(reason string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.stopRollTimerLocked()
	if reason == "" {
		reason = ReasonEnded
	}
	s.broadcastLocked(protocol.Kick{Reason: reason})
	for id, ps := range s.peers {
		delete(s.peers, id)
		_ = ps.peer.Close()
	}
	if s.store != nil {
		if err := s.store.Clear(); err != nil {
			s.logger.Warn("Failed to clear saved room", "error", err)
		}
	}
	s.mu.Unlock()

	s.logger.Info("Session ended", "code", s.code, "reason", reason)
	s.events.Close()
}

// Ended reports whether EndSession has run.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// RunHeartbeat scans for stale connections every interval until ctx is done.
func (s *Session) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	ticker := s.clock.NewTicker(interval, "host", "heartbeat")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.CheckHeartbeats(); n > 0 {
				s.logger.Debug("Heartbeat scan dropped peers", "count", n)
			}
		}
	}
}

func (s *Session) apply(fn func(game.State) (game.State, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	next, err := fn(s.state)
	if err != nil {
		return err
	}
	s.commitLocked(next, game.Outcome{})
	return nil
}

func (s *Session) local(playerID string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	if err := requireLocal(s.state, playerID); err != nil {
		return err
	}
	return fn()
}

func requireLocal(st game.State, playerID string) error {
	p, ok := st.PlayerByID(playerID)
	if !ok {
		return game.ErrPlayerNotFound
	}
	if !p.IsLocal {
		return fmt.Errorf("%w: %s", ErrNotLocal, playerID)
	}
	return nil
}
