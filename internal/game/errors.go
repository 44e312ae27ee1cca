package game

import "errors"

var (
	ErrNotYourTurn       = errors.New("not your turn")
	ErrStaleIntent       = errors.New("intent no longer applies")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrCoinsDisabled     = errors.New("coin abilities are disabled")
	ErrConflictingIntent = errors.New("skip roll cannot be combined with roll twice")
	ErrNameConflict      = errors.New("Name already taken")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrDuplicateTeam     = errors.New("team already exists")
	ErrWrongPhase        = errors.New("action not allowed in current phase")
	ErrInvalidRange      = errors.New("invalid range")
	ErrRangeLocked       = errors.New("range can only change before the first roll of a round")
	ErrInvalidChoice     = errors.New("chosen roll is not one of the offered results")
	ErrInvalidTarget     = errors.New("next player override is not eligible")
	ErrInvalidCoins      = errors.New("initial coins out of range")
	ErrSpectator         = errors.New("spectators cannot act")
	ErrNoEligiblePlayers = errors.New("no connected players to start with")
)
