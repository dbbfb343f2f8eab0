package domain

import "errors"

// Domain errors
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrTransientStore      = errors.New("data store unavailable")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrGameNotPlaying      = errors.New("game is not in progress")
	ErrNotHost             = errors.New("only host can perform this action")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerDead          = errors.New("player has been ejected")
	ErrNoMeeting           = errors.New("no emergency meeting in progress")
	ErrStaleRound          = errors.New("vote is for a different round")
	ErrInvalidTarget       = errors.New("invalid vote target")
	ErrCannotVoteSelf      = errors.New("cannot vote for yourself")
	ErrImpostorTasks       = errors.New("impostor cannot report tasks")
	ErrDuplicateRoomCode   = errors.New("room code already in use")
	ErrRoomCodeExhausted   = errors.New("failed to generate unique room code")
	ErrEmptyMessage        = errors.New("message cannot be empty")
	ErrInvalidInput        = errors.New("invalid input")
)

// errorCodes gives every user-facing error a stable wire code.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{ErrRoomFull, "ROOM_FULL"},
	{ErrInsufficientPlayers, "INSUFFICIENT_PLAYERS"},
	{ErrTransientStore, "STORE_UNAVAILABLE"},
	{ErrGameAlreadyStarted, "GAME_ALREADY_STARTED"},
	{ErrGameNotPlaying, "GAME_NOT_PLAYING"},
	{ErrNotHost, "NOT_HOST"},
	{ErrPlayerNotFound, "PLAYER_NOT_FOUND"},
	{ErrPlayerDead, "PLAYER_DEAD"},
	{ErrNoMeeting, "NO_MEETING"},
	{ErrStaleRound, "STALE_ROUND"},
	{ErrInvalidTarget, "INVALID_TARGET"},
	{ErrCannotVoteSelf, "CANNOT_VOTE_SELF"},
	{ErrImpostorTasks, "IMPOSTOR_TASKS"},
	{ErrDuplicateRoomCode, "DUPLICATE_ROOM_CODE"},
	{ErrRoomCodeExhausted, "ROOM_CODE_EXHAUSTED"},
	{ErrEmptyMessage, "EMPTY_MESSAGE"},
	{ErrInvalidInput, "INVALID_INPUT"},
}

// ErrorCode returns the wire code for err, or "INTERNAL_ERROR" when err is not a domain error.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL_ERROR"
}

// ErrorFromCode maps a wire code back to its sentinel. Unknown codes return nil.
func ErrorFromCode(code string) error {
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return nil
}

// IsUserFacing reports whether err should be surfaced to the player that caused it.
func IsUserFacing(err error) bool {
	return err != nil && !errors.Is(err, ErrTransientStore) && ErrorCode(err) != "INTERNAL_ERROR"
}
