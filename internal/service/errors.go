package service

import "errors"

// Validation errors are reported to the originating connection only and
// never mutate room or queue state.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNotWaiting   = errors.New("room is not in waiting status")
	ErrRoomNotPlaying   = errors.New("room is not in playing status")
	ErrRoomNotFinished  = errors.New("room is not in finished status")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyInRoom    = errors.New("connection already occupies a room")
	ErrNotInRoom        = errors.New("you are not in a room")
	ErrAlreadyQueued    = errors.New("connection already has a queue entry")
	ErrNotQueued        = errors.New("connection is not queued")
	ErrGuestNotAllowed  = errors.New("guests cannot use ranked matchmaking or create rooms")
	ErrInvalidTeam      = errors.New("invalid team")
	ErrUnknownMode      = errors.New("unknown mode")
	ErrNotConnected     = errors.New("player is not connected")
	ErrAlreadyVoted     = errors.New("rematch vote already recorded")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrRateLimited      = errors.New("sending messages too fast")
	ErrUnknownQuickMsg  = errors.New("unknown quick-chat message")
	ErrOnCooldown       = errors.New("still on cooldown")
	ErrEmoteLocked      = errors.New("emote is not unlocked")
)
