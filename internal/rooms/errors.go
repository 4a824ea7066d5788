package rooms

import "errors"

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrNameRequired  = errors.New("name is required")
	ErrNameTaken     = errors.New("name already taken in this room")
	ErrOptionCount   = errors.New("poll must have 2 options")
	ErrBadOptions    = errors.New("poll options must be distinct and non-empty")
	ErrPollClosed    = errors.New("poll closed")
	ErrUnknownUser   = errors.New("user not found in this room")
	ErrAlreadyVoted  = errors.New("already voted")
	ErrInvalidOption = errors.New("invalid option")
)
