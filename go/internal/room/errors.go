package room

import "errors"

// Domain errors. Every rejection of an inbound action maps to one of these;
// they are reported to the originating connection only and never mutate state.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrPositionFilled = errors.New("position already filled")
)

// Reason translates a domain error into the human-readable string sent to
// clients on the error event. Unknown errors fall back to a generic message.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, ErrPositionFilled):
		return "Position already filled"
	default:
		return "Request rejected"
	}
}
