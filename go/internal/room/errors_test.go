package room

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrRoomNotFound, "Room not found"},
		{ErrRoomFull, "Room is full"},
		{ErrNotYourTurn, "Not your turn"},
		{ErrPositionFilled, "Position already filled"},
		{fmt.Errorf("join: %w", ErrRoomFull), "Room is full"},
		{errors.New("boom"), "Request rejected"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err))
	}
}
