// Package room maps conversations to the room ids used by the fan-out engine.
// The same mapping is used by servers and clients so that both participants of
// an individual conversation converge on one room.
package room

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mahaj/commune-chat/pkg/chaterr"
	"github.com/mahaj/commune-chat/pkg/model"
)

const (
	groupPrefix      = "group:"
	individualPrefix = "dm:"
)

func Group(chatID int64) string {
	return groupPrefix + strconv.FormatInt(chatID, 10)
}

// Individual returns the room of the unordered pair {a, b}.
func Individual(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return individualPrefix + strconv.FormatInt(a, 10) + "-" + strconv.FormatInt(b, 10)
}

func ID(c model.Conversation) string {
	if c.Kind == model.KindGroup {
		return Group(c.ChatID)
	}
	return Individual(c.UserLow, c.UserHigh)
}

// Parse inverts ID. The returned conversation has no ChatID for individual rooms.
func Parse(id string) (model.Conversation, error) {
	switch {
	case strings.HasPrefix(id, groupPrefix):
		chatID, err := strconv.ParseInt(id[len(groupPrefix):], 10, 64)
		if err != nil {
			return model.Conversation{}, fmt.Errorf("room %q: %w", id, chaterr.ErrInvalid)
		}
		return model.Group(chatID), nil
	case strings.HasPrefix(id, individualPrefix):
		low, high, ok := strings.Cut(id[len(individualPrefix):], "-")
		if !ok {
			return model.Conversation{}, fmt.Errorf("room %q: %w", id, chaterr.ErrInvalid)
		}
		a, errA := strconv.ParseInt(low, 10, 64)
		b, errB := strconv.ParseInt(high, 10, 64)
		if errA != nil || errB != nil || a >= b {
			return model.Conversation{}, fmt.Errorf("room %q: %w", id, chaterr.ErrInvalid)
		}
		return model.Individual(a, b), nil
	}
	return model.Conversation{}, fmt.Errorf("room %q: %w", id, chaterr.ErrInvalid)
}
