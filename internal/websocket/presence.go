package websocket

import (
	"sort"
	"time"
)

// ActivityTyping is the activity value that marks a participant as typing.
const ActivityTyping = "typing"

type PresenceMeta struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Activity  string    `json:"activity,omitempty"`
	OnlineAt  time.Time `json:"online_at"`
}

type PresenceState struct {
	Others []PresenceMeta `json:"others"`
	Typing []PresenceMeta `json:"typing"`
}

// DerivePresence turns a channel's replicated state (one entry per
// connection) into everyone except selfUserID, one entry per user, plus the
// subset whose activity is typing. A user with several connections counts
// as typing if any of them is.
func DerivePresence(selfUserID string, metas map[string]PresenceMeta) PresenceState {
	byUser := make(map[string]PresenceMeta, len(metas))
	for _, m := range metas {
		if m.UserID == "" || m.UserID == selfUserID {
			continue
		}
		existing, ok := byUser[m.UserID]
		if !ok {
			byUser[m.UserID] = m
			continue
		}
		merged := existing
		if m.OnlineAt.After(existing.OnlineAt) {
			merged = m
		}
		if existing.Activity == ActivityTyping || m.Activity == ActivityTyping {
			merged.Activity = ActivityTyping
		}
		byUser[m.UserID] = merged
	}

	state := PresenceState{
		Others: make([]PresenceMeta, 0, len(byUser)),
		Typing: make([]PresenceMeta, 0),
	}
	for _, m := range byUser {
		state.Others = append(state.Others, m)
	}
	sort.Slice(state.Others, func(i, j int) bool {
		if state.Others[i].Name != state.Others[j].Name {
			return state.Others[i].Name < state.Others[j].Name
		}
		return state.Others[i].UserID < state.Others[j].UserID
	})
	for _, m := range state.Others {
		if m.Activity == ActivityTyping {
			state.Typing = append(state.Typing, m)
		}
	}
	return state
}
