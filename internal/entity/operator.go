package entity

import "time"

// Operator is an authorized submitter, unique per chat identity.
type Operator struct {
	ID           int64     `json:"id"`
	TgID         int64     `json:"tg_id"`
	Handle       *string   `json:"handle,omitempty"`
	Nickname     *string   `json:"nickname,omitempty"`
	RegisteredBy *int64    `json:"registered_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName prefers the nickname, then the handle.
func (o Operator) DisplayName() string {
	if o.Nickname != nil && *o.Nickname != "" {
		return *o.Nickname
	}
	if o.Handle != nil && *o.Handle != "" {
		return "@" + *o.Handle
	}
	return ""
}

// SeenUser is a chat identity that has interacted with the bot at least once.
type SeenUser struct {
	TgID     int64     `json:"tg_id"`
	Handle   string    `json:"handle"`
	LastSeen time.Time `json:"last_seen"`
}
