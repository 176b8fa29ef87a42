package models

import (
	"bytes"
	"encoding/json"
)

// Friend request statuses.
const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestDeclined = "declined"
)

// UserRef is a user reference that the API returns either as a bare id or as
// a populated user object.
type UserRef struct {
	ID   string
	User *User
}

// UnmarshalJSON accepts both `"id"` and `{"_id": "id", ...}`.
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: id}
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return err
	}
	*r = UserRef{ID: u.ID, User: &u}
	return nil
}

// MarshalJSON writes the populated user when known, the bare id otherwise.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	return json.Marshal(r.ID)
}

// FriendRequest is a pending or resolved friendship request.
type FriendRequest struct {
	ID     string  `json:"_id"`
	From   UserRef `json:"from"`
	To     UserRef `json:"to"`
	Status string  `json:"status"`
}

// FriendRequests groups incoming and outgoing requests.
type FriendRequests struct {
	Incoming []FriendRequest `json:"incoming"`
	Outgoing []FriendRequest `json:"outgoing"`
}
