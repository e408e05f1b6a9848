package entity

import "time"

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// RelationshipRequest is a directional friend request. The pair (Requester, Target)
// is the unique key; (a,b) and (b,a) are independent rows.
type RelationshipRequest struct {
	Requester string        `gorm:"primaryKey" json:"requester"`
	Target    string        `gorm:"primaryKey" json:"target"`
	Status    RequestStatus `gorm:"not null;index" json:"status"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

// Other returns the identity on the opposite side of the request from user.
func (r *RelationshipRequest) Other(user string) string {
	if r.Requester == user {
		return r.Target
	}
	return r.Requester
}
