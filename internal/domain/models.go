// Package domain defines the persistence models for connection requests and
// the cooldown restrictions created when a request is rejected. These types
// are mapped with GORM and form the core data layer of the connections
// service.
package domain

import (
	"time"
)

// ConnectionStatus is the lifecycle state of a Connection.
type ConnectionStatus string

const (
	// StatusPending is the initial state of every connection request.
	StatusPending ConnectionStatus = "pending"
	// StatusAccepted is terminal: the receiver accepted the request.
	StatusAccepted ConnectionStatus = "accepted"
	// StatusRejected is terminal: the receiver rejected the request.
	StatusRejected ConnectionStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ConnectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s ConnectionStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Connection is a directed request from a requester (sender) to the owner of
// a listing (receiver), scoped to that listing.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SenderID: the requesting user.
//   - ReceiverID: owner of PostID at creation time.
//   - PostID: the listing the request is about.
//   - Message: optional free text supplied with the request.
//   - Status: pending, accepted or rejected (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// A cancelled request is hard-deleted, so there is no DeletedAt column: a soft
// delete would keep the (sender_id, post_id) unique slot occupied.
type Connection struct {
	ID         string           `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string           `json:"sender_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_connections_sender_post,priority:1;index:idx_connections_pair,priority:1;check:chk_connections_not_self,sender_id <> receiver_id"`
	ReceiverID string           `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_connections_pair,priority:2;index:idx_connections_receiver_status,priority:1"`
	PostID     string           `json:"post_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_connections_sender_post,priority:2"`
	Message    *string          `json:"message,omitempty" gorm:"type:varchar(4000)"`
	Status     ConnectionStatus `json:"status"      gorm:"type:varchar(16);not null;default:'pending';check:chk_connections_status,status IN ('pending','accepted','rejected');index:idx_connections_receiver_status,priority:2"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Connection.
func (Connection) TableName() string { return "connections" }

// ConnectionRestriction blocks SenderID from requesting PostID again until
// RestrictedUntil. The (sender_id, post_id) pair is unique; a new rejection
// overwrites RestrictedUntil instead of inserting a second row.
type ConnectionRestriction struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	SenderID        string    `json:"sender_id"        gorm:"type:varchar(64);not null;uniqueIndex:ux_restrictions_sender_post,priority:1"`
	PostID          string    `json:"post_id"          gorm:"type:varchar(64);not null;uniqueIndex:ux_restrictions_sender_post,priority:2"`
	RestrictedUntil time.Time `json:"restricted_until" gorm:"not null;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for ConnectionRestriction.
func (ConnectionRestriction) TableName() string { return "connection_restrictions" }

// ActiveAt reports whether the restriction still blocks requests at now.
// The boundary is strict: at exactly RestrictedUntil the block is lifted.
func (r *ConnectionRestriction) ActiveAt(now time.Time) bool {
	return r.RestrictedUntil.After(now)
}
