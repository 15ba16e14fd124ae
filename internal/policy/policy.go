// Package policy decides which party of a connection may perform which
// lifecycle action. It is pure and stateless: callers load the connection and
// pass the authenticated actor explicitly.
package policy

import "github.com/tbourn/skillswap-connections/internal/domain"

// Action is a lifecycle operation subject to authorization.
type Action string

const (
	Accept Action = "accept"
	Reject Action = "reject"
	Cancel Action = "cancel"
	// Disconnect is reserved for tearing down an accepted connection. It is
	// not exposed over HTTP.
	Disconnect Action = "disconnect"
)

// Permit reports whether actor may perform action on conn.
//
//   - Accept, Reject: actor must be the receiver.
//   - Cancel: the connection must be pending and actor must be the sender.
//   - Disconnect: the connection must be accepted and actor must be a party.
//
// Unknown actions and a nil connection are always denied.
func Permit(actor string, action Action, conn *domain.Connection) bool {
	if conn == nil || actor == "" {
		return false
	}
	switch action {
	case Accept, Reject:
		return IsReceiver(actor, conn)
	case Cancel:
		return conn.Status == domain.StatusPending && IsSender(actor, conn)
	case Disconnect:
		return conn.Status == domain.StatusAccepted && IsParty(actor, conn)
	default:
		return false
	}
}

// IsSender reports whether actor initiated conn.
func IsSender(actor string, conn *domain.Connection) bool {
	return conn != nil && actor != "" && conn.SenderID == actor
}

// IsReceiver reports whether actor is the addressee of conn.
func IsReceiver(actor string, conn *domain.Connection) bool {
	return conn != nil && actor != "" && conn.ReceiverID == actor
}

// IsParty reports whether actor is either side of conn.
func IsParty(actor string, conn *domain.Connection) bool {
	return IsSender(actor, conn) || IsReceiver(actor, conn)
}
