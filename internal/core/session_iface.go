package core

import "github.com/dkeye/roomlink/internal/domain"

// SessionID names one attached endpoint for its whole lifetime.
type SessionID string

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	SID() SessionID
	Meta() *domain.Member
	Endpoint() Endpoint
}
