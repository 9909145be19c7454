package core

import "github.com/dkeye/roomlink/internal/domain"

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	sid  SessionID
	meta *domain.Member
	ep   Endpoint
}

func NewMemberSession(sid SessionID, meta *domain.Member, ep Endpoint) MemberSession {
	return &memberSession{sid: sid, meta: meta, ep: ep}
}

func (m *memberSession) SID() SessionID       { return m.sid }
func (m *memberSession) Meta() *domain.Member { return m.meta }
func (m *memberSession) Endpoint() Endpoint   { return m.ep }
