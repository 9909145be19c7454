package session

// Role is fixed when a session starts and kept until it is reset.
type Role int

const (
	RoleUnassigned Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "unassigned"
	}
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseConnected
	PhaseLeaving
)

func (p Phase) String() string {
	switch p {
	case PhaseJoining:
		return "joining"
	case PhaseConnected:
		return "connected"
	case PhaseLeaving:
		return "leaving"
	default:
		return "idle"
	}
}

var transitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseJoining},
	PhaseJoining:   {PhaseConnected, PhaseLeaving},
	PhaseConnected: {PhaseLeaving},
	PhaseLeaving:   {PhaseIdle},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}
