package domain

import "time"

// AuthOperation names the orchestrator use case an audit event belongs to.
type AuthOperation string

const (
	OpLogin    AuthOperation = "login"
	OpLoginCPF AuthOperation = "login_cpf"
	OpRefresh  AuthOperation = "refresh"
	OpLogout   AuthOperation = "logout"
)

// AuthEvent is an audit record of a single orchestrator outcome.
// Outcome is "success" or the failing error kind.
type AuthEvent struct {
	ID         string
	Operation  AuthOperation
	Outcome    string
	CallerID   string
	SubjectID  string
	OccurredAt time.Time
}
