package domain

// SessionState is the process-wide validity of the authenticated session.
type SessionState string

const (
	SessionValid   SessionState = "valid"
	SessionExpired SessionState = "expired"
)

func (s SessionState) String() string { return string(s) }

func (s SessionState) IsValid() bool {
	return s == SessionValid || s == SessionExpired
}
