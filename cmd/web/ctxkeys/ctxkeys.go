package ctxkeys

type Key int

const (
	AccessLevel Key = iota
	Session         // *auth.Session of a validated, non-revoked cookie
)
