package ledger

// Require enforces the allowed-role set of an operation. It runs before any
// engine logic, so a disallowed caller can never cause a partial mutation.
func Require(sess Session, operation string, allowed ...Role) error {
	for _, r := range allowed {
		if sess.Role == r {
			return nil
		}
	}
	return &ForbiddenError{Role: sess.Role, Operation: operation}
}

// IsAdmin reports whether the session carries the Admin role.
func IsAdmin(sess Session) bool { return sess.Role == RoleAdmin }
