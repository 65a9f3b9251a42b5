package stock

import "quantum-stock/internal/auth"

// Access is the outcome of the stock screen's role check
type Access int

const (
	AccessChecking Access = iota // identity provider not initialized yet
	AccessLogin                  // no session: send the user to login
	AccessDenied                 // signed in without the admin role: send home
	AccessGranted
)

func (a Access) String() string {
	switch a {
	case AccessLogin:
		return "login"
	case AccessDenied:
		return "denied"
	case AccessGranted:
		return "granted"
	default:
		return "checking"
	}
}

// CheckAccess decides whether session may open the stock screen
func CheckAccess(session auth.Session) Access {
	if !session.Authenticated() {
		return AccessLogin
	}
	if !session.IsAdmin() {
		return AccessDenied
	}
	return AccessGranted
}
