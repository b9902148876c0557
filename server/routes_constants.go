package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteLogin          = "/login"
	RouteLogout         = "/logout"
	RouteRegister       = "/register"
	RouteChangePassword = "/change-password"
	RouteChangeEmail    = "/change-email"
	RouteUser           = "/user"

	// API routes (bearer token)
	RouteAPIMe = "/api/me"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_token"
