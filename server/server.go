package server

import (
	"net/http"

	"github.com/jrsteele09/go-user-auth/account"
	"github.com/jrsteele09/go-user-auth/auth"
	"github.com/jrsteele09/go-user-auth/internal/config"
	"github.com/jrsteele09/go-user-auth/session"
	"github.com/jrsteele09/go-user-auth/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RedirectCallback decides the post-action destination for a request. The
// core returns outcomes; where the user lands afterwards is the caller's
// policy, so the callback is a required constructor argument.
type RedirectCallback func(r *http.Request) string

// Deps holds the collaborators the server dispatches to.
type Deps struct {
	Engine   *auth.Engine
	Accounts *account.Service
	Sessions *session.Manager
	Tokens   *token.Creator
}

// Server is the HTTP controller layer: it binds forms, dispatches to the
// engine and mutation service, and shapes redirects and flash outcomes.
type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps
	logger zerolog.Logger

	redirectCallback RedirectCallback
}

// New creates the server and registers its routes.
func New(cfg config.Config, deps Deps, redirectCallback RedirectCallback, logger zerolog.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("[Server New] authentication engine is required")
	}
	if deps.Accounts == nil {
		return nil, errors.New("[Server New] account service is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[Server New] session manager is required")
	}
	if redirectCallback == nil {
		return nil, errors.New("[Server New] redirectCallback is required")
	}

	s := &Server{
		mux:              http.NewServeMux(),
		config:           cfg,
		deps:             deps,
		logger:           logger,
		redirectCallback: redirectCallback,
	}
	s.env = cfg.GetEnv()
	s.initRoutes()
	return s, nil
}

// DefaultRedirect sends users to the configured post-login route, honoring
// the request's redirect parameter when the policy allows it.
func DefaultRedirect(cfg config.Config) RedirectCallback {
	return func(r *http.Request) string {
		if cfg.GetUseRedirectParameter() {
			if redirect := redirectParam(r); redirect != "" {
				return redirect
			}
		}
		return cfg.GetLoginRedirectRoute()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Routes returns the registered route patterns.
func (s *Server) Routes() []string {
	return s.routes
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	standard := []func(http.HandlerFunc) http.HandlerFunc{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
	}

	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), standard...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), standard...))
	s.RegisterRouteFunc("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), standard...))
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), standard...))

	authed := append(standard, s.RequireSessionAuth())
	s.RegisterRouteFunc("GET "+RouteUser, ChainMiddleware(s.UserHandler(), authed...))
	s.RegisterRouteFunc("POST "+RouteChangePassword, ChainMiddleware(s.ChangePasswordHandler(), authed...))
	s.RegisterRouteFunc("POST "+RouteChangeEmail, ChainMiddleware(s.ChangeEmailHandler(), authed...))

	api := append(standard, s.RequireAuth())
	s.RegisterRouteFunc("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), api...))
}
