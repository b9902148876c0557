package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-user-auth/account"
	"github.com/jrsteele09/go-user-auth/auth"
	"github.com/jrsteele09/go-user-auth/identity"
	"github.com/pkg/errors"
)

// LoginPageData is the form-state payload the login page renders from.
type LoginPageData struct {
	Error              string `json:"error,omitempty"`
	Redirect           string `json:"redirect,omitempty"`
	EnableRegistration bool   `json:"enable_registration"`
}

// tokenResponse is the body returned to API-capable clients after a
// successful login or registration.
type tokenResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	IdentityID  string `json:"identity_id"`
}

// LoginPageHandler returns the login form state. An authenticated caller
// is redirected straight to the post-login route.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.hasIdentity(r) {
			http.Redirect(w, r, s.config.GetLoginRedirectRoute(), http.StatusSeeOther)
			return
		}

		writeJSON(w, http.StatusOK, LoginPageData{
			Error:              r.URL.Query().Get("error"),
			Redirect:           s.redirectFromRequest(r),
			EnableRegistration: s.config.GetEnableRegistration(),
		})
	}
}

// LoginHandler processes the login form submission.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.hasIdentity(r) {
			http.Redirect(w, r, s.config.GetLoginRedirectRoute(), http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		identifier := r.PostFormValue("identity")
		secret := r.PostFormValue("credential")

		result, err := s.deps.Engine.Login(r.Context(), identifier, secret)
		if err != nil {
			if errors.Is(err, auth.ErrAuthenticationFailed) {
				// Flash the generic failure and re-present the form (PRG).
				s.redirectToLogin(w, r, result.Message)
				return
			}
			s.logger.Err(err).Msg("login failed")
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}

		s.setSessionCookie(w, result.Session.Token, result.Session.ExpiresAt)
		s.respondAuthenticated(w, r, result.Identity)
	}
}

// LogoutHandler revokes the current session and clears the identity.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if err := s.deps.Engine.Logout(r.Context(), cookie.Value); err != nil {
				s.logger.Err(err).Msg("logout failed")
			}
		}
		s.clearSessionCookie(w)
		http.Redirect(w, r, s.redirectCallback(r), http.StatusSeeOther)
	}
}

// RegisterHandler creates a new identity. With the login-after-registration
// policy enabled the response carries the freshly issued session.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.hasIdentity(r) {
			http.Redirect(w, r, s.config.GetLoginRedirectRoute(), http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		result, err := s.deps.Accounts.Register(r.Context(), account.RegisterRequest{
			Username: r.PostFormValue("username"),
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
		})
		if err != nil {
			s.writeMutationError(w, err)
			return
		}

		if result.Session != nil {
			s.setSessionCookie(w, result.Session.Token, result.Session.ExpiresAt)
			s.respondAuthenticated(w, r, result.Identity)
			return
		}

		// No auto-login: hand the user to the login form.
		s.redirectToLogin(w, r, "")
	}
}

// UserHandler returns the authenticated identity.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, ident)
	}
}

// ChangePasswordHandler re-verifies the old secret, applies the new one
// and redirects back to the form route with a success flash.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		currentToken := ""
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			currentToken = cookie.Value
		}

		_, err := s.deps.Accounts.ChangePassword(r.Context(), account.ChangePasswordRequest{
			IdentityID:   ident.ID,
			OldSecret:    r.PostFormValue("old_password"),
			NewSecret:    r.PostFormValue("new_password"),
			CurrentToken: currentToken,
		})
		if err != nil {
			s.writeMutationError(w, err)
			return
		}

		http.Redirect(w, r, RouteChangePassword+"?status=success", http.StatusSeeOther)
	}
}

// ChangeEmailHandler binds the authenticated identity and requires the
// current secret as proof of presence.
func (s *Server) ChangeEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		_, err := s.deps.Accounts.ChangeEmail(r.Context(), account.ChangeEmailRequest{
			IdentityID:    ident.ID,
			NewEmail:      r.PostFormValue("email"),
			ConfirmSecret: r.PostFormValue("password"),
		})
		if err != nil {
			s.writeMutationError(w, err)
			return
		}

		http.Redirect(w, r, RouteChangeEmail+"?status=success", http.StatusSeeOther)
	}
}

// MeHandler returns the claims of a bearer access token.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, claims)
	}
}

// respondAuthenticated shapes the post-login response: a redirect when the
// flow carries one, otherwise a token payload for API clients.
func (s *Server) respondAuthenticated(w http.ResponseWriter, r *http.Request, ident *identity.Identity) {
	response := tokenResponse{IdentityID: ident.ID}
	if s.deps.Tokens != nil {
		accessToken, err := s.deps.Tokens.Create(ident)
		if err != nil {
			s.logger.Err(err).Msg("failed to mint access token")
		} else {
			response.AccessToken = accessToken
			response.TokenType = "Bearer"
		}
	}

	if s.config.GetUseRedirectParameter() && s.redirectFromRequest(r) != "" {
		http.Redirect(w, r, s.redirectCallback(r), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// writeMutationError maps the core error taxonomy to transport responses.
func (s *Server) writeMutationError(w http.ResponseWriter, err error) {
	var validationErr *account.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": account.OutcomeNeedsInput.String(),
			"fields": validationErr.Fields,
		})
	case errors.Is(err, identity.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"status": account.OutcomeFailure.String(),
			"error":  "already registered",
		})
	case errors.Is(err, account.ErrInvalidOldSecret),
		errors.Is(err, account.ErrInvalidSecret):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"status": account.OutcomeFailure.String(),
			"error":  err.Error(),
		})
	case errors.Is(err, account.ErrRegistrationDisabled):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"status": account.OutcomeFailure.String(),
			"error":  err.Error(),
		})
	case errors.Is(err, identity.ErrStoreUnavailable):
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
	default:
		s.logger.Err(err).Msg("account mutation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// redirectToLogin re-presents the login form, preserving the redirect
// parameter and carrying the flash message in the query (PRG).
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request, flash string) {
	values := url.Values{}
	if flash != "" {
		values.Set("error", flash)
	}
	if redirect := s.redirectFromRequest(r); redirect != "" {
		values.Set("redirect", redirect)
	}
	target := RouteLogin
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// redirectFromRequest pulls the redirect parameter when the policy allows it.
func (s *Server) redirectFromRequest(r *http.Request) string {
	if !s.config.GetUseRedirectParameter() {
		return ""
	}
	return redirectParam(r)
}

// redirectParam reads the redirect target from the form or query. Only
// relative paths are honored, so the login flow cannot be used as an open
// redirector.
func redirectParam(r *http.Request) string {
	redirect := r.PostFormValue("redirect")
	if redirect == "" {
		redirect = r.URL.Query().Get("redirect")
	}
	if redirect == "" || redirect[0] != '/' {
		return ""
	}
	return redirect
}

// hasIdentity reports whether the request carries a valid session cookie.
func (s *Server) hasIdentity(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return false
	}
	_, err = s.deps.Engine.Authenticate(r.Context(), cookie.Value)
	return err == nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionToken string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.env != "DEV",
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
