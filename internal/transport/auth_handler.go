package transport

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	msgLoginFailed  = "No se pudo iniciar sesión. Inténtalo de nuevo."
	loginPath       = "/auth/login"
	returnParam     = "return"
	stateCookie     = "qs_oauth"
	stateCookieLife = 10 * time.Minute
)

// LoginPath is the address that signs the user in and comes back to returnTo
func LoginPath(returnTo string) string {
	return loginPath + "?" + url.Values{returnParam: {returnTo}}.Encode()
}

// localPath keeps redirects on this site
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return stockPath
	}
	return p
}

// AuthHandler runs the authorization code flow against Keycloak and keeps
// the access token in the session cookie read by the page middleware
type AuthHandler struct {
	oauth         *oauth2.Config
	parser        *auth.Parser
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies restricts cookies to HTTPS.
func NewAuthHandler(oauth *oauth2.Config, parser *auth.Parser, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{oauth: oauth, parser: parser, secureCookies: secureCookies, logger: logger}
}

// RegisterRoutes registers the login, callback and logout endpoints
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Login)
		r.Get("/callback", h.Callback)
		r.Post("/logout", h.Logout)
	})
}

// loginState travels in a short-lived cookie between login and callback
type loginState struct {
	state    string
	verifier string
	returnTo string
}

func (s loginState) encode() string {
	return s.state + "." + s.verifier + "." + base64.RawURLEncoding.EncodeToString([]byte(s.returnTo))
}

func decodeLoginState(v string) (loginState, bool) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return loginState{}, false
	}
	returnTo, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return loginState{}, false
	}
	return loginState{state: parts[0], verifier: parts[1], returnTo: localPath(string(returnTo))}, true
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Login sends the browser to the Keycloak login page
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.logger.Error("Failed to create login state", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, msgLoginFailed)
		return
	}
	ls := loginState{
		state:    state,
		verifier: oauth2.GenerateVerifier(),
		returnTo: localPath(r.URL.Query().Get(returnParam)),
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    ls.encode(),
		Path:     "/auth",
		MaxAge:   int(stateCookieLife.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth.AuthCodeURL(ls.state, oauth2.S256ChallengeOption(ls.verifier)), http.StatusFound)
}

// Callback exchanges the authorization code, stores the access token in
// the session cookie and returns to the page that asked for login
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		h.logger.Warn("Login callback without state cookie")
		middleware.RespondWithError(w, http.StatusBadRequest, msgLoginFailed)
		return
	}
	ls, ok := decodeLoginState(cookie.Value)
	if !ok || r.URL.Query().Get("state") != ls.state {
		h.logger.Warn("Login callback state mismatch")
		middleware.RespondWithError(w, http.StatusBadRequest, msgLoginFailed)
		return
	}
	h.clearCookie(w, stateCookie, "/auth")

	if e := r.URL.Query().Get("error"); e != "" {
		h.logger.Info("Login refused by identity provider", zap.String("error", e))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.RespondWithError(w, http.StatusBadRequest, msgLoginFailed)
		return
	}

	token, err := h.oauth.Exchange(r.Context(), code, oauth2.VerifierOption(ls.verifier))
	if err != nil {
		h.logger.Error("Failed to exchange authorization code", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, msgLoginFailed)
		return
	}

	session, err := h.parser.Parse(token.AccessToken)
	if err != nil {
		h.logger.Error("Identity provider returned an unusable token", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadGateway, msgLoginFailed)
		return
	}

	expires := token.Expiry
	if !session.ExpiresAt.IsZero() {
		expires = session.ExpiresAt
	}
	sessionCookie := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		sessionCookie.Expires = expires
	}
	http.SetCookie(w, sessionCookie)

	h.logger.Info("User signed in",
		zap.String("subject", session.Subject),
		zap.String("username", session.Username),
		zap.Bool("admin", session.IsAdmin()),
	)
	http.Redirect(w, r, ls.returnTo, http.StatusFound)
}

// Logout drops the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, middleware.SessionCookie, "/")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
