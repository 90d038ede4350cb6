package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"pastrio/cfg"
	"pastrio/pkg/domain"
	"pastrio/svc/svc"
)

const sessionCookieName = "sid"

type AuthHdl struct {
	auth  *svc.Auth
	cfg   *cfg.Cfg
	codec *CookieCodec
}

func (h *AuthHdl) RegisterPage(w http.ResponseWriter, r *http.Request) {
	renderRegister(w, http.StatusOK, "")
}

func (h *AuthHdl) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderLogin(w, http.StatusOK, "")
}

// Register handles POST /register: form-encoded credentials, redirect on
// success, re-rendered form with the error on failure.
func (h *AuthHdl) Register(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if err := r.ParseForm(); err != nil {
		renderRegister(w, http.StatusBadRequest, "Invalid form submission")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	token, _, err := h.auth.Register(r.Context(), username, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			renderRegister(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, domain.ErrInvalidRequest):
			renderRegister(w, http.StatusBadRequest, "Username and password are required (password at least 8 characters)")
		default:
			log.Error().Err(err).Msg("registration failed")
			renderError(w, http.StatusInternalServerError, "Server Error", "Unable to register.")
		}
		return
	}
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Login handles POST /login.
func (h *AuthHdl) Login(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if err := r.ParseForm(); err != nil {
		renderLogin(w, http.StatusBadRequest, "Invalid form submission")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	token, _, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			renderLogin(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		log.Error().Err(err).Msg("login failed")
		renderError(w, http.StatusInternalServerError, "Server Error", "Unable to login.")
		return
	}
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /logout: destroys the server-side session and clears
// the cookie, then redirects home.
func (h *AuthHdl) Logout(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if err := h.auth.Logout(r.Context(), sessionToken(r, h.codec)); err != nil {
		log.Warn().Err(err).Msg("session destroy failed")
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type meResp struct {
	Success bool   `json:"success"`
	Data    meData `json:"data"`
}

type meData struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// Me handles GET /api/me, a requireAuth-gated JSON endpoint.
func (h *AuthHdl) Me(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	user, err := h.auth.CurrentUser(r.Context(), sessionToken(r, h.codec))
	if err != nil {
		if errors.Is(err, domain.ErrAuthRequired) {
			writeJSONErr(w, domain.ErrAuthRequired)
			return
		}
		log.Error().Err(err).Msg("failed to load current user")
		writeJSONErr(w, domain.ErrStore)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meResp{
		Success: true,
		Data:    meData{UserID: user.ID, Username: user.Username},
	})
}

func (h *AuthHdl) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    h.codec.Encode(token),
		Path:     "/",
		MaxAge:   int(h.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.Environment == "production",
	})
}

func (h *AuthHdl) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.Environment == "production",
	})
}
