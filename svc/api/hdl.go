package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"pastrio/cfg"
	"pastrio/pkg/domain"
	"pastrio/svc/svc"
	"pastrio/svc/util"
)

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
}

type createReq struct {
	Content        string `json:"content"`
	ExpirationTime *int   `json:"expirationTime"`
	ExpirationUnit string `json:"expirationUnit"`
	MaxViews       *int   `json:"maxViews"`
}

type createResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Hash    string `json:"hash"`
}

type pasteData struct {
	Hash      string    `json:"hash"`
	Content   string    `json:"content"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
}

type pasteResp struct {
	Success bool      `json:"success"`
	Data    pasteData `json:"data"`
}

// CreatePaste handles POST /api/paste/create. API clients send JSON; the
// index page's form posts the same fields urlencoded.
func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPasteSize*2)
	params, err := decodeCreateParams(r)
	if err != nil {
		if err == io.EOF {
			log.Warn().Msg("empty request body")
		} else {
			log.Warn().Err(err).Msg("invalid create request")
		}
		writeJSONErr(w, domain.ErrInvalidRequest)
		return
	}
	paste, err := h.paste.Create(r.Context(), params)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create paste")
		writeJSONErr(w, err)
		return
	}
	log.Info().
		Str("hash", paste.Hash).
		Bool("has_expiry", paste.ExpiresAt != nil).
		Bool("has_view_cap", paste.MaxViews != nil).
		Msg("paste created")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createResp{
		Success: true,
		Message: "Paste created successfully",
		URL:     h.cfg.BaseURL + "/" + paste.Hash,
		Hash:    paste.Hash,
	})
}

func decodeCreateParams(r *http.Request) (domain.CreateParams, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return domain.CreateParams{}, err
		}
		p := domain.CreateParams{
			Content:        r.PostFormValue("content"),
			ExpirationUnit: r.PostFormValue("expirationUnit"),
		}
		if v := r.PostFormValue("expirationTime"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return domain.CreateParams{}, errors.Wrap(err, "expirationTime")
			}
			p.ExpirationTime = &n
		}
		if v := r.PostFormValue("maxViews"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return domain.CreateParams{}, errors.Wrap(err, "maxViews")
			}
			p.MaxViews = &n
		}
		return p, nil
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.CreateParams{}, err
	}
	return domain.CreateParams{
		Content:        req.Content,
		ExpirationTime: req.ExpirationTime,
		ExpirationUnit: req.ExpirationUnit,
		MaxViews:       req.MaxViews,
	}, nil
}

// ViewPaste handles GET /{hash}: the counting read, rendered as HTML.
func (h *Hdl) ViewPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	hash := chi.URLParam(r, "hash")
	paste, err := h.paste.View(r.Context(), hash)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			renderError(w, http.StatusNotFound, "Paste Not Found",
				"This paste does not exist or has been deleted.")
			return
		}
		if errors.Is(err, domain.ErrPasteExpired) {
			renderError(w, http.StatusNotFound, "Paste Expired",
				"This paste has expired and is no longer available.")
			return
		}
		log.Error().Err(err).Str("hash", hash).Msg("failed to retrieve paste")
		renderError(w, http.StatusInternalServerError, "Server Error",
			"An error occurred while retrieving the paste.")
		return
	}
	log.Info().Str("hash", hash).Int("views", paste.Views).Msg("paste viewed")
	renderPaste(w, paste)
}

// GetPasteJSON handles GET /api/paste/{hash}/json: a non-counting read.
func (h *Hdl) GetPasteJSON(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	hash := chi.URLParam(r, "hash")
	paste, err := h.paste.Peek(r.Context(), hash)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) || errors.Is(err, domain.ErrPasteExpired) {
			writeJSONErr(w, err)
			return
		}
		log.Error().Err(err).Str("hash", hash).Msg("failed to retrieve paste")
		writeJSONErr(w, domain.ErrStore)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pasteResp{
		Success: true,
		Data: pasteData{
			Hash:      paste.Hash,
			Content:   paste.Content,
			Views:     paste.Views,
			CreatedAt: paste.CreatedAt,
		},
	})
}

// writeJSONErr maps a taxonomy error to its status and wire shape. 5xx
// details stay in the log; the client sees a generic message.
func writeJSONErr(w http.ResponseWriter, err error) {
	status := domain.Status(err)
	resp := domain.ToResp(err)
	if status >= 500 {
		resp.Message = "Internal server error"
		util.Error().Err(err).Msg("internal error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
