package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/domain"
)

// LobbyHandler serves the lobby lifecycle endpoints.
type LobbyHandler struct {
	service *app.TriviaService
	logger  *slog.Logger
}

func NewLobbyHandler(service *app.TriviaService, logger *slog.Logger) *LobbyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LobbyHandler{service: service, logger: logger}
}

type createLobbyRequest struct {
	HostID string `json:"hostId"`
}

type addPlayerRequest struct {
	RiotID string `json:"riotId"`
}

type startResponse struct {
	LobbyID string `json:"lobbyId"`
	Started bool   `json:"started"`
}

func (h *LobbyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLobbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lobby, err := h.service.CreateLobby(r.Context(), req.HostID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lobby)
}

func (h *LobbyHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetLobby(r.Context(), chi.URLParam(r, "lobbyID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *LobbyHandler) AddPlayer(w http.ResponseWriter, r *http.Request) {
	var req addPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lobby, err := h.service.AddPlayer(r.Context(), chi.URLParam(r, "lobbyID"), req.RiotID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lobby)
}

// RemovePlayer expects the riot id path-escaped, e.g. Faker%23KR1.
func (h *LobbyHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := url.PathUnescape(chi.URLParam(r, "playerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	lobby, err := h.service.RemovePlayer(r.Context(), chi.URLParam(r, "lobbyID"), playerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lobby)
}

func (h *LobbyHandler) Start(w http.ResponseWriter, r *http.Request) {
	lobbyID := chi.URLParam(r, "lobbyID")
	if err := h.service.StartGame(r.Context(), lobbyID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{LobbyID: lobbyID, Started: true})
}

func (h *LobbyHandler) EndGame(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndGame(r.Context(), chi.URLParam(r, "lobbyID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LobbyHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("lobby request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRiotID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrLobbyNotFound), errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyLobby), errors.Is(err, domain.ErrNoActiveGame):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStatsUnavailable), errors.Is(err, domain.ErrProviderRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, domain.ErrorPayload{Message: message})
}
