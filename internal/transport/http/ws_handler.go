package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lol-trivia-service/internal/app"
	"lol-trivia-service/internal/domain"
	"lol-trivia-service/internal/gateway"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 4096
)

// Inbound message types.
const (
	msgJoin         = "join"
	msgLeave        = "leave"
	msgStart        = "start"
	msgSubmitAnswer = "submit-answer"
	msgChat         = "chat-message"
)

type WSHandler struct {
	service  *app.TriviaService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(service *app.TriviaService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	LobbyID  string `json:"lobbyId"`
	PlayerID string `json:"playerId"`
}

type lobbyPayload struct {
	LobbyID string `json:"lobbyId"`
}

type submitPayload struct {
	LobbyID     string `json:"lobbyId"`
	AnswerIndex *int   `json:"answerIndex"`
	AnswerText  string `json:"answerText"`
	Round       int    `json:"round"`
}

type chatPayload struct {
	LobbyID string `json:"lobbyId"`
	Text    string `json:"text"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the trivia use cases.
// ?lobbyId=&riotId= joins the lobby right after the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	client := h.service.Connect()
	log := h.logger.With("client_id", client.ID())
	log.Debug("client connected", "remote", r.RemoteAddr)

	writerDone := make(chan struct{})
	go h.writeLoop(conn, client, log, writerDone)

	defer func() {
		// the request context is gone by now
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.service.Disconnect(ctx, client)
		<-writerDone
		log.Debug("client disconnected")
	}()

	defaultPlayer := r.URL.Query().Get("riotId")
	if lobbyID := r.URL.Query().Get("lobbyId"); lobbyID != "" && defaultPlayer != "" {
		if err := h.service.JoinLobby(r.Context(), client, lobbyID, defaultPlayer); err != nil {
			h.sendError(client, err)
		}
	}

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read error", "err", err)
			}
			return
		}
		h.dispatch(r.Context(), client, defaultPlayer, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *gateway.Client, defaultPlayer string, inbound inboundMessage) {
	switch inbound.Type {
	case msgJoin:
		var p joinPayload
		if !h.decode(client, inbound, &p) {
			return
		}
		if p.PlayerID == "" {
			p.PlayerID = defaultPlayer
		}
		if err := h.service.JoinLobby(ctx, client, p.LobbyID, p.PlayerID); err != nil {
			h.sendError(client, err)
		}
	case msgLeave:
		h.service.LeaveLobby(ctx, client)
	case msgStart:
		var p lobbyPayload
		if !h.decode(client, inbound, &p) {
			return
		}
		if err := h.service.RequestStart(ctx, client, p.LobbyID); err != nil {
			h.sendError(client, err)
		}
	case msgSubmitAnswer:
		var p submitPayload
		if !h.decode(client, inbound, &p) {
			return
		}
		accepted, round, err := h.service.SubmitAnswer(ctx, client, p.LobbyID, p.Round, domain.Answer{
			Index: p.AnswerIndex,
			Text:  p.AnswerText,
		})
		if err != nil {
			h.sendError(client, err)
			return
		}
		h.service.Send(client, domain.Event{Type: domain.EventAnswerAccepted, Payload: domain.AnswerAcceptedPayload{
			Round:    round,
			Accepted: accepted,
		}})
	case msgChat:
		var p chatPayload
		if !h.decode(client, inbound, &p) {
			return
		}
		if err := h.service.SendChat(ctx, client, p.LobbyID, p.Text); err != nil {
			h.sendError(client, err)
		}
	default:
		h.service.Send(client, errorEvent("unsupported message type"))
	}
}

func (h *WSHandler) decode(client *gateway.Client, inbound inboundMessage, out any) bool {
	if len(inbound.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(inbound.Payload, out); err != nil {
		h.service.Send(client, errorEvent("invalid "+inbound.Type+" payload"))
		return false
	}
	return true
}

func (h *WSHandler) sendError(client *gateway.Client, err error) {
	h.service.Send(client, errorEvent(err.Error()))
}

// writeLoop is the only goroutine writing to conn.
func (h *WSHandler) writeLoop(conn *websocket.Conn, client *gateway.Client, log *slog.Logger, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	events := client.Events()
	for {
		select {
		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				log.Debug("ws write error", "err", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func errorEvent(message string) domain.Event {
	return domain.Event{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}}
}
