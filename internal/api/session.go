package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/virtualchime/chime-core/internal/appstate"
	"github.com/virtualchime/chime-core/internal/session"
)

// statusResponse is the session status shown to clients.
type statusResponse struct {
	State       string   `json:"state"`
	Description string   `json:"description"`
	Connected   bool     `json:"connected"`
	Subscribed  bool     `json:"subscribed"`
	Host        string   `json:"host"`
	Topic       string   `json:"topic"`
	History     []string `json:"history"`
	HistoryText string   `json:"history_text"`
}

// settingsResponse is the stored broker settings. The password is never
// returned.
type settingsResponse struct {
	Host        string `json:"host"`
	Username    string `json:"username"`
	PasswordSet bool   `json:"password_set"`
}

type settingsRequest struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	// Password is kept unchanged when omitted.
	Password *string `json:"password"`
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type publishRequest struct {
	Message string `json:"message"`
}

// status builds the status body from a single model snapshot.
func (s *Server) status() statusResponse {
	snap := s.session.State().Snapshot()
	history := snap.History
	if history == nil {
		history = []string{}
	}
	return statusResponse{
		State:       snap.State.Name(),
		Description: snap.State.String(),
		Connected:   snap.State.IsConnected(),
		Subscribed:  snap.State.IsSubscribed(),
		Host:        s.session.CurrentHost(),
		Topic:       s.session.Topic(),
		History:     history,
		HistoryText: snap.HistoryText(),
	}
}

// handleStatus returns the connection state and message history.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleGetSettings returns the current broker host and username.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		Host:        s.session.CurrentHost(),
		Username:    s.session.Username(),
		PasswordSet: s.session.Password() != "",
	})
}

// handlePutSettings saves broker settings, rebuilds the client and waits
// for the connection attempt to resolve.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		writeBadRequest(w, "host is required")
		return
	}

	password := s.session.Password()
	if req.Password != nil {
		password = *req.Password
	}

	s.session.Configure(r.Context(), session.Config{
		Host:     req.Host,
		Username: req.Username,
		Password: password,
	})

	if err := s.connectWait(r.Context()); err != nil {
		s.logger.Warn("broker connect after settings save failed", "host", req.Host, "error", err)
		writeBadGateway(w, msgConnectFailed)
		return
	}

	writeJSON(w, http.StatusOK, s.status())
}

// handleConnect connects to the configured broker and waits for the result.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsConfigured() {
		writeConflict(w, "broker not configured")
		return
	}

	if err := s.connectWait(r.Context()); err != nil {
		if errors.Is(err, session.ErrNotConfigured) {
			writeConflict(w, "broker not configured")
			return
		}
		writeBadGateway(w, msgConnectFailed)
		return
	}

	writeJSON(w, http.StatusOK, s.status())
}

// handleDisconnect disconnects from the broker. Always succeeds.
func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.session.Disconnect()
	writeJSON(w, http.StatusOK, s.status())
}

// handleSubscribe requests a subscription. The state changes when the
// broker acknowledges it, so the response is 202.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Topic == "" {
		writeBadRequest(w, "topic is required")
		return
	}
	if !s.session.State().State().IsConnected() {
		writeConflict(w, "not connected to the broker")
		return
	}

	s.session.Subscribe(req.Topic)
	writeJSON(w, http.StatusAccepted, s.status())
}

// handleUnsubscribe requests unsubscription from the given topic, or from
// the current topic when the body is empty or has no topic.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}
	if !s.session.State().State().IsConnected() {
		writeConflict(w, "not connected to the broker")
		return
	}

	if req.Topic == "" {
		if s.session.Topic() == "" {
			writeBadRequest(w, "no current topic to unsubscribe from")
			return
		}
		s.session.UnsubscribeFromCurrentTopic()
	} else {
		s.session.Unsubscribe(req.Topic)
	}
	writeJSON(w, http.StatusAccepted, s.status())
}

// handlePublish publishes a message on the current topic.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !s.session.State().State().IsConnected() {
		writeConflict(w, "not connected to the broker")
		return
	}
	if s.session.Topic() == "" {
		writeConflict(w, "no subscribed topic")
		return
	}

	s.session.Publish(req.Message)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"topic":   s.session.Topic(),
		"message": req.Message,
	})
}

// connectWait bounds session.ConnectWait by the configured connect timeout.
func (s *Server) connectWait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	return s.session.ConnectWait(ctx)
}

// changePayload is the WebSocket event body for a model change.
func changePayload(c appstate.Change, snap appstate.Snapshot) map[string]any {
	payload := map[string]any{
		"state":         c.State.Name(),
		"description":   c.State.String(),
		"history_count": len(snap.History),
	}
	if c.Kind == appstate.MessageReceived {
		payload["message"] = c.Message
	}
	return payload
}
