package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/bridges/knxip"
	"github.com/nerrad567/gray-logic-knxip/internal/knx"
	"github.com/nerrad567/gray-logic-knxip/internal/tunnel"
)

// sendTimeout bounds one POST /telegrams round trip to the session.
const sendTimeout = 5 * time.Second

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	knxip.HealthMessage
	WebSocketClients int `json:"websocket_clients"`
}

// TelegramRequest is the body of POST /telegrams.
//
//	{"ga": "1/2/3", "value": 21.5}
//	{"ga": "1/1/1", "value": true, "dpt": "1.001"}
//	{"ga": "1/2/3", "read": true}
type TelegramRequest struct {
	GA string `json:"ga"`
	knxip.CommandMessage
}

// TelegramResponse acknowledges a sent telegram.
type TelegramResponse struct {
	GA   string `json:"ga"`
	Read bool   `json:"read,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := s.session.Stats()
	status, reason := knxip.SessionStatus(stats.State)
	msg := knxip.NewHealthMessage(s.session.ID(), s.version, status, stats, s.startTime)
	msg.Reason = reason

	writeJSON(w, http.StatusOK, StatusResponse{
		HealthMessage:    msg,
		WebSocketClients: s.hub.ClientCount(),
	})
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeUnavailable(w, "inventory requires the database")
		return
	}
	list, err := s.inventory.GroupAddresses(r.Context())
	writeList(w, s, list, err)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeUnavailable(w, "inventory requires the database")
		return
	}
	list, err := s.inventory.Devices(r.Context())
	writeList(w, s, list, err)
}

func (s *Server) handleGateways(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeUnavailable(w, "inventory requires the database")
		return
	}
	list, err := s.inventory.Gateways(r.Context())
	writeList(w, s, list, err)
}

// writeList renders an inventory query, with an empty array for no rows.
func writeList[T any](w http.ResponseWriter, s *Server, list []T, err error) {
	if err != nil {
		s.logger.Error("inventory query failed", "error", err)
		writeInternalError(w, "inventory query failed")
		return
	}
	if list == nil {
		list = []T{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSendTelegram(w http.ResponseWriter, r *http.Request) {
	if s.commander == nil {
		writeUnavailable(w, "sending is not enabled")
		return
	}

	var req TelegramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	ga, err := knx.ParseGroupAddress(req.GA)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()

	if err := s.commander.Command(ctx, ga, req.CommandMessage); err != nil {
		switch {
		case errors.Is(err, knxip.ErrInvalidCommand):
			writeBadRequest(w, err.Error())
		case errors.Is(err, knxip.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
		case errors.Is(err, tunnel.ErrInvalidState), errors.Is(err, tunnel.ErrClosed):
			writeUnavailable(w, err.Error())
		default:
			s.logger.Warn("telegram send failed", "ga", ga.String(), "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeBusError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, TelegramResponse{GA: ga.String(), Read: req.Read})
}
