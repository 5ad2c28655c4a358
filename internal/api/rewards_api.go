package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/navigate-learning/navigate/internal/domain"
)

// liveHeartbeat keeps idle SSE connections open through proxies.
var liveHeartbeat = 25 * time.Second

// ─── Catalog ────────────────────────────────────────────────────────────────

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": s.svc.Ledger.Rules().Store,
	})
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tiers": s.svc.Ledger.Rules().Tiers,
	})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": s.svc.Ledger.Rules().Achievements,
	})
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Ledger.Summary(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	hist, err := s.svc.Ledger.History(r.Context(), userID(r), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": hist,
	})
}

type rewardEventRequest struct {
	Event string              `json:"event" validate:"required"`
	Meta  domain.ActivityMeta `json:"meta"`
}

func (s *Server) handleRewardEvent(w http.ResponseWriter, r *http.Request) {
	var req rewardEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.svc.Ledger.Record(r.Context(), userID(r), domain.RewardEventType(req.Event), req.Meta)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type redeemRequest struct {
	ItemID string `json:"item_id" validate:"required"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Ledger.Redeem(r.Context(), userID(r), req.ItemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	switch {
	case res.OK:
	case res.Reason == domain.RedeemNotFound:
		status = http.StatusNotFound
	default:
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

// ─── Live updates ───────────────────────────────────────────────────────────

// handleRewardsLive streams the caller's ledger updates as SSE "updated" events.
func (s *Server) handleRewardsLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	updates, cancel := s.svc.Ledger.Bus().Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	me := userID(r)
	heartbeat := time.NewTicker(liveHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.UserID != me {
				continue
			}
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: updated\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
