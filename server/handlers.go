package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/store"
)

const defaultWithinRadius = 500

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warnf("unable to write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	n := store.NearestCount
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid n %q", raw))
			return
		}
		n = parsed
	}
	vehicles, err := s.store.Nearest(n)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(vehicles))
}

func (s *Server) handleWithin(w http.ResponseWriter, r *http.Request) {
	radius := float64(defaultWithinRadius)
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid radius %q", raw))
			return
		}
		radius = parsed
	}
	vehicles, err := s.store.Within(radius)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(vehicles))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var pos anonapi.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid position: %w", err))
		return
	}
	if pos.Lat < -90 || pos.Lat > 90 || pos.Lon < -180 || pos.Lon > 180 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("position out of range"))
		return
	}
	if err := s.store.SetPosition(pos); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("ws upgrade error: %v", err)
		return
	}
	c := s.hub.register(conn)

	snap, err := s.store.Snapshot()
	if err != nil {
		s.logger.Warnf("unable to read snapshot: %v", err)
		return
	}
	if err := s.hub.send(c, snap); err != nil {
		s.logger.Debugf("unable to send snapshot: %v", err)
	}
}

func nonNil(vehicles []anonapi.AvailableVehicle) []anonapi.AvailableVehicle {
	if vehicles == nil {
		return []anonapi.AvailableVehicle{}
	}
	return vehicles
}
