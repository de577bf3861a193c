// Package app wires config, logging, the hub, and the HTTP surface into a
// runnable server process.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ZapChainDev/Strangerthings/internal/hub"
	"github.com/ZapChainDev/Strangerthings/internal/profile"
	"github.com/ZapChainDev/Strangerthings/internal/ws"
)

// Run starts the server and blocks until the context is cancelled.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.LogFile, cfg.Debug)
	defer logger.Sync()

	h := hub.New(logger)
	for _, roomID := range cfg.DefaultRooms {
		h.CreateRoom(roomID, cfg.RoomCapacity)
	}

	scheduler := hub.NewScheduler(h, cfg.TickRate)
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	go scheduler.Run(schedulerCtx)

	gateway := ws.NewHandler(h, profile.NewMemoryStore(), logger)
	mux := newMux(h, gateway, cfg, logger)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", cfg.Addr, "tickRate", cfg.TickRate, "rooms", cfg.DefaultRooms)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newMux(h *hub.Hub, gateway *ws.Handler, cfg Config, logger *zap.SugaredLogger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.Handle)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.Telemetry().Snapshot())
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Status     string `json:"status"`
			ServerTime int64  `json:"serverTime"`
			TickRate   int    `json:"tickRate"`
			Rooms      any    `json:"rooms"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   cfg.TickRate,
			Rooms:      h.Diagnostics(),
		}
		writeJSON(w, payload)
	})

	mux.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, h.Listings())
		case http.MethodPost:
			var body struct {
				ID       string `json:"id"`
				Capacity int    `json:"capacity"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
			room, created := h.CreateRoom(body.ID, body.Capacity)
			if created {
				logger.Infow("room created via api", "room", room.ID())
			}
			writeJSON(w, hub.RoomListing{ID: room.ID(), Capacity: room.Capacity()})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
