package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Response represents the API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{Success: true, Message: message, Data: data})
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: false, Message: message})
}

func (h *Handler) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Token") != h.cfg.AdminToken {
			h.sendErrorResponse(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.adminAuthMiddleware)
	api.HandleFunc("/stats", h.handleStats).Methods("GET")

	r.HandleFunc("/ws/events", h.feed.ServeWS)

	return r
}

// StartWebServer serves the operational endpoints: health, purchase stats,
// and the live event feed for the admin dashboard.
func (h *Handler) StartWebServer(ctx context.Context) {
	r := h.router()

	server := &http.Server{
		Addr:         h.cfg.Port,
		Handler:      r,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("web server shutdown failed", zap.Error(err))
		}
	}()

	h.logger.Info("Web server listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("web server failed", zap.Error(err))
	}
}

// handleStats aggregates purchase and loyalty counters.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.purchaseRepo.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to load purchase stats", zap.Error(err))
		h.sendErrorResponse(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	accounts, err := h.loyaltyRepo.CountAccounts(ctx)
	if err != nil {
		h.logger.Error("failed to count accounts", zap.Error(err))
		h.sendErrorResponse(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	stats.TotalAccounts = accounts

	h.sendSuccessResponse(w, "ok", stats)
}
