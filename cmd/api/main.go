package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oakbank/transferd/internal/api"
	"github.com/oakbank/transferd/internal/config"
	"github.com/oakbank/transferd/internal/identity"
	"github.com/oakbank/transferd/internal/store"
	"github.com/oakbank/transferd/internal/transfer"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.DBSource)
	if err != nil {
		slog.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	verifier := identity.NewVerifier(st)
	tokens := identity.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	workflow := transfer.NewManager(st, st, verifier, cfg.DraftTTL)
	defer workflow.Close()

	handler := api.NewHandler(st, workflow, verifier, tokens)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/login", handler.LoginHandler).Methods("POST")

	authed := apiV1.NewRoute().Subrouter()
	authed.Use(handler.Authenticate)
	authed.HandleFunc("/accounts", handler.ListAccountsHandler).Methods("GET")
	authed.HandleFunc("/accounts/{id}", handler.GetAccountHandler).Methods("GET")
	authed.HandleFunc("/accounts/{id}/transactions", handler.ListTransactionsHandler).Methods("GET")
	authed.HandleFunc("/transfers/drafts", handler.CreateDraftHandler).Methods("POST")
	authed.HandleFunc("/transfers/drafts/{id}", handler.GetDraftHandler).Methods("GET")
	authed.HandleFunc("/transfers/drafts/{id}", handler.CancelDraftHandler).Methods("DELETE")
	authed.HandleFunc("/transfers/drafts/{id}/proceed", handler.ProceedDraftHandler).Methods("POST")
	authed.HandleFunc("/transfers/drafts/{id}/dismiss", handler.DismissDraftHandler).Methods("POST")
	authed.HandleFunc("/transfers/drafts/{id}/verify", handler.VerifyDraftHandler).Methods("POST")

	slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
