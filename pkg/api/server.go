// Package api exposes the relay over HTTP: cosigner verification, raw
// invoke0 relays, asset transfer helpers, and relay history.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dapperlabs/dapper-relay/pkg/authz"
	"github.com/dapperlabs/dapper-relay/pkg/relay"
	"github.com/dapperlabs/dapper-relay/pkg/store"
)

// WalletHandle is the contract handle the API needs. *contracts.Wallet
// satisfies it.
type WalletHandle interface {
	relay.ProxyWallet
	authz.WalletReader
}

type Server struct {
	wallet  WalletHandle
	relayer *relay.Relayer
	history *store.Store
	sender  string
	router  chi.Router
	server  *http.Server
}

// NewServer wires the HTTP surface over the given wallet handle and relayer.
// history may be nil; the relay listing endpoints then return 404.
func NewServer(wallet WalletHandle, relayer *relay.Relayer, history *store.Store, sender, listenAddr string) *Server {
	s := &Server{
		wallet:  wallet,
		relayer: relayer,
		history: history,
		sender:  sender,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (public, outside /api/v1, for K8s probes)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cosigner/verify", s.handleVerifyCosigner)
		r.Post("/relay", s.handleRelay)

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/eth", s.handleTransferETH)
			r.Post("/erc20", s.handleTransferERC20)
			r.Post("/erc721", s.handleTransferERC721)
			r.Post("/kitty", s.handleTransferKitty)
			r.Post("/punk", s.handleTransferPunk)
		})

		r.Get("/relays", s.handleListRelays)
		r.Get("/relays/{id}", s.handleGetRelay)
	})

	s.router = r
	s.server = &http.Server{
		Addr:         listenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening and returns the underlying *http.Server so the caller
// can orchestrate graceful shutdown via srv.Shutdown(ctx). ListenAndServe runs
// in a goroutine; its error (if any) is sent on the returned channel.
func (s *Server) Start() (*http.Server, <-chan error) {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	return s.server, errCh
}

// Shutdown gracefully drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
