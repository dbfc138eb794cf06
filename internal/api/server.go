// Package api implements the HTTP surface of the run service: submit a
// dataset and scenario, poll or stream the run, fetch exported results.
package api

import (
	"context"
	"os"
	"strings"

	"transpath/internal/auth"
	"transpath/internal/integrations"
	"transpath/internal/integrations/fsdir"
	"transpath/internal/lp"
	"transpath/internal/solve"
	"transpath/internal/store"
	"transpath/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Pub     *webhooks.Publisher
	Auth    *auth.Verifier
	Broker  EventBroker
	Sources *integrations.Registry

	// Solver runs one assembled model; tests stub it.
	Solver func(m *lp.Model, opts solve.Options) (*solve.Result, error)

	limiter *ipLimiter
}

// NewServer wires the server from the environment. Without DATABASE_URL the
// in-memory store is used; without REDIS_URL events stay in-process.
func NewServer() (*Server, error) {
	var s store.Store
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if err := sp.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		s = sp
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	datasetsDir := os.Getenv("DATASETS_DIR")
	if datasetsDir == "" {
		datasetsDir = "datasets"
	}

	return &Server{
		Store:   s,
		Pub:     webhooks.NewPublisher(s),
		Auth:    auth.NewVerifierFromEnv(),
		Broker:  broker,
		Sources: integrations.NewRegistry(fsdir.New(datasetsDir)),
		Solver:  solve.Run,
		limiter: newIPLimiterFromEnv(),
	}, nil
}

// NewWebhookWorker creates the background worker draining the delivery queue.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
