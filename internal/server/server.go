// Package server assembles the running service: store, tool client, advisor,
// HTTP API, scheduler, and alerts, with signal-driven shutdown.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pennywiseapp/pennywise/internal/advisor"
	"github.com/pennywiseapp/pennywise/internal/alerts"
	"github.com/pennywiseapp/pennywise/internal/config"
	"github.com/pennywiseapp/pennywise/internal/httpapi"
	"github.com/pennywiseapp/pennywise/internal/sched"
	"github.com/pennywiseapp/pennywise/internal/store"
	"github.com/pennywiseapp/pennywise/internal/toolclient"
)

const shutdownTimeout = 5 * time.Second

// Options carries test seams.
type Options struct {
	// Completer overrides the configured LLM provider.
	Completer advisor.Completer
	// SignalChan replaces the OS signal subscription.
	SignalChan chan os.Signal
}

type Server struct {
	cfg      *config.Config
	store    *store.Store
	tools    *toolclient.Client
	notifier *alerts.Notifier
	sched    *sched.Service
	httpSrv  *http.Server

	signalChan chan os.Signal
}

// New connects the store and wires every component. The caller owns the
// lifecycle via Run.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	return NewWithOptions(ctx, cfg, Options{})
}

func NewWithOptions(ctx context.Context, cfg *config.Config, opts Options) (*Server, error) {
	s := &Server{cfg: cfg, signalChan: opts.SignalChan}

	st, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	s.store = st

	command, err := toolCommand(cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	tools, err := toolclient.New(toolclient.Options{
		Command:    command,
		MaxWorkers: cfg.Tools.MaxWorkers,
	})
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("create tool client: %w", err)
	}
	s.tools = tools

	completer := opts.Completer
	if completer == nil {
		completer, err = advisor.NewCompleter(cfg.Provider)
		if err != nil {
			_ = st.Close(ctx)
			return nil, err
		}
	}
	adv := advisor.New(tools, completer, time.Duration(cfg.Tools.TimeoutSeconds)*time.Second)

	notifier, err := alerts.NewNotifier(cfg.Alerts)
	if err != nil {
		_ = st.Close(ctx)
		return nil, fmt.Errorf("create notifier: %w", err)
	}
	s.notifier = notifier

	if cfg.Sched.Enabled {
		s.sched = sched.NewService(cfg.Sched, sched.StoreData{Store: st}, adv, notifier)
	}

	api := &httpapi.API{
		Incomes:     st.Incomes,
		Expenses:    st.Expenses,
		Taxes:       st.Taxes,
		Investments: st.Investments,
		Projects:    st.Projects,
		Tenants:     st.Tenants,
		Dash:        st,
		Adviser:     adv,
		Tokens:      cfg.Server.Tokens,
	}
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Router(),
	}

	return s, nil
}

// toolCommand resolves the tool server argv. Empty config means re-invoking
// the current binary with the toolserver subcommand.
func toolCommand(cfg *config.Config) ([]string, error) {
	if len(cfg.Tools.Command) > 0 {
		return cfg.Tools.Command, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable for tool server: %w", err)
	}
	return []string{self, "toolserver"}, nil
}

// Run serves until the context is cancelled or a termination signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.sched != nil {
		if err := s.sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := s.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}

	select {
	case err := <-errCh:
		_ = s.Shutdown()
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
		log.Printf("[server] shutting down...")
	case <-ctx.Done():
		log.Printf("[server] context cancelled, shutting down...")
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Printf("[server] http shutdown warning: %v", err)
	}
	if s.sched != nil {
		s.sched.Stop()
	}
	if err := s.store.Close(ctx); err != nil {
		log.Printf("[server] store close warning: %v", err)
	}
	log.Printf("[server] shutdown complete")
	return nil
}
