package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/browser"
	"github.com/dgellow/resumescan/internal/config"
	"github.com/dgellow/resumescan/internal/crypto"
	"github.com/dgellow/resumescan/internal/idp"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/logout"
	"github.com/dgellow/resumescan/internal/metrics"
	"github.com/dgellow/resumescan/internal/session"
	"github.com/dgellow/resumescan/internal/storage"
)

// app is one wired client context
type app struct {
	cfg     config.Config
	store   storage.Store
	nav     *browser.Loopback
	tracker *authmethod.Tracker
	logout  *logout.Coordinator
	session *session.Session
	metrics *metrics.Collector
	closers []func() error
}

func buildApp(ctx context.Context, cfg config.Config, onUserChange func(*backend.User)) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.NewCollector()}

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	nav, err := browser.NewLoopback(cfg.RedirectOrigin)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("redirectOrigin: %w", err)
	}
	a.nav = nav

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	clientOpts := []backend.Option{backend.WithHTTPClient(httpClient)}
	if cfg.RateLimit.PerSecond > 0 {
		clientOpts = append(clientOpts, backend.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst))
	}
	client, err := backend.NewClient(cfg.BackendURL, clientOpts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("backendURL: %w", err)
	}

	a.tracker = authmethod.NewTracker(store, authmethod.WithTTL(cfg.AuthMethodTTL))
	a.logout = logout.NewCoordinator(store, a.tracker, logout.WithHTTPClient(httpClient))

	adapters := idp.Options{
		GoogleClientID:   cfg.Google.ClientID,
		LinkedInClientID: cfg.LinkedIn.ClientID,
		Backend:          client,
		Store:            store,
		Navigator:        nav,
		Codes:            nav,
	}
	email, google, linkedin, err := buildAdapters(adapters)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.session, err = session.New(session.Deps{
		Store:         store,
		Tracker:       a.tracker,
		Backend:       client,
		Email:         email,
		Google:        google,
		LinkedIn:      linkedin,
		Logout:        a.logout,
		Metrics:       a.metrics,
		EnforceExpiry: cfg.EnforceAuthExpiry,
		OnUserChange:  onUserChange,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.LogDebugWithFields("cli", "Client context ready", map[string]any{
		"storage":    string(cfg.Storage),
		"context_id": cfg.ContextID,
		"backend":    cfg.BackendURL,
	})
	return a, nil
}

func buildAdapters(opts idp.Options) (idp.CredentialAdapter, idp.Adapter, idp.RedirectAdapter, error) {
	build := func(m authmethod.Method) (idp.Adapter, error) {
		ad, err := idp.NewAdapter(m, opts)
		if err != nil {
			return nil, fmt.Errorf("%s adapter: %w", m, err)
		}
		return ad, nil
	}

	e, err := build(authmethod.MethodEmail)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := build(authmethod.MethodGoogle)
	if err != nil {
		return nil, nil, nil, err
	}
	l, err := build(authmethod.MethodLinkedIn)
	if err != nil {
		return nil, nil, nil, err
	}

	email, ok := e.(idp.CredentialAdapter)
	if !ok {
		return nil, nil, nil, fmt.Errorf("email adapter does not accept credentials")
	}
	linkedin, ok := l.(idp.RedirectAdapter)
	if !ok {
		return nil, nil, nil, fmt.Errorf("linkedin adapter does not support redirects")
	}
	return email, g, linkedin, nil
}

// openStore creates the configured token store and its cleanup, if any
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func() error, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil, nil

	case config.StorageFile:
		var opts []storage.FileStoreOption
		if cfg.EncryptionKey != "" {
			sealer, err := crypto.NewSealer([]byte(cfg.EncryptionKey))
			if err != nil {
				return nil, nil, fmt.Errorf("encryption key: %w", err)
			}
			opts = append(opts, storage.WithSealer(sealer))
		}
		s, err := storage.NewFileStore(cfg.StoragePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case config.StorageFirestore:
		s, err := storage.NewFirestoreStore(ctx, cfg.Firestore.Project, cfg.Firestore.Database,
			cfg.Firestore.Collection, cfg.ContextID)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.StorageRedis:
		s, err := storage.NewRedisStore(ctx, string(cfg.Redis.URL), cfg.ContextID)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

// Close flushes metrics and releases the store
func (a *app) Close() error {
	var errs []error
	if a.cfg.MetricsFile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
