// Package apphud is the embedding surface of the SDK: construction,
// lifecycle and the public operations over the registered user, paywalls,
// products and rule screens.
package apphud

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/application/command"
	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/domain/service"
	"github.com/apphud/apphud-go/internal/infrastructure/billing"
	"github.com/apphud/apphud-go/internal/infrastructure/config"
	"github.com/apphud/apphud-go/internal/infrastructure/executor"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
	"github.com/apphud/apphud-go/internal/infrastructure/preload"
	"github.com/apphud/apphud-go/internal/infrastructure/rulescache"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

// UserListener receives the authoritative user after every change.
type UserListener func(*entity.User)

type options struct {
	device   command.DeviceInfo
	provider billing.Provider
	verifier billing.PurchaseVerifier
	backend  store.Store
}

// Option customizes SDK construction.
type Option func(*options)

// WithDeviceInfo sets the environment snapshot sent with registration.
func WithDeviceInfo(device command.DeviceInfo) Option {
	return func(o *options) { o.device = device }
}

// WithBillingProvider sets the store metadata provider feeding product
// loading. Without one, product loading settles in failed immediately.
func WithBillingProvider(p billing.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithPurchaseVerifier overrides the purchase token verifier. Without one,
// a GoogleVerifier is built from the configured service account, and
// purchase syncing is unavailable when neither is present.
func WithPurchaseVerifier(v billing.PurchaseVerifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithStore overrides the persistence backend. Mainly for tests.
func WithStore(s store.Store) Option {
	return func(o *options) { o.backend = s }
}

// SDK is the assembled client. Create with New, boot with Start, release
// with Close.
type SDK struct {
	cfg      *config.Config
	backend  store.Store
	cache    *store.Cache
	client   *network.Client
	api      *network.RemoteAPI
	repo     *service.UserRepository
	products *service.ProductsStateMachine
	provider billing.Provider
	verifier billing.PurchaseVerifier
	exec     *executor.Executor

	resolve   *command.ResolveCredentials
	register  *command.RegisterUser
	rules     *command.FetchRuleScreens
	preloader *preload.Preloader
	screens   *rulescache.Cache

	logger *zap.Logger

	mu           sync.Mutex
	creds        command.Credentials
	listeners    []UserListener
	started      bool
	migrationRan bool
}

// New assembles the SDK. No network traffic happens here; Start begins the
// registration flow.
func New(cfg *config.Config, opts ...Option) (*SDK, error) {
	if err := logging.Init(logging.Config{
		Environment: cfg.Environment,
		Verbose:     cfg.VerboseLogging,
		SentryDSN:   cfg.Sentry.DSN,
		Release:     cfg.Sentry.Release,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = newBackend(cfg)
		if err != nil {
			return nil, err
		}
	}

	cache := store.NewCache(backend, cfg.Cache.StalenessWindow)
	current, err := cache.ValidateCaches()
	if err != nil {
		return nil, fmt.Errorf("cache migration failed: %w", err)
	}

	client, err := network.NewClient(cfg.API, cfg.APIKey, cfg.VerboseLogging)
	if err != nil {
		return nil, err
	}
	api := network.NewRemoteAPI(client)

	screens, err := rulescache.New(filepath.Join(cfg.Cache.Dir, "rule_screens"))
	if err != nil {
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider = billing.Unavailable{}
	}

	verifier := o.verifier
	if verifier == nil && cfg.Billing.GoogleServiceAccountJSON != "" {
		verifier, err = billing.NewGoogleVerifier(
			[]byte(cfg.Billing.GoogleServiceAccountJSON), cfg.Billing.PackageName)
		if err != nil {
			return nil, err
		}
	}

	repo := service.NewUserRepository(cache)

	s := &SDK{
		cfg:          cfg,
		backend:      backend,
		cache:        cache,
		client:       client,
		api:          api,
		repo:         repo,
		products:     service.NewProductsStateMachine(),
		provider:     provider,
		verifier:     verifier,
		exec:         executor.New(),
		resolve:      command.NewResolveCredentials(cache),
		register:     command.NewRegisterUser(repo, cache, api, o.device),
		rules:        command.NewFetchRuleScreens(api, screens, func() string { return cache.DeviceID() }),
		preloader:    preload.NewPreloader(client),
		screens:      screens,
		logger:       logging.WithComponent("sdk"),
		migrationRan: !current,
	}
	return s, nil
}

func newBackend(cfg *config.Config) (store.Store, error) {
	if cfg.Redis.URL == "" {
		return store.NewFileStore(cfg.Cache.Dir)
	}
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opt.PoolSize = cfg.Redis.PoolSize
	return store.NewRedisStore(redis.NewClient(opt), "apphud:"), nil
}

// Start resolves credentials, restores the cached user and schedules
// registration, product loading and rule screen fetching on the background
// executor. userID may be empty for an anonymous install.
func (s *SDK) Start(userID string) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	creds, err := s.resolve.Execute(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	if _, err := s.repo.LoadFromCache(); err != nil {
		s.logger.Warn("failed to restore cached user", zap.Error(err))
	}

	force := creds.Changed || s.migrationRan || s.repo.IsCacheExpired()

	s.exec.Submit(executor.Task{
		Name:     "registration",
		Priority: executor.PriorityRegistration,
		Run: func(ctx context.Context) error {
			user, err := s.register.Execute(ctx, creds, force)
			if err != nil {
				return err
			}
			s.notify(user)
			return nil
		},
	})
	s.exec.Submit(executor.Task{
		Name:     "load-products",
		Priority: executor.PriorityDefault,
		Run:      s.loadProducts,
	})
	s.exec.Submit(executor.Task{
		Name:     "fetch-rule-screens",
		Priority: executor.PriorityDefault,
		Run:      s.rules.Execute,
	})
	return nil
}

// OnUserUpdated registers a listener invoked after every change to the
// authoritative user. Listeners run on SDK goroutines and must not block.
func (s *SDK) OnUserUpdated(listener UserListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *SDK) notify(user *entity.User) {
	s.mu.Lock()
	listeners := make([]UserListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(user)
	}
}

func (s *SDK) credentials() command.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// Close stops background work, flushes logs and releases the store.
func (s *SDK) Close() error {
	s.exec.Close()
	err := s.backend.Close()
	logging.Sync()
	return err
}
