package command

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/domain/service"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
	"github.com/apphud/apphud-go/internal/infrastructure/store"
)

// DeviceInfo is the environment snapshot sent with registration.
type DeviceInfo struct {
	Locale        string
	TimeZone      string
	AppVersion    string
	OSVersion     string
	DeviceType    string
	DeviceFamily  string
	InstallSource string
	IsSandbox     bool
	ObserverMode  bool
}

// RegisterUser creates or refreshes the user on the backend. The whole
// operation, network call included, runs under one mutex: a concurrent
// caller blocks, then finds the fresh user installed and returns it without
// a second request.
type RegisterUser struct {
	mu sync.Mutex

	repo   *service.UserRepository
	cache  *store.Cache
	api    *network.RemoteAPI
	device DeviceInfo
	logger *zap.Logger
}

func NewRegisterUser(repo *service.UserRepository, cache *store.Cache, api *network.RemoteAPI, device DeviceInfo) *RegisterUser {
	return &RegisterUser{
		repo:   repo,
		cache:  cache,
		api:    api,
		device: device,
		logger: logging.WithComponent("registration"),
	}
}

// Execute registers the given credentials. Unless forced, a cached
// non-temporary user short-circuits the call entirely.
func (r *RegisterUser) Execute(ctx context.Context, creds Credentials, force bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.repo.CurrentUser()
	if !force && current != nil && !current.IsTemporary &&
		current.UserID == creds.UserID && !r.repo.IsCacheExpired() {
		r.logger.Debug("skipping registration, user already registered",
			zap.String("user_id", current.UserID))
		return current, nil
	}

	body := network.RegistrationBody{
		Locale:         r.device.Locale,
		SDKVersion:     "1.0.0",
		AppVersion:     r.device.AppVersion,
		DeviceFamily:   r.device.DeviceFamily,
		Platform:       "android",
		DeviceType:     r.device.DeviceType,
		OSVersion:      r.device.OSVersion,
		UserID:         creds.UserID,
		DeviceID:       creds.DeviceID,
		TimeZone:       r.device.TimeZone,
		IsSandbox:      r.device.IsSandbox,
		IsNew:          current == nil || current.IsTemporary,
		NeedPaywalls:   true,
		NeedPlacements: true,
		InstallSource:  r.device.InstallSource,
		ObserverMode:   r.device.ObserverMode,
	}

	user, err := r.api.Registration(ctx, body)
	if err != nil {
		r.logger.Warn("registration failed", zap.Error(err))
		return nil, err
	}

	mergeMerchandising(current, user)

	idChanged := r.repo.SetCurrentUser(user, true)
	if idChanged {
		r.logger.Info("user id changed by server",
			zap.String("user_id", user.UserID))
	}

	if err := r.cache.SetLastRegistration(time.Now()); err != nil {
		r.logger.Error("failed to stamp registration time", zap.Error(err))
	}

	r.logger.Info("user registered", zap.String("user_id", user.UserID))
	return user, nil
}

// mergeMerchandising keeps the previous paywalls and placements when the
// server response omits them. The backend legitimately returns them empty
// on lightweight refreshes; an empty list must not wipe a populated one.
func mergeMerchandising(previous, fresh *entity.User) {
	if previous == nil {
		return
	}
	if len(fresh.Paywalls) == 0 && len(previous.Paywalls) > 0 {
		fresh.Paywalls = previous.Paywalls
	}
	if len(fresh.Placements) == 0 && len(previous.Placements) > 0 {
		fresh.Placements = previous.Placements
	}
}
