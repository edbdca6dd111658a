package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	apphuderr "github.com/apphud/apphud-go/internal/domain/errors"
)

// RemoteAPI is the typed surface over the transport. One method per backend
// endpoint; all request/response shapes stay inside this package.
type RemoteAPI struct {
	client *Client
	logger *zap.Logger
}

func NewRemoteAPI(client *Client) *RemoteAPI {
	return &RemoteAPI{client: client, logger: client.logger}
}

// Registration creates or refreshes the customer on the backend and returns
// the authoritative user snapshot. It gets a longer read deadline than other
// calls because the backend assembles paywalls and placements inline.
func (r *RemoteAPI) Registration(ctx context.Context, body RegistrationBody) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.RegistrationReadTimeout)
	defer cancel()

	results, err := r.client.Do(ctx, http.MethodPost, "/v1/customers", body)
	if err != nil {
		return nil, err
	}
	return r.decodeCustomer(results, body.DeviceID)
}

// Products fetches the permission groups with their product references.
func (r *RemoteAPI) Products(ctx context.Context) ([]entity.ProductGroup, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	results, err := r.client.Do(ctx, http.MethodGet, "/v2/products", nil)
	if err != nil {
		return nil, err
	}

	var dtos []productGroupDTO
	if err := json.Unmarshal(results, &dtos); err != nil {
		return nil, apphuderr.NewNetwork("failed to decode products", apphuderr.ErrMalformedResponse)
	}

	groups := make([]entity.ProductGroup, 0, len(dtos))
	for _, d := range dtos {
		groups = append(groups, entity.ProductGroup{
			ID:       d.ID,
			Name:     d.Name,
			Products: mapProducts(d.Products),
		})
	}
	return groups, nil
}

// Attribution forwards provider attribution data to the backend.
func (r *RemoteAPI) Attribution(ctx context.Context, body AttributionBody) error {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	_, err := r.client.Do(ctx, http.MethodPost, "/v1/attribution", body)
	return err
}

// PushToken registers the device push token.
func (r *RemoteAPI) PushToken(ctx context.Context, body PushTokenBody) error {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	_, err := r.client.Do(ctx, http.MethodPut, "/v1/customers/push_token", body)
	return err
}

// GrantPromotional grants a promotional entitlement and returns the updated
// user snapshot.
func (r *RemoteAPI) GrantPromotional(ctx context.Context, body GrantPromotionalBody) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	results, err := r.client.Do(ctx, http.MethodPost, "/v1/promotions", body)
	if err != nil {
		return nil, err
	}
	return r.decodeCustomer(results, body.DeviceID)
}

// PaywallEvent reports a paywall interaction event.
func (r *RemoteAPI) PaywallEvent(ctx context.Context, body EventBody) error {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	_, err := r.client.Do(ctx, http.MethodPost, "/v1/events", body)
	return err
}

// SendProperties uploads custom user properties.
func (r *RemoteAPI) SendProperties(ctx context.Context, body PropertiesBody) error {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	_, err := r.client.Do(ctx, http.MethodPost, "/v1/customers/properties", body)
	return err
}

// Notifications fetches the pending rules for the device.
func (r *RemoteAPI) Notifications(ctx context.Context, deviceID string) ([]entity.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	path := "/v1/notifications?device_id=" + url.QueryEscape(deviceID)
	results, err := r.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var dtos []notificationDTO
	if err := json.Unmarshal(results, &dtos); err != nil {
		return nil, apphuderr.NewNetwork("failed to decode notifications", apphuderr.ErrMalformedResponse)
	}
	return mapRules(dtos), nil
}

// ScreenHTML fetches the rendered HTML for a rule screen.
func (r *RemoteAPI) ScreenHTML(ctx context.Context, screenID, deviceID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	endpoint := r.client.host.get().JoinPath("/preview_screen", screenID)
	q := endpoint.Query()
	q.Set("device_id", deviceID)
	q.Set("v", "2")
	endpoint.RawQuery = q.Encode()

	raw, err := r.client.DoRaw(ctx, http.MethodGet, endpoint.String())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ReadNotifications marks the rule's notifications as read so the backend
// stops re-delivering it.
func (r *RemoteAPI) ReadNotifications(ctx context.Context, ruleID, deviceID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.client.cfg.ReadTimeout)
	defer cancel()

	body := map[string]string{"rule_id": ruleID, "device_id": deviceID}
	_, err := r.client.Do(ctx, http.MethodPost, "/v1/notifications/read", body)
	return err
}

func (r *RemoteAPI) decodeCustomer(results json.RawMessage, deviceID string) (*entity.User, error) {
	var dto customerDTO
	if err := json.Unmarshal(results, &dto); err != nil {
		return nil, apphuderr.NewNetwork("failed to decode customer", apphuderr.ErrMalformedResponse)
	}
	return mapCustomer(&dto, deviceID, r.logger), nil
}
