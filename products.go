package apphud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/service"
)

// loadProducts runs one product loading cycle: fetch the permission groups
// from the backend, query the store for live details, and record the
// outcome on the state machine. Returning an error re-queues the task on
// the executor; a terminal failure stays recorded and returns nil so the
// executor stops retrying.
func (s *SDK) loadProducts(ctx context.Context) error {
	s.products.BeginLoading()

	groups, err := s.api.Products(ctx)
	if err != nil {
		s.products.CompleteFailure(service.BillingNetworkError)
		return s.retryOrSettle(fmt.Errorf("failed to fetch product groups: %w", err))
	}

	var productIDs []string
	seen := make(map[string]struct{})
	for _, g := range groups {
		for _, p := range g.Products {
			if _, dup := seen[p.ProductID]; dup {
				continue
			}
			seen[p.ProductID] = struct{}{}
			productIDs = append(productIDs, p.ProductID)
		}
	}

	if len(productIDs) == 0 {
		// Nothing configured in the dashboard; not a failure.
		s.products.CompleteEmpty()
		s.respondProducts()
		return nil
	}

	details, code := s.provider.QueryProductDetails(ctx, productIDs)
	if code != service.BillingOK {
		s.products.CompleteFailure(code)
		return s.retryOrSettle(fmt.Errorf("store query failed with billing code %d", code))
	}

	if err := s.products.CompleteSuccess(details); err != nil {
		s.products.CompleteFailure(service.BillingError)
		return s.retryOrSettle(err)
	}

	s.logger.Info("products loaded", zap.Int("count", len(details)))
	s.respondProducts()
	return nil
}

// retryOrSettle converts a failure into an executor retry while the state
// machine's budgets allow it, and settles otherwise.
func (s *SDK) retryOrSettle(err error) error {
	if s.products.IsRetriable() {
		return err
	}
	s.logger.Warn("product loading settled in failed state", zap.Error(err))
	s.respondProducts()
	return nil
}

// respondProducts delivers the first load outcome to the embedding app,
// exactly once.
func (s *SDK) respondProducts() {
	if !s.products.MarkResponded() {
		return
	}
	if user := s.repo.CurrentUser(); user != nil {
		s.notify(user)
	}
}
