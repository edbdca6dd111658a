package service

import (
	"errors"
	"sync"

	"github.com/apphud/apphud-go/internal/domain/entity"
)

// ProductsPhase is the lifecycle state of store product loading.
type ProductsPhase int

const (
	ProductsIdle ProductsPhase = iota
	ProductsLoading
	ProductsSuccess
	ProductsFailed
)

func (p ProductsPhase) String() string {
	switch p {
	case ProductsLoading:
		return "loading"
	case ProductsSuccess:
		return "success"
	case ProductsFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Billing response codes, as reported by the store client. Zero is success.
const (
	BillingOK                  = 0
	BillingServiceDisconnected = -1
	BillingFeatureUnsupported  = -2
	BillingServiceUnavailable  = 2
	BillingUnavailable         = 3
	BillingError               = 6
	BillingNetworkError        = 12
)

// isTransientBillingCode reports whether the failure is worth retrying at
// all. User cancellations and configuration errors are not.
func isTransientBillingCode(code int) bool {
	switch code {
	case BillingServiceDisconnected, BillingServiceUnavailable, BillingUnavailable,
		BillingError, BillingNetworkError:
		return true
	default:
		return false
	}
}

// Retry ceilings: per loading session and across the whole process
// lifetime.
const (
	maxProductRetriesPerSession = 3
	maxProductRetriesTotal      = 10
)

var errEmptyProducts = errors.New("product response contains no products")

// ProductsState is an immutable snapshot of the loading lifecycle.
type ProductsState struct {
	Phase ProductsPhase
	// Products holds the last successfully loaded details, keyed by store
	// product id. Survives later failures.
	Products map[string]entity.ProductDetails
	// FailureCode is the billing response code of the last failure, only
	// meaningful in ProductsFailed.
	FailureCode int
}

// ProductsStateMachine serializes transitions of the product loading
// lifecycle and tracks retry budgets.
type ProductsStateMachine struct {
	mu sync.Mutex

	phase       ProductsPhase
	products    map[string]entity.ProductDetails
	failureCode int

	// responded marks that the first load outcome, success or failure, was
	// already delivered to the embedding app.
	responded bool

	sessionRetries int
	totalRetries   int
}

func NewProductsStateMachine() *ProductsStateMachine {
	return &ProductsStateMachine{phase: ProductsIdle}
}

// State returns a copy of the current state.
func (m *ProductsStateMachine) State() ProductsState {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make(map[string]entity.ProductDetails, len(m.products))
	for id, d := range m.products {
		products[id] = d
	}
	return ProductsState{Phase: m.phase, Products: products, FailureCode: m.failureCode}
}

// BeginLoading moves to ProductsLoading. Entering from a failure counts
// against both retry budgets; entering fresh resets the per-session budget.
// Previously loaded products are kept.
func (m *ProductsStateMachine) BeginLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == ProductsFailed {
		m.sessionRetries++
		m.totalRetries++
	} else {
		m.sessionRetries = 0
	}
	m.phase = ProductsLoading
	m.failureCode = 0
}

// CompleteSuccess merges freshly loaded details over the existing set, new
// values winning per product id. An empty result is rejected so a flaky
// store response cannot wipe previously loaded products.
func (m *ProductsStateMachine) CompleteSuccess(details []entity.ProductDetails) error {
	if len(details) == 0 {
		return errEmptyProducts
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.products == nil {
		m.products = make(map[string]entity.ProductDetails, len(details))
	}
	for _, d := range details {
		m.products[d.ProductID] = d
	}
	m.phase = ProductsSuccess
	m.failureCode = 0
	return nil
}

// CompleteEmpty records a load that found no products configured for the
// app. Not a failure: the machine returns to idle with no failure code,
// keeping whatever was loaded before.
func (m *ProductsStateMachine) CompleteEmpty() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = ProductsIdle
	m.failureCode = 0
}

// CompleteFailure records a failed load with the store's response code.
func (m *ProductsStateMachine) CompleteFailure(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = ProductsFailed
	m.failureCode = code
}

// IsRetriable reports whether another load attempt should be scheduled:
// the failure is transient, nothing was ever loaded, and both retry
// budgets still have room.
func (m *ProductsStateMachine) IsRetriable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != ProductsFailed {
		return false
	}
	if !isTransientBillingCode(m.failureCode) {
		return false
	}
	if len(m.products) > 0 {
		return false
	}
	return m.sessionRetries < maxProductRetriesPerSession &&
		m.totalRetries < maxProductRetriesTotal
}

// MarkResponded records that the first load outcome reached the app.
// Returns false when it already had.
func (m *ProductsStateMachine) MarkResponded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.responded {
		return false
	}
	m.responded = true
	return true
}

// RollbackRetryCounters undoes one budget charge, floored at zero. Called
// when a scheduled retry is cancelled before it ran.
func (m *ProductsStateMachine) RollbackRetryCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionRetries > 0 {
		m.sessionRetries--
	}
	if m.totalRetries > 0 {
		m.totalRetries--
	}
}

// Details returns the loaded details for a product id, if present.
func (m *ProductsStateMachine) Details(productID string) (entity.ProductDetails, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.products[productID]
	return d, ok
}
