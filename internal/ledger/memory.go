package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benx421/payment-reconciler/internal/models"
)

// Memory is an in-process Ledger. A mutex per merchant transaction id
// serializes read-modify-write cycles for the same order; the map mutex is
// held only for map lookups and stores, so unrelated orders never contend.
// Stored Order values are never mutated in place: updates install a fresh
// copy, so readers always see a consistent snapshot.
type Memory struct {
	logger *slog.Logger

	mu     sync.RWMutex
	orders map[string]*models.Order
	keys   map[string]*keyLock

	conflictMu sync.Mutex
	conflicts  []models.OutcomeConflict
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger
func NewMemory(logger *slog.Logger) *Memory {
	return &Memory{
		logger: logger,
		orders: make(map[string]*models.Order),
		keys:   make(map[string]*keyLock),
	}
}

// keyLock is a refcounted per-transaction-id mutex. Entries exist only
// while some goroutine holds or waits for the lock, so ids from rejected
// events do not accumulate in the table.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// lockKey acquires the per-transaction-id mutex, creating it on first use
func (m *Memory) lockKey(id string) func() {
	m.mu.Lock()
	lock, ok := m.keys[id]
	if !ok {
		lock = &keyLock{}
		m.keys[id] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.keys, id)
		}
		m.mu.Unlock()
	}
}

func (m *Memory) load(id string) (*models.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	return order, ok
}

func (m *Memory) store(order *models.Order) {
	m.mu.Lock()
	m.orders[order.MerchantTransactionID] = order
	m.mu.Unlock()
}

// Create inserts a new PENDING order
func (m *Memory) Create(_ context.Context, req *models.PaymentRequest, result *models.GatewayResult) (*models.Order, error) {
	unlock := m.lockKey(req.MerchantTransactionID)
	defer unlock()

	if _, exists := m.load(req.MerchantTransactionID); exists {
		return nil, models.ErrDuplicateTransaction
	}

	now := time.Now()
	order := &models.Order{
		MerchantTransactionID: req.MerchantTransactionID,
		CustomerName:          req.CustomerName,
		CustomerEmail:         req.CustomerEmail,
		CustomerPhone:         req.CustomerPhone,
		AmountMinorUnits:      req.AmountMinorUnits,
		Status:                models.OrderStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if result != nil {
		order.LastOutcomeCode = result.Code
		order.GatewayTransactionID = result.GatewayTransactionID
	}

	m.store(order)

	snapshot := *order
	return &snapshot, nil
}

// ApplyOutcome applies an outcome under the order's per-key lock
func (m *Memory) ApplyOutcome(_ context.Context, outcome models.PaymentOutcome) (*models.Order, error) {
	unlock := m.lockKey(outcome.MerchantTransactionID)
	defer unlock()

	current, exists := m.load(outcome.MerchantTransactionID)
	if !exists {
		return nil, models.ErrOrderNotFound
	}

	incoming := outcome.Status()

	switch decide(current.Status, incoming) {
	case transitionApply:
		next := *current
		next.Status = incoming
		next.LastOutcomeCode = outcome.Code
		if outcome.GatewayTransactionID != "" {
			next.GatewayTransactionID = outcome.GatewayTransactionID
		}
		next.UpdatedAt = outcome.ObservedAt
		m.store(&next)
		snapshot := next
		return &snapshot, nil

	case transitionRefresh:
		next := *current
		next.LastOutcomeCode = outcome.Code
		next.UpdatedAt = outcome.ObservedAt
		m.store(&next)
		snapshot := next
		return &snapshot, nil

	case transitionConflict:
		m.recordConflict(current, outcome, incoming)
		snapshot := *current
		return &snapshot, models.ErrConflictingOutcome

	default: // transitionNoop: duplicate delivery tolerance
		snapshot := *current
		return &snapshot, nil
	}
}

func (m *Memory) recordConflict(order *models.Order, outcome models.PaymentOutcome, incoming models.OrderStatus) {
	conflict := models.OutcomeConflict{
		ObservedAt:            outcome.ObservedAt,
		MerchantTransactionID: outcome.MerchantTransactionID,
		ExistingStatus:        order.Status,
		AttemptedStatus:       incoming,
		Code:                  outcome.Code,
		Source:                outcome.Source,
	}

	m.conflictMu.Lock()
	m.conflicts = append(m.conflicts, conflict)
	m.conflictMu.Unlock()

	m.logger.Warn("conflicting terminal outcome rejected",
		"merchant_transaction_id", outcome.MerchantTransactionID,
		"existing_status", order.Status,
		"attempted_status", incoming,
		"code", outcome.Code,
		"source", outcome.Source,
	)
}

// Get returns a copy of the order for the given id
func (m *Memory) Get(_ context.Context, merchantTransactionID string) (*models.Order, error) {
	order, exists := m.load(merchantTransactionID)
	if !exists {
		return nil, models.ErrOrderNotFound
	}

	snapshot := *order
	return &snapshot, nil
}

// List returns all orders, oldest first
func (m *Memory) List(_ context.Context) ([]*models.Order, error) {
	m.mu.RLock()
	orders := make([]*models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		snapshot := *order
		orders = append(orders, &snapshot)
	}
	m.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

// Conflicts returns the audit trail of rejected terminal transitions
func (m *Memory) Conflicts() []models.OutcomeConflict {
	m.conflictMu.Lock()
	defer m.conflictMu.Unlock()

	out := make([]models.OutcomeConflict, len(m.conflicts))
	copy(out, m.conflicts)
	return out
}
