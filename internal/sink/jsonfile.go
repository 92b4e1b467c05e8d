package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/benx421/payment-reconciler/internal/models"
)

// JSONFile mirrors the full order set to a JSON file, rewriting the file on
// every notification. Writes go through a temp file and rename so a crash
// never leaves a half-written snapshot.
type JSONFile struct {
	mu     sync.Mutex
	path   string
	orders map[string]models.Order
}

var _ Sink = (*JSONFile)(nil)

// NewJSONFile creates a JSON file sink, loading any existing snapshot so
// restarts keep previously mirrored orders.
func NewJSONFile(path string) (*JSONFile, error) {
	s := &JSONFile{
		path:   path,
		orders: make(map[string]models.Order),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read orders file: %w", err)
	}

	var existing []models.Order
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("failed to parse orders file: %w", err)
	}
	for _, order := range existing {
		s.orders[order.MerchantTransactionID] = order
	}

	return s, nil
}

func (s *JSONFile) Name() string { return "json-file" }

// Notify upserts the order and rewrites the snapshot
func (s *JSONFile) Notify(record *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[record.MerchantTransactionID] = *record

	orders := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write orders file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace orders file: %w", err)
	}

	return nil
}
