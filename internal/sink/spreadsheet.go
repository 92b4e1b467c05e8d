package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/benx421/payment-reconciler/internal/models"
)

const ordersSheet = "Orders"

var spreadsheetHeader = []string{
	"Transaction ID", "Customer", "Email", "Phone",
	"Amount", "Status", "Gateway Transaction ID", "Last Code",
	"Created At", "Updated At",
}

// Spreadsheet mirrors orders into an .xlsx workbook, one row per order.
// Existing rows are updated in place so the sheet tracks current state
// rather than appending a history.
type Spreadsheet struct {
	mu   sync.Mutex
	path string
}

var _ Sink = (*Spreadsheet)(nil)

// NewSpreadsheet creates a spreadsheet sink writing to the given path
func NewSpreadsheet(path string) *Spreadsheet {
	return &Spreadsheet{path: path}
}

func (s *Spreadsheet) Name() string { return "spreadsheet" }

// Notify upserts the order's row and saves the workbook
func (s *Spreadsheet) Notify(record *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := s.open()
	if err != nil {
		return err
	}
	defer book.Close() //nolint:errcheck // close after save is best-effort

	row, err := s.findRow(book, record.MerchantTransactionID)
	if err != nil {
		return err
	}

	amount := decimal.New(record.AmountMinorUnits, -2).StringFixed(2)
	values := []any{
		record.MerchantTransactionID,
		record.CustomerName,
		record.CustomerEmail,
		record.CustomerPhone,
		amount,
		string(record.Status),
		record.GatewayTransactionID,
		record.LastOutcomeCode,
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := book.SetCellValue(ordersSheet, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := book.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

func (s *Spreadsheet) open() (*excelize.File, error) {
	book, err := excelize.OpenFile(s.path)
	if err == nil {
		return book, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	book = excelize.NewFile()
	index, err := book.NewSheet(ordersSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	if err := book.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, title := range spreadsheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := book.SetCellValue(ordersSheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	return book, nil
}

// findRow returns the row holding the transaction id, or the first empty
// row when the order is new.
func (s *Spreadsheet) findRow(book *excelize.File, merchantTransactionID string) (int, error) {
	rows, err := book.GetRows(ordersSheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet: %w", err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) > 0 && row[0] == merchantTransactionID {
			return i + 1, nil
		}
	}

	return len(rows) + 1, nil
}
