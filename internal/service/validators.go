package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// AmountToMinorUnits converts a decimal currency string into the currency's
// smallest unit. The conversion is fixed-point: shift by two places and
// round; customer input is never compared as a float.
func AmountToMinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}

	minor := d.Shift(2).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %q", amount)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("amount %q out of range", amount)
	}

	return minor.IntPart(), nil
}

// ValidateCustomer checks the minimal customer fields an order needs
func ValidateCustomer(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("customer name cannot be empty")
	}
	if email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}
