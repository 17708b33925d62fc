// Package cards validates card details at capture time and keeps only the fields
// that may be stored.
package cards

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
)

var (
	ErrInvalidNumber  = errors.New("invalid card number")
	ErrInvalidExpiry  = errors.New("expiry must be MM/YY")
	ErrExpired        = errors.New("card has expired")
	ErrHolderRequired = errors.New("card holder name is required")
	ErrInvalidCVV     = errors.New("invalid security code")
)

// Capture validates a card and returns the storable instrument. The number is used
// only to derive last4 and brand and is not retained.
func Capture(number, expiry, holder string, now time.Time) (models.PaymentInstrument, error) {
	digits := normalizeNumber(number)
	if len(digits) < 12 || len(digits) > 19 || !luhn(digits) {
		return models.PaymentInstrument{}, ErrInvalidNumber
	}

	exp, err := parseExpiry(expiry, now)
	if err != nil {
		return models.PaymentInstrument{}, err
	}

	holder = strings.Join(strings.Fields(holder), " ")
	if holder == "" {
		return models.PaymentInstrument{}, ErrHolderRequired
	}

	return models.PaymentInstrument{
		Last4:      digits[len(digits)-4:],
		Brand:      Brand(digits),
		HolderName: strings.ToUpper(holder),
		Expiry:     exp,
	}, nil
}

// ValidateCVV checks the shape of a security code: four digits for amex, three
// otherwise.
func ValidateCVV(cvv, brand string) error {
	want := 3
	if brand == models.BrandAmex {
		want = 4
	}
	if len(cvv) != want {
		return ErrInvalidCVV
	}
	for _, r := range cvv {
		if r < '0' || r > '9' {
			return ErrInvalidCVV
		}
	}
	return nil
}

// Brand detects the card network from the leading digits.
func Brand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return models.BrandVisa
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return models.BrandAmex
	}
	if len(digits) >= 4 {
		p2, _ := strconv.Atoi(digits[:2])
		p4, _ := strconv.Atoi(digits[:4])
		if (p2 >= 51 && p2 <= 55) || (p4 >= 2221 && p4 <= 2720) {
			return models.BrandMastercard
		}
	}
	return models.BrandUnknown
}

func normalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r == ' ' || r == '-':
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return ""
		}
	}
	return b.String()
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// parseExpiry accepts MM/YY or MM/YYYY and returns it as MM/YY. A card is valid
// through the last day of its expiry month.
func parseExpiry(expiry string, now time.Time) (string, error) {
	month, year, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok || len(month) != 2 || (len(year) != 2 && len(year) != 4) {
		return "", ErrInvalidExpiry
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", ErrInvalidExpiry
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", ErrInvalidExpiry
	}
	if len(year) == 2 {
		y += 2000
	}

	firstOfNext := time.Date(y, time.Month(m)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(firstOfNext) {
		return "", ErrExpired
	}
	return fmt.Sprintf("%02d/%02d", m, y%100), nil
}
