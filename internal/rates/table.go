// Package rates provides the static table of destination countries and the transfer
// offers available for each of them.
package rates

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/deloabass/nigertransfert/internal/models"
)

var (
	// ErrOfferNotFound is returned when no offer matches a country/service pair.
	ErrOfferNotFound = errors.New("service offer not found")
	// ErrCountryNotFound is returned for destinations the table does not serve.
	ErrCountryNotFound = errors.New("destination country not served")
)

// Table is a read-only RateTable. It is safe for concurrent use.
type Table struct {
	countries map[string]models.Country
	offers    map[string]map[string]models.ServiceOffer
}

// NewTable validates the given countries and offers and indexes them. Every offer
// must belong to a listed country and use that country's currency.
func NewTable(countries []models.Country, offers []models.ServiceOffer) (*Table, error) {
	t := &Table{
		countries: make(map[string]models.Country, len(countries)),
		offers:    make(map[string]map[string]models.ServiceOffer, len(countries)),
	}

	for _, c := range countries {
		code := normalizeCountry(c.Code)
		if code == "" {
			return nil, errors.New("country code is required")
		}
		c.Code = code
		c.Currency = models.NormalizeCurrency(c.Currency)
		t.countries[code] = c
		t.offers[code] = make(map[string]models.ServiceOffer)
	}

	for _, o := range offers {
		if err := o.Validate(); err != nil {
			return nil, err
		}
		code := normalizeCountry(o.DestinationCountry)
		country, ok := t.countries[code]
		if !ok {
			return nil, fmt.Errorf("offer %s: %w: %s", o.ID, ErrCountryNotFound, o.DestinationCountry)
		}
		if models.NormalizeCurrency(o.Currency) != country.Currency {
			return nil, fmt.Errorf("offer %s: currency %s does not match %s", o.ID, o.Currency, country.Currency)
		}
		if _, dup := t.offers[code][o.ID]; dup {
			return nil, fmt.Errorf("offer %s: duplicate id for %s", o.ID, code)
		}
		o.DestinationCountry = code
		o.Currency = country.Currency
		t.offers[code][o.ID] = o
	}

	return t, nil
}

// Lookup returns the offer for a destination country and service id.
func (t *Table) Lookup(country, serviceID string) (models.ServiceOffer, error) {
	byService, ok := t.offers[normalizeCountry(country)]
	if !ok {
		return models.ServiceOffer{}, fmt.Errorf("%w: %s", ErrCountryNotFound, country)
	}
	offer, ok := byService[serviceID]
	if !ok {
		return models.ServiceOffer{}, fmt.Errorf("%w: %s/%s", ErrOfferNotFound, country, serviceID)
	}
	return offer, nil
}

// Country returns a served destination country.
func (t *Table) Country(code string) (models.Country, error) {
	c, ok := t.countries[normalizeCountry(code)]
	if !ok {
		return models.Country{}, fmt.Errorf("%w: %s", ErrCountryNotFound, code)
	}
	return c, nil
}

// Countries returns all destinations sorted by name.
func (t *Table) Countries() []models.Country {
	out := make([]models.Country, 0, len(t.countries))
	for _, c := range t.countries {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Country) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Offers returns the offers for a destination sorted by id.
func (t *Table) Offers(country string) ([]models.ServiceOffer, error) {
	byService, ok := t.offers[normalizeCountry(country)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCountryNotFound, country)
	}
	out := make([]models.ServiceOffer, 0, len(byService))
	for _, o := range byService {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b models.ServiceOffer) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func normalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
