package rates

import (
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultCountries are the destinations served out of the box.
var DefaultCountries = []models.Country{
	{Code: "NE", Name: "Niger", Currency: "XOF"},
	{Code: "ML", Name: "Mali", Currency: "XOF"},
	{Code: "SN", Name: "Sénégal", Currency: "XOF"},
	{Code: "CI", Name: "Côte d'Ivoire", Currency: "XOF"},
	{Code: "BF", Name: "Burkina Faso", Currency: "XOF"},
	{Code: "CM", Name: "Cameroun", Currency: "XAF"},
	{Code: "GN", Name: "Guinée", Currency: "GNF"},
	{Code: "NG", Name: "Nigeria", Currency: "NGN"},
	{Code: "MA", Name: "Maroc", Currency: "MAD"},
}

type offerSpec struct {
	id, name   string
	rate, fee  string
	min, max   string
	processing string
}

// Providers per currency zone. Rates are units of local currency per 1 EUR.
var (
	xofProviders = []offerSpec{
		{id: "wave", name: "Wave", rate: "656", fee: "0.025", min: "10", max: "1000", processing: "Instantané"},
		{id: "orange-money", name: "Orange Money", rate: "655", fee: "0.03", min: "10", max: "1500", processing: "Quelques minutes"},
		{id: "western-union", name: "Western Union", rate: "650", fee: "0.045", min: "20", max: "5000", processing: "1 à 2 heures"},
		{id: "ria", name: "Ria", rate: "652", fee: "0.035", min: "15", max: "3000", processing: "Moins de 24h"},
	}
	xafProviders = []offerSpec{
		{id: "orange-money", name: "Orange Money", rate: "656", fee: "0.03", min: "10", max: "1500", processing: "Quelques minutes"},
		{id: "mtn-momo", name: "MTN MoMo", rate: "655", fee: "0.028", min: "10", max: "1000", processing: "Instantané"},
		{id: "western-union", name: "Western Union", rate: "650", fee: "0.045", min: "20", max: "5000", processing: "1 à 2 heures"},
	}
	gnfProviders = []offerSpec{
		{id: "orange-money", name: "Orange Money", rate: "9350", fee: "0.03", min: "10", max: "1500", processing: "Quelques minutes"},
		{id: "western-union", name: "Western Union", rate: "9250", fee: "0.045", min: "20", max: "5000", processing: "1 à 2 heures"},
	}
	ngnProviders = []offerSpec{
		{id: "moneygram", name: "MoneyGram", rate: "1650.50", fee: "0.04", min: "20", max: "3000", processing: "Moins de 24h"},
		{id: "western-union", name: "Western Union", rate: "1640", fee: "0.045", min: "20", max: "5000", processing: "1 à 2 heures"},
	}
	madProviders = []offerSpec{
		{id: "wafacash", name: "Wafacash", rate: "10.85", fee: "0.02", min: "10", max: "2000", processing: "Instantané"},
		{id: "western-union", name: "Western Union", rate: "10.80", fee: "0.045", min: "20", max: "5000", processing: "1 à 2 heures"},
	}
)

// DefaultOffers expands the provider catalogues for every default country.
func DefaultOffers() []models.ServiceOffer {
	var offers []models.ServiceOffer
	for _, c := range DefaultCountries {
		var specs []offerSpec
		switch c.Currency {
		case "XOF":
			specs = xofProviders
		case "XAF":
			specs = xafProviders
		case "GNF":
			specs = gnfProviders
		case "NGN":
			specs = ngnProviders
		case "MAD":
			specs = madProviders
		}
		for _, s := range specs {
			offers = append(offers, models.ServiceOffer{
				ID:                  s.id,
				Name:                s.name,
				DestinationCountry:  c.Code,
				Currency:            c.Currency,
				Rate:                decimal.RequireFromString(s.rate),
				FeePercent:          decimal.RequireFromString(s.fee),
				MinAmount:           models.EUR(s.min),
				MaxAmount:           models.EUR(s.max),
				ProcessingTimeLabel: s.processing,
			})
		}
	}
	return offers
}

// Default returns the built-in rate table.
func Default() *Table {
	t, err := NewTable(DefaultCountries, DefaultOffers())
	if err != nil {
		panic("rates: invalid default table: " + err.Error())
	}
	return t
}
