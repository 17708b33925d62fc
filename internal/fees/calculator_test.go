package fees

import (
	"testing"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func waveOffer() models.ServiceOffer {
	return models.ServiceOffer{
		ID:                 "wave",
		DestinationCountry: "NE",
		Currency:           "XOF",
		Rate:               decimal.NewFromInt(656),
		FeePercent:         decimal.RequireFromString("0.025"),
		MinAmount:          models.EUR("10"),
		MaxAmount:          models.EUR("1000"),
	}
}

func centsToEUR(cents int64) models.Money {
	return models.Money{Amount: decimal.New(cents, -2), Currency: models.SourceCurrency}
}

func TestCompute(t *testing.T) {
	t.Parallel()

	t.Run("150 EUR via wave to Niger", func(t *testing.T) {
		t.Parallel()
		q, err := Compute(models.EUR("150.00"), waveOffer())
		require.NoError(t, err)
		require.Equal(t, "3.75 EUR", q.Fee.String())
		require.Equal(t, "153.75 EUR", q.TotalDebit.String())
		require.Equal(t, "98400 XOF", q.ReceivedAmount.String())
	})

	t.Run("below minimum is out of range", func(t *testing.T) {
		t.Parallel()
		_, err := Compute(models.EUR("5.00"), waveOffer())
		var oor *OutOfRangeError
		require.ErrorAs(t, err, &oor)
		require.True(t, oor.Min.Amount.Equal(decimal.NewFromInt(10)))
		require.True(t, oor.Max.Amount.Equal(decimal.NewFromInt(1000)))
		require.True(t, oor.Attempted.Amount.Equal(decimal.NewFromInt(5)))
	})

	t.Run("above maximum is out of range", func(t *testing.T) {
		t.Parallel()
		_, err := Compute(models.EUR("1000.01"), waveOffer())
		var oor *OutOfRangeError
		require.ErrorAs(t, err, &oor)
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		t.Parallel()
		_, err := Compute(models.EUR("10"), waveOffer())
		require.NoError(t, err)
		_, err = Compute(models.EUR("1000"), waveOffer())
		require.NoError(t, err)
	})

	t.Run("fee rounds half up", func(t *testing.T) {
		t.Parallel()
		// 10.10 * 0.025 = 0.2525 -> 0.25; 10.30 * 0.025 = 0.2575 -> 0.26
		q, err := Compute(models.EUR("10.10"), waveOffer())
		require.NoError(t, err)
		require.Equal(t, "0.25 EUR", q.Fee.String())
		q, err = Compute(models.EUR("10.30"), waveOffer())
		require.NoError(t, err)
		require.Equal(t, "0.26 EUR", q.Fee.String())
	})

	t.Run("received amount uses destination precision", func(t *testing.T) {
		t.Parallel()
		offer := waveOffer()
		offer.Currency = "MAD"
		offer.Rate = decimal.RequireFromString("10.85")
		q, err := Compute(models.EUR("12.34"), offer)
		require.NoError(t, err)
		require.Equal(t, "133.89 MAD", q.ReceivedAmount.String())
	})

	t.Run("rejects non-euro principal", func(t *testing.T) {
		t.Parallel()
		_, err := Compute(models.ZeroOf("XOF"), waveOffer())
		require.ErrorIs(t, err, ErrCurrency)
	})
}

func TestCompute_Properties(t *testing.T) {
	t.Parallel()

	offer := waveOffer()
	minCents := int64(1000)
	maxCents := int64(100000)

	t.Run("fee is non-decreasing in principal", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			a := rapid.Int64Range(minCents, maxCents).Draw(t, "a")
			b := rapid.Int64Range(a, maxCents).Draw(t, "b")
			qa, err := Compute(centsToEUR(a), offer)
			require.NoError(t, err)
			qb, err := Compute(centsToEUR(b), offer)
			require.NoError(t, err)
			require.True(t, qb.Fee.Amount.GreaterThanOrEqual(qa.Fee.Amount))
		})
	})

	t.Run("total debit minus fee equals principal", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			cents := rapid.Int64Range(minCents, maxCents).Draw(t, "cents")
			principal := centsToEUR(cents)
			q, err := Compute(principal, offer)
			require.NoError(t, err)
			require.True(t, q.TotalDebit.Amount.Sub(q.Fee.Amount).Equal(principal.Amount))
		})
	})

	t.Run("out of range principals always fail", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			below := rapid.Int64Range(0, minCents-1).Draw(t, "below")
			above := rapid.Int64Range(maxCents+1, maxCents*10).Draw(t, "above")
			var oor *OutOfRangeError
			_, err := Compute(centsToEUR(below), offer)
			require.ErrorAs(t, err, &oor)
			_, err = Compute(centsToEUR(above), offer)
			require.ErrorAs(t, err, &oor)
		})
	})

	t.Run("re-quoting is idempotent", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			cents := rapid.Int64Range(minCents, maxCents).Draw(t, "cents")
			q1, err1 := Compute(centsToEUR(cents), offer)
			q2, err2 := Compute(centsToEUR(cents), offer)
			require.NoError(t, err1)
			require.NoError(t, err2)
			require.Equal(t, q1.Fee.String(), q2.Fee.String())
			require.Equal(t, q1.TotalDebit.String(), q2.TotalDebit.String())
			require.Equal(t, q1.ReceivedAmount.String(), q2.ReceivedAmount.String())
		})
	})
}
