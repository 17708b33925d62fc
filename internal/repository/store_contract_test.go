package repository

import (
	"context"
	"testing"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/stretchr/testify/require"
)

type beneficiaryStore interface {
	Get(ctx context.Context, id string) (*models.Beneficiary, error)
	List(ctx context.Context, ownerID int64) ([]models.Beneficiary, error)
	Upsert(ctx context.Context, b *models.Beneficiary) error
	Delete(ctx context.Context, ownerID int64, id string) error
}

type instrumentStore interface {
	Get(ctx context.Context, id string) (*models.PaymentInstrument, error)
	GetDefault(ctx context.Context, ownerID int64) (*models.PaymentInstrument, error)
	List(ctx context.Context, ownerID int64) ([]models.PaymentInstrument, error)
	Upsert(ctx context.Context, p *models.PaymentInstrument) error
	Delete(ctx context.Context, ownerID int64, id string) error
}

type tierStore interface {
	GetTier(ctx context.Context, id int64) (models.VerificationTier, error)
	SetTier(ctx context.Context, id int64, tier models.VerificationTier) error
}

type userStore interface {
	tierStore
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type archiveStore interface {
	Archive(ctx context.Context, rec models.UsageRecord) error
	List(ctx context.Context, userID int64) ([]models.UsageRecord, error)
}

func runBeneficiaryContract(t *testing.T, store beneficiaryStore) {
	t.Helper()
	ctx := context.Background()

	amina := &models.Beneficiary{
		OwnerID:            501,
		Name:               "Amina Issoufou",
		Phone:              "+22790000001",
		DestinationCity:    "Niamey",
		DestinationCountry: "NE",
		PreferredServiceID: "wave",
	}
	require.NoError(t, store.Upsert(ctx, amina))
	require.NotEmpty(t, amina.ID)

	bachir := &models.Beneficiary{OwnerID: 501, Name: "bachir", Phone: "+22790000002", DestinationCountry: "NE"}
	require.NoError(t, store.Upsert(ctx, bachir))

	other := &models.Beneficiary{OwnerID: 502, Name: "Other", Phone: "+221700000000", DestinationCountry: "SN"}
	require.NoError(t, store.Upsert(ctx, other))

	got, err := store.Get(ctx, amina.ID)
	require.NoError(t, err)
	require.Equal(t, "Niamey", got.DestinationCity)
	require.Equal(t, "wave", got.PreferredServiceID)

	list, err := store.List(ctx, 501)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Amina Issoufou", list[0].Name)
	require.Equal(t, "bachir", list[1].Name)

	amina.Phone = "+22790000009"
	require.NoError(t, store.Upsert(ctx, amina))
	got, err = store.Get(ctx, amina.ID)
	require.NoError(t, err)
	require.Equal(t, "+22790000009", got.Phone)

	hijack := *other
	hijack.OwnerID = 501
	require.ErrorIs(t, store.Upsert(ctx, &hijack), ErrNotFound)

	require.ErrorIs(t, store.Delete(ctx, 502, amina.ID), ErrNotFound)
	require.NoError(t, store.Delete(ctx, 501, amina.ID))
	_, err = store.Get(ctx, amina.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func runInstrumentContract(t *testing.T, store instrumentStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetDefault(ctx, 601)
	require.ErrorIs(t, err, ErrNotFound)

	first := &models.PaymentInstrument{OwnerID: 601, Last4: "4242", Brand: models.BrandVisa, HolderName: "A ISSOUFOU", Expiry: "12/29"}
	require.NoError(t, store.Upsert(ctx, first))
	require.True(t, first.IsDefault, "first card becomes default")

	second := &models.PaymentInstrument{OwnerID: 601, Last4: "4444", Brand: models.BrandMastercard, HolderName: "A ISSOUFOU", Expiry: "01/30"}
	require.NoError(t, store.Upsert(ctx, second))
	require.False(t, second.IsDefault)

	def, err := store.GetDefault(ctx, 601)
	require.NoError(t, err)
	require.Equal(t, first.ID, def.ID)

	second.IsDefault = true
	require.NoError(t, store.Upsert(ctx, second))
	def, err = store.GetDefault(ctx, 601)
	require.NoError(t, err)
	require.Equal(t, second.ID, def.ID)

	list, err := store.List(ctx, 601)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.False(t, list[1].IsDefault)

	require.NoError(t, store.Delete(ctx, 601, second.ID))
	def, err = store.GetDefault(ctx, 601)
	require.NoError(t, err)
	require.Equal(t, first.ID, def.ID, "remaining card is promoted")

	require.ErrorIs(t, store.Delete(ctx, 999, first.ID), ErrNotFound)
}

func runTierContract(t *testing.T, store tierStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetTier(ctx, 701)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetTier(ctx, 701, models.TierPremium))
	tier, err := store.GetTier(ctx, 701)
	require.NoError(t, err)
	require.Equal(t, models.TierPremium, tier)

	require.NoError(t, store.SetTier(ctx, 701, models.TierBasic))
	tier, err = store.GetTier(ctx, 701)
	require.NoError(t, err)
	require.Equal(t, models.TierBasic, tier)
}

func runUserContract(t *testing.T, store userStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.GetUserByID(ctx, 12345)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: 12345, Username: "testuser", FirstName: "Test", LastName: "User"}))
	fetched, err := store.GetUserByID(ctx, 12345)
	require.NoError(t, err)
	require.Equal(t, "testuser", fetched.Username)
	require.Equal(t, models.TierBasic, fetched.Tier)

	// Profile updates leave the tier alone.
	require.NoError(t, store.SetTier(ctx, 12345, models.TierVerified))
	require.NoError(t, store.UpsertUser(ctx, &models.User{ID: 12345, Username: "updateduser", FirstName: "Updated", LastName: "Name"}))
	fetched, err = store.GetUserByID(ctx, 12345)
	require.NoError(t, err)
	require.Equal(t, "updateduser", fetched.Username)
	require.Equal(t, models.TierVerified, fetched.Tier)
}

func runArchiveContract(t *testing.T, store archiveStore) {
	t.Helper()
	ctx := context.Background()

	day1 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	archivedAt := day2.Add(time.Minute)

	require.NoError(t, store.Archive(ctx, models.UsageRecord{
		UserID: 801, Period: models.ScopeDaily, PeriodStart: day1, Amount: models.EUR("120.50"), ArchivedAt: archivedAt,
	}))
	require.NoError(t, store.Archive(ctx, models.UsageRecord{
		UserID: 801, Period: models.ScopeDaily, PeriodStart: day2, Amount: models.EUR("80"), ArchivedAt: archivedAt,
	}))
	require.NoError(t, store.Archive(ctx, models.UsageRecord{
		UserID: 801, Period: models.ScopeDaily, PeriodStart: day1, Amount: models.EUR("130"), ArchivedAt: archivedAt,
	}))

	list, err := store.List(ctx, 801)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].PeriodStart.Equal(day2))
	require.Equal(t, "130.00 EUR", list[1].Amount.String())

	list, err = store.List(ctx, 802)
	require.NoError(t, err)
	require.Empty(t, list)
}
