package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/rates"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Error codes specific to the HTTP surface. Pipeline errors use wizard.ErrorCode.
const (
	codeInvalidRequest    = "INVALID_REQUEST"
	codeInvalidUserID     = "INVALID_USER_ID"
	codeInvalidTier       = "INVALID_TIER"
	codeInvalidResolution = "INVALID_RESOLUTION"
	codeUnknownReference  = "UNKNOWN_REFERENCE"
	codeUnauthorized      = "UNAUTHORIZED"
)

// RateTable lists destinations and offers.
type RateTable interface {
	Countries() []models.Country
	Offers(country string) ([]models.ServiceOffer, error)
	Lookup(country, serviceID string) (models.ServiceOffer, error)
}

// TierRegistry reads and changes verification tiers.
type TierRegistry interface {
	Tier(ctx context.Context, userID int64) (models.VerificationTier, error)
	SetTier(ctx context.Context, userID int64, tier models.VerificationTier) error
}

// UsageSource returns current usage.
type UsageSource interface {
	Snapshot(ctx context.Context, userID int64) (models.Usage, error)
}

// ArchiveReader lists closed usage periods.
type ArchiveReader interface {
	List(ctx context.Context, userID int64) ([]models.UsageRecord, error)
}

// Settlement settles pending transfers.
type Settlement interface {
	Pending() []submit.PendingTransfer
	Resolve(ctx context.Context, reference string, status models.TransferStatus, reason string) (models.TransferResult, error)
}

// Handler holds the services the routes interact with.
type Handler struct {
	rates      RateTable
	policy     *limits.Policy
	tiers      TierRegistry
	usage      UsageSource
	archive    ArchiveReader
	settlement Settlement
}

// NewHandler creates a new Handler.
func NewHandler(rateTable RateTable, policy *limits.Policy, tiers TierRegistry, usage UsageSource, archive ArchiveReader, settlement Settlement) *Handler {
	return &Handler{
		rates:      rateTable,
		policy:     policy,
		tiers:      tiers,
		usage:      usage,
		archive:    archive,
		settlement: settlement,
	}
}

type errorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Min     *models.Money `json:"min,omitempty"`
	Max     *models.Money `json:"max,omitempty"`
	Scope   string        `json:"scope,omitempty"`
}

func (h *Handler) handleListCountries(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, h.rates.Countries())
}

func (h *Handler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.rates.Offers(chi.URLParam(r, "country"))
	if errors.Is(err, rates.ErrCountryNotFound) {
		respondWithError(w, http.StatusNotFound, wizard.CodeUnknownDestination, err.Error())
		return
	}
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offers)
}

type quoteRequest struct {
	Country   string `json:"country"`
	ServiceID string `json:"serviceId"`
	Amount    string `json:"amount"`
}

type quoteResponse struct {
	Country             string          `json:"country"`
	ServiceID           string          `json:"serviceId"`
	Principal           models.Money    `json:"principal"`
	Fee                 models.Money    `json:"fee"`
	TotalDebit          models.Money    `json:"totalDebit"`
	ReceivedAmount      models.Money    `json:"receivedAmount"`
	Rate                decimal.Decimal `json:"rate"`
	ProcessingTimeLabel string          `json:"processingTimeLabel"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, codeInvalidRequest, "request body must be a JSON object")
		return
	}

	principal, err := wizard.ParseAmount(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusUnprocessableEntity, wizard.ErrorCode(err), err.Error())
		return
	}

	offer, err := h.rates.Lookup(req.Country, req.ServiceID)
	switch {
	case errors.Is(err, rates.ErrCountryNotFound):
		respondWithError(w, http.StatusNotFound, wizard.CodeUnknownDestination, err.Error())
		return
	case errors.Is(err, rates.ErrOfferNotFound):
		respondWithError(w, http.StatusNotFound, wizard.CodeUnknownService, err.Error())
		return
	case err != nil:
		respondInternal(w, r, err)
		return
	}

	quote, err := fees.Compute(principal, offer)
	var outOfRange *fees.OutOfRangeError
	if errors.As(err, &outOfRange) {
		respondWithJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    wizard.CodeOutOfRange,
			Message: err.Error(),
			Min:     &outOfRange.Min,
			Max:     &outOfRange.Max,
		})
		return
	}
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, quoteResponse{
		Country:             offer.DestinationCountry,
		ServiceID:           offer.ID,
		Principal:           quote.Principal,
		Fee:                 quote.Fee,
		TotalDebit:          quote.TotalDebit,
		ReceivedAmount:      quote.ReceivedAmount,
		Rate:                offer.Rate,
		ProcessingTimeLabel: offer.ProcessingTimeLabel,
	})
}

type limitsResponse struct {
	UserID    int64                   `json:"userId"`
	Tier      models.VerificationTier `json:"tier"`
	Limits    models.LimitSet         `json:"limits"`
	Usage     models.Usage            `json:"usage"`
	Remaining models.Usage            `json:"remaining"`
}

func (h *Handler) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	tier, err := h.tiers.Tier(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	set, err := h.policy.Set(tier)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	usage, err := h.usage.Snapshot(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	remaining, err := h.policy.Remaining(tier, usage)
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, limitsResponse{
		UserID:    userID,
		Tier:      tier,
		Limits:    set,
		Usage:     usage,
		Remaining: remaining,
	})
}

type tierRequest struct {
	Tier string `json:"tier"`
}

// handleSetTier is the KYC webhook. The new tier applies to the next limit check.
func (h *Handler) handleSetTier(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, codeInvalidRequest, "request body must be a JSON object")
		return
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, codeInvalidTier, err.Error())
		return
	}

	if err := h.tiers.SetTier(r.Context(), userID, tier); err != nil {
		respondInternal(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"userId": userID, "tier": tier})
}

func (h *Handler) handleListArchive(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	records, err := h.archive.List(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	if records == nil {
		records = []models.UsageRecord{}
	}
	respondWithJSON(w, http.StatusOK, records)
}

type pendingResponse struct {
	Reference string       `json:"reference"`
	RequestID string       `json:"requestId"`
	ServiceID string       `json:"serviceId"`
	Principal models.Money `json:"principal"`
	BookedAt  time.Time    `json:"bookedAt"`
}

func (h *Handler) handleListPending(w http.ResponseWriter, _ *http.Request) {
	pending := h.settlement.Pending()
	out := make([]pendingResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingResponse{
			Reference: p.Reference,
			RequestID: p.Request.ID,
			ServiceID: p.Request.ServiceID,
			Principal: p.Request.Principal,
			BookedAt:  p.BookedAt,
		})
	}
	respondWithJSON(w, http.StatusOK, out)
}

type resolutionRequest struct {
	Status models.TransferStatus `json:"status"`
	Reason string                `json:"reason"`
}

// handleResolve is the provider callback settling a pending transfer.
func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, codeInvalidRequest, "request body must be a JSON object")
		return
	}

	result, err := h.settlement.Resolve(r.Context(), reference, req.Status, req.Reason)
	switch {
	case errors.Is(err, submit.ErrInvalidResolution):
		respondWithError(w, http.StatusBadRequest, codeInvalidResolution, err.Error())
		return
	case errors.Is(err, submit.ErrUnknownReference):
		respondWithError(w, http.StatusNotFound, codeUnknownReference, err.Error())
		return
	case err != nil:
		respondInternal(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		respondWithError(w, http.StatusBadRequest, codeInvalidUserID, "user id must be a positive integer")
		return 0, false
	}
	return userID, true
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, errorResponse{Code: code, Message: message})
}

func respondInternal(w http.ResponseWriter, r *http.Request, err error) {
	logger.Log.Error().Err(err).Str("path", r.URL.Path).Msg("API request failed")
	respondWithError(w, http.StatusInternalServerError, wizard.CodeInternal, "internal error")
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
