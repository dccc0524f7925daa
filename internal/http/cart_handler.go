package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/coupon"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/repository"
	"github.com/fjod/go_cart/cart-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartAPI is the part of the cart service exposed over HTTP.
type CartAPI interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, ownerID string, req service.AddItemRequest) (*domain.Cart, error)
	RemoveItem(ctx context.Context, ownerID, itemID string) (*domain.Cart, error)
	ApplyCouponCode(ctx context.Context, ownerID, code string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context, ownerID, code string) (*domain.Cart, error)
	MoveToSavedForLater(ctx context.Context, ownerID, itemID, reason string) (*domain.Cart, error)
	MoveFromSavedForLater(ctx context.Context, ownerID, itemID string) (*domain.Cart, error)
	RemoveSavedItem(ctx context.Context, ownerID, itemID string) (*domain.Cart, error)
	Clear(ctx context.Context, ownerID string) (*domain.Cart, error)
	BeginCheckout(ctx context.Context, ownerID string) (*domain.CheckoutSnapshot, error)
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
}

func NewCartHandler(carts CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

// Routes mounts the cart endpoints on r. Every route needs X-User-ID.
func (h *CartHandler) Routes(r chi.Router) {
	r.Use(OwnerMiddleware)
	r.Get("/", h.GetCart)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Delete("/items/{item_id}", h.RemoveItem)
	r.Post("/coupons", h.ApplyCoupon)
	r.Delete("/coupons/{code}", h.RemoveCoupon)
	r.Post("/saved/{item_id}", h.SaveForLater)
	r.Post("/saved/{item_id}/restore", h.RestoreSaved)
	r.Delete("/saved/{item_id}", h.RemoveSaved)
	r.Post("/checkout", h.BeginCheckout)
}

// AddItemRequestDTO carries no prices: buyers always pay the catalog price.
type AddItemRequestDTO struct {
	ItemID        string `json:"item_id"`
	Priority      int    `json:"priority"`
	IsGift        bool   `json:"is_gift"`
	GiftRecipient string `json:"gift_recipient,omitempty"`
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

type SaveForLaterRequestDTO struct {
	Reason string `json:"reason"`
}

// CartView is the cart plus what a client needs to render it.
type CartView struct {
	*domain.Cart
	ExpiresAt time.Time     `json:"expires_at"`
	Discounts []coupon.Line `json:"discounts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func newCartView(c *domain.Cart) CartView {
	return CartView{
		Cart:      c,
		ExpiresAt: c.ExpiresAt(),
		Discounts: coupon.Breakdown(c.Items, c.AppliedCoupons),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.GetCart(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ItemID == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id is required")
		return
	}

	c, err := h.carts.AddItem(ctx, ownerFromContext(r.Context()), service.AddItemRequest{
		ItemID:        req.ItemID,
		Priority:      req.Priority,
		IsGift:        req.IsGift,
		GiftRecipient: req.GiftRecipient,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartView(c))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.itemOp(w, r, h.carts.RemoveItem)
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_coupon", "code is required")
		return
	}

	c, err := h.carts.ApplyCouponCode(ctx, ownerFromContext(r.Context()), req.Code)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.RemoveCoupon(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *CartHandler) SaveForLater(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// the body is optional
	var req SaveForLaterRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	c, err := h.carts.MoveToSavedForLater(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "item_id"), req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *CartHandler) RestoreSaved(w http.ResponseWriter, r *http.Request) {
	h.itemOp(w, r, h.carts.MoveFromSavedForLater)
}

func (h *CartHandler) RemoveSaved(w http.ResponseWriter, r *http.Request) {
	h.itemOp(w, r, h.carts.RemoveSavedItem)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.Clear(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func (h *CartHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.carts.BeginCheckout(ctx, ownerFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (h *CartHandler) itemOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ownerID, itemID string) (*domain.Cart, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := op(ctx, ownerFromContext(r.Context()), chi.URLParam(r, "item_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartView(c))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.New("http").Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// errorMapping pairs a failure kind with its HTTP status and code. The first match wins.
var errorMapping = []struct {
	kind   error
	status int
	code   string
}{
	{service.ErrOwnerRequired, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{domain.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
	{coupon.ErrUnknownCoupon, http.StatusNotFound, "unknown_coupon"},
	{domain.ErrItemUnavailable, http.StatusConflict, "item_unavailable"},
	{domain.ErrCurrencyMismatch, http.StatusConflict, "currency_mismatch"},
	{domain.ErrEmptyCart, http.StatusConflict, "empty_cart"},
	{domain.ErrDuplicateOwner, http.StatusConflict, "already_exists"},
	{repository.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
	{domain.ErrCartExpired, http.StatusGone, "cart_expired"},
	{domain.ErrCouponExpired, http.StatusUnprocessableEntity, "coupon_expired"},
	{domain.ErrCouponNotApplicable, http.StatusUnprocessableEntity, "coupon_not_applicable"},
	{domain.ErrInvalidCoupon, http.StatusUnprocessableEntity, "invalid_coupon"},
	{domain.ErrInvalidPrice, http.StatusBadRequest, "invalid_price"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.kind) {
			respondError(w, m.status, m.code, err.Error())
			return
		}
	}

	logging.FromCtx(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
