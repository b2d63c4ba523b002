//go:generate mockgen -source=order.go -destination=mocks/order_mock.go -package=mocks

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	// PlaceOrder validates checkout and stores pending order
	PlaceOrder(ctx context.Context, userID string, checkout models.Checkout) (*models.Order, error)
	// ListUserOrders returns list of user orders
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	// GetUserOrder returns order owned by user
	GetUserOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type orderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type placeOrderRequest struct {
	Items         []orderItemRequest  `json:"items"`
	ShippingInfo  models.ShippingInfo `json:"shipping_info"`
	PaymentMethod string              `json:"payment_method"`
}

type orderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderResp is order in API responses
type OrderResp struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	TotalAmount   string              `json:"total_amount"`
	Currency      string              `json:"currency"`
	PaymentMethod string              `json:"payment_method"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	ShippingInfo  models.ShippingInfo `json:"shipping_info"`
	Items         []orderItemResponse `json:"items,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

func newOrderResp(order models.Order) OrderResp {
	resp := OrderResp{
		ID:            order.ID,
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		Currency:      order.Currency,
		PaymentMethod: string(order.PaymentMethod),
		FailureReason: order.FailureReason,
		ShippingInfo:  order.ShippingInfo,
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return resp
}

// PlaceOrder creates pending order from checkout
// 201 — заказ создан;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) PlaceOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req placeOrderRequest
		if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxBodySize), &req); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "bad request")
			return
		}
		defer r.Body.Close()

		checkout := models.Checkout{
			Shipping:      req.ShippingInfo,
			PaymentMethod: models.Provider(req.PaymentMethod),
		}
		for _, item := range req.Items {
			checkout.Items = append(checkout.Items, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			})
		}

		order, err := oh.svc.PlaceOrder(r.Context(), payload.UserID, checkout)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, newOrderResp(*order))
	}
}

// ListUserOrders returns user orders, newest first
// 200 — успешная обработка запроса.
// 401 — пользователь не авторизован.
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) ListUserOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := oh.svc.ListUserOrders(r.Context(), payload.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := make([]OrderResp, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, newOrderResp(order))
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}

// GetUserOrder returns one user order with items
// 200 — успешная обработка запроса.
// 401 — пользователь не авторизован.
// 404 — заказ не найден.
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) GetUserOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := middleware.AuthPayload(r.Context())
		if !ok {
			writeMessage(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		order, err := oh.svc.GetUserOrder(r.Context(), payload.UserID, chi.URLParam(r, "orderID"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, newOrderResp(*order))
	}
}
