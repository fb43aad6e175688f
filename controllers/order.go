// controllers/order.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/apperror"
	"zipngo/config"
	"zipngo/metrics"
	"zipngo/middleware"
	"zipngo/models"
	"zipngo/utils"
)

// OrderStore is the persistence the order controller needs.
type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.PopulatedOrder, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	Update(ctx context.Context, id primitive.ObjectID, u models.OrderUpdate) (*models.Order, error)
}

// OrderController handles order-related requests
type OrderController struct {
	Orders       OrderStore
	EmailService *utils.EmailService

	timeout time.Duration
}

// NewOrderController creates a new OrderController
func NewOrderController(orders OrderStore, emailService *utils.EmailService, cfg config.Config) *OrderController {
	return &OrderController{
		Orders:       orders,
		EmailService: emailService,
		timeout:      cfg.RequestTimeout,
	}
}

type createOrderRequest struct {
	ShippingInfo  *models.ShippingInfo `json:"shippingInfo"`
	OrderedItems  []models.OrderItem   `json:"orderedItems"`
	PaymentInfo   *models.PaymentInfo  `json:"paymentInfo"`
	ItemsPrice    float64              `json:"itemsPrice"`
	TaxPrice      float64              `json:"taxPrice"`
	ShippingPrice float64              `json:"shippingPrice"`
	TotalPrice    float64              `json:"totalPrice"`
	PaidAt        *time.Time           `json:"paidAt"`
}

func (req createOrderRequest) validate() error {
	if req.ShippingInfo == nil || req.OrderedItems == nil || req.PaymentInfo == nil {
		return apperror.Validation("Invalid order data provided")
	}
	if len(req.OrderedItems) == 0 {
		return apperror.Validation("Order must include at least one item")
	}
	for _, it := range req.OrderedItems {
		if it.Product.IsZero() {
			return apperror.Validation("Every ordered item must reference a product")
		}
		if it.Quantity < 1 {
			return apperror.Validation("Item quantity must be at least 1")
		}
		if it.Price < 0 {
			return apperror.Validation("Item price cannot be negative")
		}
	}
	return nil
}

// CreateOrder places an order for the authenticated user. Any user id in the
// body is ignored.
func (oc *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}

	var req createOrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	order := &models.Order{
		ShippingInfo:  *req.ShippingInfo,
		OrderedItems:  req.OrderedItems,
		User:          user.ID,
		PaymentInfo:   *req.PaymentInfo,
		PaidAt:        req.PaidAt,
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
	}

	ctx, cancel := requestContext(r, oc.timeout)
	defer cancel()

	if err := oc.Orders.Create(ctx, order); err != nil {
		utils.WriteError(w, r, apperror.Internal("Error while placing your order!", err))
		return
	}
	metrics.OrdersPlaced.Inc()

	utils.WriteJSON(w, http.StatusCreated, utils.Envelope{
		"success": true,
		"message": "Order placed successfully!",
		"order":   order,
	})

	oc.EmailService.Go(r.Context(), "order_confirmation", func(ctx context.Context) error {
		return oc.EmailService.SendOrderConfirmationEmail(ctx, user, order)
	})
}

// GetSingleOrder returns one order. Users only see their own orders.
func (oc *OrderController) GetSingleOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}
	id, err := pathID(r, "Order not found")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	ctx, cancel := requestContext(r, oc.timeout)
	defer cancel()

	order, err := oc.Orders.FindByID(ctx, id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if !user.IsAdmin() && order.User != user.ID {
		utils.WriteError(w, r, apperror.NotFound("Order not found"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "order": order})
}

// GetMyOrders returns the authenticated user's orders with products expanded.
func (oc *OrderController) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok || user.ID.IsZero() {
		utils.WriteError(w, r, apperror.Auth("User not authorized"))
		return
	}

	ctx, cancel := requestContext(r, oc.timeout)
	defer cancel()

	orders, err := oc.Orders.FindByUser(ctx, user.ID)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error while getting your orders!", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "orders": orders})
}

// GetAllOrders lists every order. Admin only.
func (oc *OrderController) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r, oc.timeout)
	defer cancel()

	orders, err := oc.Orders.FindAll(ctx)
	if err != nil {
		utils.WriteError(w, r, apperror.Internal("Error while getting all orders!", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"success": true, "orders": orders})
}

// UpdateOrder applies a partial update to an order. Admin only.
func (oc *OrderController) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "Order not found")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	var update models.OrderUpdate
	if err := utils.DecodeJSON(r, &update); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if update.Empty() {
		utils.WriteError(w, r, apperror.Validation("Nothing to update"))
		return
	}
	if update.OrderStatus != nil {
		if !models.ValidOrderStatus(*update.OrderStatus) {
			utils.WriteError(w, r, apperror.Validation("Order status must be Processing, Shipped or Delivered"))
			return
		}
		if *update.OrderStatus == models.OrderDelivered {
			now := time.Now().UTC()
			update.DeliveredAt = &now
		}
	}

	ctx, cancel := requestContext(r, oc.timeout)
	defer cancel()

	order, err := oc.Orders.Update(ctx, id, update)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.Envelope{
		"success": true,
		"message": "Order updated successfully!",
		"order":   order,
	})
}
