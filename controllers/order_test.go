package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/models"
)

func seedProduct(t *testing.T, h *harness, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Category: "Gadgets", Stock: 10}
	require.NoError(t, h.products.Create(context.Background(), p))
	return p
}

func orderPayload(items ...map[string]any) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	return map[string]any{
		"shippingInfo": map[string]any{
			"address": "12 Market St", "city": "Pune", "state": "MH",
			"country": "India", "pincode": "411001", "phoneNumber": "9999999999",
		},
		"orderedItems":  items,
		"paymentInfo":   map[string]any{"id": "pay_123", "status": "succeeded"},
		"itemsPrice":    200,
		"taxPrice":      36,
		"shippingPrice": 0,
		"totalPrice":    236,
	}
}

func item(p *models.Product, qty int) map[string]any {
	return map[string]any{"name": p.Name, "price": p.Price, "quantity": qty, "image": "img.png", "product": p.ID.Hex()}
}

func placeOrder(t *testing.T, h *harness, user *models.User, payload map[string]any) (int, map[string]any) {
	t.Helper()
	rec, body := serve(t, h.orderCtl.CreateOrder, call{method: http.MethodPost, user: user, body: payload})
	return rec.Code, body
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	u := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)
	p := seedProduct(t, h, "Phone", 100)

	payload := orderPayload(item(p, 2))
	payload["user"] = primitive.NewObjectID().Hex()

	code, body := placeOrder(t, h, u, payload)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "Order placed successfully!", body["message"])

	order := body["order"].(map[string]any)
	assert.Equal(t, u.ID.Hex(), order["user"])
	assert.Equal(t, models.OrderProcessing, order["orderStatus"])
	assert.InDelta(t, 236, order["totalPrice"], 0.001)
	assert.Equal(t, 1, h.orders.count())

	h.email.Wait()
	mails := h.mailer.byTag("order_confirmation")
	require.Len(t, mails, 1)
	assert.Equal(t, "asha@example.com", mails[0].To)
}

func TestCreateOrderValidation(t *testing.T) {
	p := &models.Product{ID: primitive.NewObjectID(), Name: "Phone", Price: 100}

	missingShipping := orderPayload(item(p, 1))
	delete(missingShipping, "shippingInfo")
	missingItems := orderPayload()
	delete(missingItems, "orderedItems")

	cases := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{"empty items", orderPayload(), "Order must include at least one item"},
		{"missing items", missingItems, "Invalid order data provided"},
		{"missing shipping", missingShipping, "Invalid order data provided"},
		{"zero quantity", orderPayload(item(p, 0)), "Item quantity must be at least 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			u := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)

			code, body := placeOrder(t, h, u, tc.payload)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tc.message, body["message"])
			assert.Zero(t, h.orders.count())
		})
	}
}

func TestCreateOrderRequiresSession(t *testing.T) {
	h := newHarness(t)
	p := seedProduct(t, h, "Phone", 100)
	code, _ := placeOrder(t, h, nil, orderPayload(item(p, 1)))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Zero(t, h.orders.count())
}

func TestGetMyOrdersPopulatesAndIsolates(t *testing.T) {
	h := newHarness(t)
	asha := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)
	ben := h.seedUser(t, "Ben", "ben@example.com", "password123", models.RoleUser)
	phone := seedProduct(t, h, "Phone", 100)
	phoneCase := seedProduct(t, h, "Case", 10)

	code, _ := placeOrder(t, h, asha, orderPayload(item(phone, 1), item(phoneCase, 2)))
	require.Equal(t, http.StatusCreated, code)
	code, _ = placeOrder(t, h, ben, orderPayload(item(phoneCase, 1)))
	require.Equal(t, http.StatusCreated, code)

	rec, body := serve(t, h.orderCtl.GetMyOrders, call{user: asha})
	require.Equal(t, http.StatusOK, rec.Code)
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	order := orders[0].(map[string]any)
	assert.Equal(t, asha.ID.Hex(), order["user"])
	items := order["orderedItems"].([]any)
	require.Len(t, items, 2)
	product := items[0].(map[string]any)["product"].(map[string]any)
	assert.Equal(t, "Phone", product["name"])
	assert.Equal(t, phone.ID.Hex(), product["_id"])

	carol := h.seedUser(t, "Carol", "carol@example.com", "password123", models.RoleUser)
	rec, body = serve(t, h.orderCtl.GetMyOrders, call{user: carol})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["orders"])

	rec, _ = serve(t, h.orderCtl.GetMyOrders, call{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSingleOrder(t *testing.T) {
	h := newHarness(t)
	asha := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)
	ben := h.seedUser(t, "Ben", "ben@example.com", "password123", models.RoleUser)
	admin := h.seedUser(t, "Root", "root@example.com", "password123", models.RoleAdmin)
	phone := seedProduct(t, h, "Phone", 100)

	_, body := placeOrder(t, h, asha, orderPayload(item(phone, 1)))
	id := body["order"].(map[string]any)["_id"].(string)

	for _, u := range []*models.User{asha, admin} {
		rec, body := serve(t, h.orderCtl.GetSingleOrder, call{user: u, vars: map[string]string{"id": id}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, body["order"].(map[string]any)["_id"])
	}

	rec, _ := serve(t, h.orderCtl.GetSingleOrder, call{user: ben, vars: map[string]string{"id": id}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, h.orderCtl.GetSingleOrder, call{user: asha, vars: map[string]string{"id": primitive.NewObjectID().Hex()}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAllOrders(t *testing.T) {
	h := newHarness(t)
	asha := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)
	admin := h.seedUser(t, "Root", "root@example.com", "password123", models.RoleAdmin)
	phone := seedProduct(t, h, "Phone", 100)
	placeOrder(t, h, asha, orderPayload(item(phone, 1)))
	placeOrder(t, h, asha, orderPayload(item(phone, 3)))

	rec, body := serve(t, h.orderCtl.GetAllOrders, call{user: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["orders"], 2)
}

func TestUpdateOrder(t *testing.T) {
	h := newHarness(t)
	asha := h.seedUser(t, "Asha", "asha@example.com", "password123", models.RoleUser)
	admin := h.seedUser(t, "Root", "root@example.com", "password123", models.RoleAdmin)
	phone := seedProduct(t, h, "Phone", 100)
	_, body := placeOrder(t, h, asha, orderPayload(item(phone, 1)))
	id := body["order"].(map[string]any)["_id"].(string)

	update := func(vars map[string]string, payload map[string]any) (int, map[string]any) {
		rec, body := serve(t, h.orderCtl.UpdateOrder, call{method: http.MethodPut, user: admin, vars: vars, body: payload})
		return rec.Code, body
	}

	code, _ := update(map[string]string{"id": primitive.NewObjectID().Hex()}, map[string]any{"orderStatus": models.OrderShipped})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = update(map[string]string{"id": id}, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = update(map[string]string{"id": id}, map[string]any{"orderStatus": "Lost"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = update(map[string]string{"id": id}, map[string]any{"orderStatus": models.OrderShipped})
	require.Equal(t, http.StatusOK, code)
	order := body["order"].(map[string]any)
	assert.Equal(t, models.OrderShipped, order["orderStatus"])
	assert.NotContains(t, order, "deliveredAt")

	code, body = update(map[string]string{"id": id}, map[string]any{"orderStatus": models.OrderDelivered})
	require.Equal(t, http.StatusOK, code)
	order = body["order"].(map[string]any)
	assert.Equal(t, models.OrderDelivered, order["orderStatus"])
	assert.NotEmpty(t, order["deliveredAt"])
}
