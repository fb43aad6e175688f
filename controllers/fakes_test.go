package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"zipngo/apperror"
	"zipngo/config"
	"zipngo/middleware"
	"zipngo/models"
	"zipngo/utils"
)

// memUsers is an in-memory UserStore keyed by id.
type memUsers struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[primitive.ObjectID]models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return apperror.Conflict("Email already exists", nil)
		}
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	return &u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (m *memUsers) FindByResetToken(_ context.Context, hashedToken string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.ResetPasswordToken == hashedToken && u.ResetPasswordExpire != nil && u.ResetPasswordExpire.After(now) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) update(id primitive.ObjectID, fn func(u *models.User)) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	fn(&u)
	m.byID[id] = u
	return &u, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id primitive.ObjectID, p models.ProfileUpdate) (*models.User, error) {
	if p.Email != nil && m.emailTaken(*p.Email, id) {
		return nil, apperror.Conflict("Email already exists", nil)
	}
	return m.update(id, func(u *models.User) {
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Email != nil {
			u.Email = *p.Email
		}
	})
}

func (m *memUsers) UpdateRoleAndProfile(_ context.Context, id primitive.ObjectID, r models.RoleUpdate) (*models.User, error) {
	if m.emailTaken(r.Email, id) {
		return nil, apperror.Conflict("Email already exists", nil)
	}
	return m.update(id, func(u *models.User) {
		u.Name, u.Email, u.Role = r.Name, r.Email, r.Role
	})
}

func (m *memUsers) SetResetToken(_ context.Context, id primitive.ObjectID, hashedToken string, expires time.Time) error {
	_, err := m.update(id, func(u *models.User) {
		u.ResetPasswordToken = hashedToken
		u.ResetPasswordExpire = &expires
	})
	return err
}

func (m *memUsers) ClearResetToken(_ context.Context, id primitive.ObjectID) error {
	_, err := m.update(id, func(u *models.User) {
		u.ResetPasswordToken = ""
		u.ResetPasswordExpire = nil
	})
	return err
}

func (m *memUsers) UpdatePassword(_ context.Context, id primitive.ObjectID, hashedPassword string) error {
	_, err := m.update(id, func(u *models.User) {
		u.Password = hashedPassword
		u.ResetPasswordToken = ""
		u.ResetPasswordExpire = nil
	})
	return err
}

func (m *memUsers) Delete(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	delete(m.byID, id)
	return &u, nil
}

// emailTaken mirrors the unique email index.
func (m *memUsers) emailTaken(email string, except primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.byID {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memProducts is an in-memory ProductStore.
type memProducts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Product
}

func newMemProducts() *memProducts {
	return &memProducts{byID: map[primitive.ObjectID]models.Product{}}
}

func (m *memProducts) Create(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = time.Now().UTC()
	m.byID[p.ID] = *p
	return nil
}

func (m *memProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("Product not found")
	}
	return &p, nil
}

func (m *memProducts) List(_ context.Context, keyword, category string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.byID {
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(keyword)) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) Update(_ context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("Product not found")
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	m.byID[id] = p
	return &p, nil
}

func (m *memProducts) Delete(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, apperror.NotFound("Product not found")
	}
	delete(m.byID, id)
	return &p, nil
}

// memOrders is an in-memory OrderStore that populates from memProducts.
type memOrders struct {
	mu       sync.Mutex
	orders   []models.Order
	products *memProducts
}

func (m *memOrders) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = primitive.NewObjectID()
	o.CreatedAt = time.Now().UTC()
	if o.OrderStatus == "" {
		o.OrderStatus = models.OrderProcessing
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, apperror.NotFound("Order not found")
}

func (m *memOrders) FindByUser(_ context.Context, userID primitive.ObjectID) ([]models.PopulatedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products.mu.Lock()
	defer m.products.mu.Unlock()
	out := []models.PopulatedOrder{}
	for _, o := range m.orders {
		if o.User != userID {
			continue
		}
		byID := map[primitive.ObjectID]*models.Product{}
		for _, it := range o.OrderedItems {
			if p, ok := m.products.byID[it.Product]; ok {
				byID[it.Product] = &p
			}
		}
		out = append(out, o.Populate(byID))
	}
	return out, nil
}

func (m *memOrders) FindAll(context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Order{}, m.orders...), nil
}

func (m *memOrders) Update(_ context.Context, id primitive.ObjectID, u models.OrderUpdate) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID != id {
			continue
		}
		o := &m.orders[i]
		if u.OrderStatus != nil {
			o.OrderStatus = *u.OrderStatus
		}
		if u.DeliveredAt != nil {
			o.DeliveredAt = u.DeliveredAt
		}
		if u.PaymentInfo != nil {
			o.PaymentInfo = *u.PaymentInfo
		}
		if u.TotalPrice != nil {
			o.TotalPrice = *u.TotalPrice
		}
		out := *o
		return &out, nil
	}
	return nil, apperror.NotFound("Order not found")
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// captureMailer records every message it is asked to send.
type captureMailer struct {
	mu   sync.Mutex
	sent []utils.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg utils.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) byTag(tag string) []utils.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []utils.Message
	for _, msg := range m.sent {
		if msg.Tag == tag {
			out = append(out, msg)
		}
	}
	return out
}

type harness struct {
	users    *memUsers
	products *memProducts
	orders   *memOrders
	mailer   *captureMailer
	email    *utils.EmailService

	userCtl    *UserController
	productCtl *ProductController
	orderCtl   *OrderController
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{
		RequestTimeout: 5 * time.Second,
		ResetTokenTTL:  30 * time.Minute,
		Session:        config.SessionConfig{Secret: "test-secret", TokenTTL: time.Hour, CookieTTL: time.Hour},
		Mail:           config.MailConfig{AppURL: "https://zipngo.test", Timeout: time.Second},
	}
	h := &harness{
		users:    newMemUsers(),
		products: newMemProducts(),
		mailer:   &captureMailer{},
	}
	h.orders = &memOrders{products: h.products}
	h.email = utils.NewEmailService(h.mailer, cfg.Mail)
	t.Cleanup(h.email.Wait)

	sessions := utils.NewSessionManager(cfg.Session)
	h.userCtl = NewUserController(h.users, sessions, h.email, cfg)
	h.productCtl = NewProductController(h.products, cfg)
	h.orderCtl = NewOrderController(h.orders, h.email, cfg)
	return h
}

// seedUser stores a user with the given password and role.
func (h *harness) seedUser(t *testing.T, name, email, password, role string) *models.User {
	t.Helper()
	hashed, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Name: name, Email: email, Password: hashed, Role: role}
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}

type call struct {
	method string
	path   string
	body   any
	user   *models.User
	vars   map[string]string
}

func serve(t *testing.T, handler http.HandlerFunc, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	method := c.method
	if method == "" {
		method = http.MethodGet
	}
	path := c.path
	if path == "" {
		path = "/"
	}
	req := httptest.NewRequest(method, path, &body)
	if c.user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), c.user))
	}
	if c.vars != nil {
		req = mux.SetURLVars(req, c.vars)
	}

	rec := httptest.NewRecorder()
	handler(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}
