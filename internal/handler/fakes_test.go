package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/middleware"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/queue"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
)

var errStoreDown = errors.New("store down")

// memUsers keeps plaintext passwords in PasswordHash.
type memUsers struct {
	byID   map[uint64]*model.User
	nextID uint64
	err    error
	saves  int
}

func newMemUsers() *memUsers { return &memUsers{byID: map[uint64]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.PasswordHash, u.Password = u.Password, ""
	u.Cart = []model.CartItem{}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if u.Email == repository.NormalizeEmail(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	cp.Cart = append([]model.CartItem{}, u.Cart...)
	return &cp, nil
}

func (m *memUsers) VerifyPassword(u *model.User, plain string) bool { return u.PasswordHash == plain }

func (m *memUsers) Save(_ context.Context, u *model.User) error {
	if m.err != nil {
		return m.err
	}
	m.saves++
	cp := *u
	cp.Cart = append([]model.CartItem{}, u.Cart...)
	m.byID[u.ID] = &cp
	return nil
}

type memProducts struct {
	byID     map[uint64]model.Product
	nextID   uint64
	err      error
	featured int
}

func newMemProducts(ps ...model.Product) *memProducts {
	m := &memProducts{byID: map[uint64]model.Product{}}
	for _, p := range ps {
		m.byID[p.ID] = p
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
	return m
}

func (m *memProducts) sorted(keep func(model.Product) bool) []model.Product {
	out := []model.Product{}
	for _, p := range m.byID {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memProducts) List(context.Context) ([]model.Product, error) {
	return m.sorted(func(model.Product) bool { return true }), m.err
}

func (m *memProducts) ListFeatured(context.Context) ([]model.Product, error) {
	m.featured++
	return m.sorted(func(p model.Product) bool { return p.IsFeatured }), m.err
}

func (m *memProducts) ListByCategory(_ context.Context, category string) ([]model.Product, error) {
	return m.sorted(func(p model.Product) bool { return p.Category == strings.ToLower(category) }), m.err
}

func (m *memProducts) Sample(_ context.Context, n int) ([]model.Product, error) {
	all := m.sorted(func(model.Product) bool { return true })
	if len(all) > n {
		all = all[:n]
	}
	return all, m.err
}

func (m *memProducts) GetByID(_ context.Context, id uint64) (model.Product, error) {
	if m.err != nil {
		return model.Product{}, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []uint64) (map[uint64]model.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := map[uint64]model.Product{}
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memProducts) Create(_ context.Context, p *model.Product) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	p.ID = m.nextID
	p.Category = strings.ToLower(p.Category)
	m.byID[p.ID] = *p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id uint64) error {
	if _, ok := m.byID[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProducts) ToggleFeatured(_ context.Context, id uint64) (model.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	p.IsFeatured = !p.IsFeatured
	m.byID[id] = p
	return p, nil
}

type memFeatured struct {
	products []model.Product
	cached   bool
	getErr   error
	sets     int
}

func (m *memFeatured) Get(context.Context) ([]model.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if !m.cached {
		return nil, repository.ErrCacheMiss
	}
	return m.products, nil
}

func (m *memFeatured) Set(_ context.Context, ps []model.Product) error {
	m.sets++
	m.products, m.cached = ps, true
	return nil
}

func (m *memFeatured) Invalidate(context.Context) error {
	m.products, m.cached = nil, false
	return nil
}

type fakeImages struct {
	uploaded  []string
	destroyed []string
	uploadErr error
}

func (f *fakeImages) UploadImage(_ context.Context, src string) (service.UploadedImage, error) {
	if f.uploadErr != nil {
		return service.UploadedImage{}, f.uploadErr
	}
	f.uploaded = append(f.uploaded, src)
	return service.UploadedImage{URL: "https://res.cloudinary.com/demo/products/x.png", PublicID: "products/x"}, nil
}

func (f *fakeImages) DestroyImage(_ context.Context, publicID string) error {
	f.destroyed = append(f.destroyed, publicID)
	return errors.New("cloudinary down")
}

type memCoupons struct {
	byUser      map[uint64]model.Coupon
	deactivated []string
	replaced    []model.Coupon
	err         error
}

func newMemCoupons(cs ...model.Coupon) *memCoupons {
	m := &memCoupons{byUser: map[uint64]model.Coupon{}}
	for _, c := range cs {
		m.byUser[c.UserID] = c
	}
	return m
}

func (m *memCoupons) GetActiveForUser(_ context.Context, userID uint64) (model.Coupon, error) {
	if m.err != nil {
		return model.Coupon{}, m.err
	}
	c, ok := m.byUser[userID]
	if !ok || !c.IsActive {
		return model.Coupon{}, repository.ErrCouponNotFound
	}
	return c, nil
}

func (m *memCoupons) GetActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error) {
	c, err := m.GetActiveForUser(ctx, userID)
	if err != nil {
		return c, err
	}
	if c.Code != code {
		return model.Coupon{}, repository.ErrCouponNotFound
	}
	return c, nil
}

func (m *memCoupons) Deactivate(_ context.Context, code string, userID uint64) error {
	m.deactivated = append(m.deactivated, code)
	if c, ok := m.byUser[userID]; ok && c.Code == code {
		c.IsActive = false
		m.byUser[userID] = c
	}
	return nil
}

func (m *memCoupons) ReplaceForUser(_ context.Context, c *model.Coupon) error {
	m.replaced = append(m.replaced, *c)
	m.byUser[c.UserID] = *c
	return nil
}

type memOrders struct {
	bySession map[string]model.Order
	nextID    uint64
	err       error
}

func newMemOrders() *memOrders { return &memOrders{bySession: map[string]model.Order{}} }

func (m *memOrders) GetBySession(_ context.Context, id string) (model.Order, error) {
	o, ok := m.bySession[id]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *memOrders) Create(_ context.Context, o *model.Order) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.bySession[o.StripeSessionID]; ok {
		return repository.ErrConflict
	}
	m.nextID++
	o.ID = m.nextID
	m.bySession[o.StripeSessionID] = *o
	return nil
}

type fakeGateway struct {
	created  []service.CheckoutRequest
	sessions map[string]service.CheckoutSession
	err      error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, req service.CheckoutRequest) (service.CheckoutSession, error) {
	if f.err != nil {
		return service.CheckoutSession{}, f.err
	}
	f.created = append(f.created, req)
	return service.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil
}

func (f *fakeGateway) GetCheckoutSession(_ context.Context, id string) (service.CheckoutSession, error) {
	if f.err != nil {
		return service.CheckoutSession{}, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return service.CheckoutSession{}, service.ErrPaymentRejected
	}
	return s, nil
}

type fakePublisher struct {
	events []queue.OrderPlacedEvent
	err    error
}

func (f *fakePublisher) PublishOrderPlaced(_ context.Context, ev queue.OrderPlacedEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeAnalytics struct {
	from, to time.Time
	err      error
}

func (f *fakeAnalytics) Totals(context.Context) (model.AnalyticsTotals, error) {
	return model.AnalyticsTotals{Users: 3, Products: 4, TotalSales: 2, TotalRevenueCents: 5000}, f.err
}

func (f *fakeAnalytics) DailySales(_ context.Context, from, to time.Time) ([]model.DailySales, error) {
	f.from, f.to = from, to
	return repository.FillDays(from, to, nil), f.err
}

// call runs h with body as JSON and u as the authenticated identity.
func call(h echo.HandlerFunc, method, target, body string, u *model.User, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names, values = append(names, params[i]), append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if u != nil {
		middleware.SetCurrentUser(c, u)
	}
	_ = h(c)
	return rec
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
