// Package memory provides in-process implementations of the repository
// interfaces. They back the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/foxyhub/internal/models"
	"github.com/example/foxyhub/internal/repository"
)

// clock hands out strictly increasing timestamps so insertion order is
// reflected in CreatedAt.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

var stamps clock

func stamp(b *models.BaseModel) {
	b.EnsureID()
	now := stamps.now()
	b.CreatedAt = now
	b.UpdatedAt = now
}

// Users is an in-memory UserRepository.
type Users struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*models.User
}

func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]*models.User)}
}

func (r *Users) GetOrCreateByPhone(_ context.Context, phone string) (*models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, false, nil
		}
	}
	u := &models.User{PhoneNumber: phone}
	stamp(&u.BaseModel)
	r.users[u.ID] = u
	cp := *u
	return &cp, true, nil
}

func (r *Users) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.PhoneNumber == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Users) MarkVerified(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(u *models.User) { u.IsVerified = true })
}

func (r *Users) UpdateProfile(_ context.Context, id uuid.UUID, update repository.ProfileUpdate) error {
	return r.update(id, func(u *models.User) {
		if update.FirstName != nil {
			u.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			u.LastName = *update.LastName
		}
		if update.Email != nil {
			email := *update.Email
			u.Email = &email
		}
	})
}

func (r *Users) SetTelegramID(_ context.Context, id uuid.UUID, telegramID string) error {
	return r.update(id, func(u *models.User) { u.TelegramID = &telegramID })
}

func (r *Users) update(id uuid.UUID, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	fn(u)
	u.UpdatedAt = stamps.now()
	return nil
}

// OTPs is an in-memory OTPRepository.
type OTPs struct {
	mu         sync.RWMutex
	challenges []*models.OTPChallenge
}

func NewOTPs() *OTPs {
	return &OTPs{}
}

func (r *OTPs) Create(_ context.Context, challenge *models.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&challenge.BaseModel)
	cp := *challenge
	r.challenges = append(r.challenges, &cp)
	return nil
}

func (r *OTPs) Latest(_ context.Context, userID uuid.UUID) (*models.OTPChallenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.challenges) - 1; i >= 0; i-- {
		if r.challenges[i].UserID == userID {
			cp := *r.challenges[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *OTPs) MarkUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.ID == id {
			c.IsUsed = true
		}
	}
	return nil
}

// Count returns the number of stored challenges for the user.
func (r *OTPs) Count(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.challenges {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// Expire moves the expiry of every challenge of the user to at.
func (r *OTPs) Expire(userID uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.challenges {
		if c.UserID == userID {
			c.ExpiresAt = at
		}
	}
}

// Catalog is an in-memory CatalogRepository.
type Catalog struct {
	mu         sync.RWMutex
	categories map[uuid.UUID]*models.Category
	products   map[uuid.UUID]*models.Product
	variants   map[uuid.UUID]*models.ProductVariant
}

func NewCatalog() *Catalog {
	return &Catalog{
		categories: make(map[uuid.UUID]*models.Category),
		products:   make(map[uuid.UUID]*models.Product),
		variants:   make(map[uuid.UUID]*models.ProductVariant),
	}
}

func (r *Catalog) ListCategories(_ context.Context) ([]models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Category
	for _, c := range r.categories {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Catalog) FindCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.categories {
		if c.Slug == slug && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Catalog) ListProducts(_ context.Context, filter repository.ProductFilter) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []models.Product
	for _, p := range r.products {
		if !p.IsActive {
			continue
		}
		category := r.categories[p.CategoryID]
		if filter.CategorySlug != "" && (category == nil || category.Slug != filter.CategorySlug) {
			continue
		}
		if filter.ProductType != "" && p.ProductType != filter.ProductType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		cp := *p
		cp.Category = category
		out = append(out, cp)
	}
	sortProducts(out, filter.Ordering)
	return out, nil
}

func sortProducts(products []models.Product, ordering string) {
	desc := strings.HasPrefix(ordering, "-")
	var less func(a, b *models.Product) bool
	switch strings.TrimPrefix(ordering, "-") {
	case "price":
		less = func(a, b *models.Product) bool { return a.Price.LessThan(b.Price) }
	case "name":
		less = func(a, b *models.Product) bool { return a.Name < b.Name }
	case "created_at":
		less = func(a, b *models.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		desc = true
		less = func(a, b *models.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(&products[j], &products[i])
		}
		return less(&products[i], &products[j])
	})
}

func (r *Catalog) FindProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.Slug == slug && p.IsActive {
			cp := *p
			cp.Category = r.categories[p.CategoryID]
			cp.Variants = r.activeVariants(p.ID)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Catalog) FindActiveProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok || !p.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Catalog) FindActiveVariant(_ context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[variantID]
	if !ok || v.ProductID != productID || !v.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *Catalog) ListVariantsByProductSlug(_ context.Context, slug string) ([]models.ProductVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.Slug == slug {
			return r.activeVariants(p.ID), nil
		}
	}
	return nil, nil
}

func (r *Catalog) activeVariants(productID uuid.UUID) []models.ProductVariant {
	var out []models.ProductVariant
	for _, v := range r.variants {
		if v.ProductID == productID && v.IsActive {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMonths < out[j].DurationMonths })
	return out
}

func (r *Catalog) UpsertCategory(_ context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Slug == category.Slug {
			category.BaseModel = c.BaseModel
			*c = *category
			return nil
		}
	}
	stamp(&category.BaseModel)
	cp := *category
	r.categories[cp.ID] = &cp
	return nil
}

func (r *Catalog) UpsertProduct(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Slug == product.Slug {
			product.BaseModel = p.BaseModel
			*p = *product
			p.Variants, p.Category = nil, nil
			return nil
		}
	}
	stamp(&product.BaseModel)
	cp := *product
	cp.Variants, cp.Category = nil, nil
	r.products[cp.ID] = &cp
	return nil
}

func (r *Catalog) UpsertVariant(_ context.Context, variant *models.ProductVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants {
		if v.ProductID == variant.ProductID && v.Name == variant.Name {
			variant.BaseModel = v.BaseModel
			*v = *variant
			return nil
		}
	}
	stamp(&variant.BaseModel)
	cp := *variant
	r.variants[cp.ID] = &cp
	return nil
}

// SetProductPrice changes the list price of a stored product.
func (r *Catalog) SetProductPrice(id uuid.UUID, price decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Price = price
	}
}

// Orders is an in-memory OrderRepository. Err, when set, is returned by
// CreateWithItems without storing anything.
type Orders struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*models.Order
	Err    error
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[uuid.UUID]*models.Order)}
}

func (r *Orders) CreateWithItems(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	stamp(&order.BaseModel)
	for i := range order.Items {
		stamp(&order.Items[i].BaseModel)
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *Orders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *Orders) FindForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (r *Orders) ListForUser(_ context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []models.Order
	for _, o := range r.orders {
		if o.UserID == userID && (status == "" || o.Status == status) {
			all = append(all, *cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []models.Order{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// UpdateStatus forces the order into status.
func (r *Orders) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Status = status
		o.UpdatedAt = stamps.now()
	}
	return nil
}

func (r *Orders) SaveFulfillment(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[order.ID]; ok {
		o.Status = order.Status
		o.Notes = order.Notes
		o.UpdatedAt = stamps.now()
	}
	return nil
}

// Len returns the number of stored orders.
func (r *Orders) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	cp.Payments = nil
	return &cp
}

// Payments is an in-memory PaymentRepository. Complete moves orders held by
// the Orders it was built with.
type Payments struct {
	mu       sync.RWMutex
	payments []*models.Payment
	orders   *Orders
}

func NewPayments(orders *Orders) *Payments {
	return &Payments{orders: orders}
}

func (r *Payments) Create(_ context.Context, payment *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stamp(&payment.BaseModel)
	cp := *payment
	r.payments = append(r.payments, &cp)
	return nil
}

func (r *Payments) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Payments) FindLatestForOrder(_ context.Context, orderID uuid.UUID, status string) (*models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.payments) - 1; i >= 0; i-- {
		p := r.payments[i]
		if p.OrderID == orderID && p.Status == status {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Payments) TransitionStatus(_ context.Context, id uuid.UUID, status string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID == id {
			if p.Status == status {
				return false, nil
			}
			p.Status = status
			p.UpdatedAt = stamps.now()
			return true, nil
		}
	}
	return false, repository.ErrNotFound
}

func (r *Payments) Complete(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ID != id {
			continue
		}
		if p.Status == models.PaymentStatusCompleted {
			return false, nil
		}
		p.Status = models.PaymentStatusCompleted
		p.UpdatedAt = stamps.now()

		r.orders.mu.Lock()
		defer r.orders.mu.Unlock()
		o, ok := r.orders.orders[p.OrderID]
		if !ok || o.Status != models.OrderStatusPending {
			return false, nil
		}
		o.Status = models.OrderStatusPaid
		o.UpdatedAt = stamps.now()
		return true, nil
	}
	return false, repository.ErrNotFound
}

func (r *Payments) ListPending(_ context.Context, method string, createdBefore time.Time) ([]models.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.Status == models.PaymentStatusPending && p.PaymentMethod == method && p.CreatedAt.Before(createdBefore) {
			out = append(out, *p)
		}
	}
	return out, nil
}

// ForOrder returns every payment attempt of the order.
func (r *Payments) ForOrder(orderID uuid.UUID) []models.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out
}
