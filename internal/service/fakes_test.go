package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rookgm/storefront/internal/email"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// memStore keeps orders and payment tokens in memory
type memStore struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	tokens      map[string]*models.PaymentToken
	fees        map[string]decimal.Decimal
	transitions int
	itemsErr    error
	tokenErr    error
	deleted     []string
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*models.Order),
		tokens: make(map[string]*models.PaymentToken),
		fees:   make(map[string]decimal.Decimal),
	}
}

func (s *memStore) addOrder(order models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = &order
}

func (s *memStore) addToken(token string, orderID string, provider models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = &models.PaymentToken{Token: token, OrderID: orderID, Provider: provider}
}

func (s *memStore) order(id string) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *memStore) CreateOrder(_ context.Context, order *models.Order) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return nil, models.ErrConflictData
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	s.orders[order.ID] = &stored
	return order, nil
}

func (s *memStore) CreateOrderItems(_ context.Context, orderID string, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itemsErr != nil {
		return s.itemsErr
	}
	s.orders[orderID].Items = append([]models.OrderItem{}, items...)
	return nil
}

func (s *memStore) DeleteOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
	s.deleted = append(s.deleted, orderID)
	return nil
}

func (s *memStore) GetOrderByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	o := *order
	return &o, nil
}

func (s *memStore) GetOrdersByUserID(_ context.Context, userID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := []models.Order{}
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (s *memStore) GetShippingFee(_ context.Context, country, city string) (*models.ShippingFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[country+"/"+city]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	return &models.ShippingFee{Country: country, City: city, Fee: fee}, nil
}

func (s *memStore) TransitionOrder(_ context.Context, orderID string, status models.OrderStatus, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != models.OrderStatusPending {
		return false, nil
	}
	order.Status = status
	order.FailureReason = reason
	s.transitions++
	return true, nil
}

func (s *memStore) CreateToken(_ context.Context, token *models.PaymentToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenErr != nil {
		return s.tokenErr
	}
	if _, ok := s.tokens[token.Token]; ok {
		return models.ErrConflictData
	}
	t := *token
	s.tokens[token.Token] = &t
	return nil
}

func (s *memStore) GetToken(_ context.Context, token string) (*models.PaymentToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pt, ok := s.tokens[token]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	t := *pt
	return &t, nil
}

// fakeGateway answers verification with fixed result
type fakeGateway struct {
	verification *models.Verification
	verifyErr    error
	intent       *models.Intent
	initiateErr  error

	verifyCalls atomic.Int32
	lastVerify  atomic.Value
	lastIntent  atomic.Value
}

func (g *fakeGateway) Initiate(_ context.Context, req models.IntentRequest) (*models.Intent, error) {
	g.lastIntent.Store(req)
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	return g.intent, nil
}

func (g *fakeGateway) Verify(_ context.Context, req models.VerifyRequest) (*models.Verification, error) {
	g.verifyCalls.Add(1)
	g.lastVerify.Store(req)
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	v := *g.verification
	return &v, nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderCompletedEvent
	err    error
}

func (p *fakePublisher) PublishOrderCompleted(_ context.Context, event models.OrderCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// fakeMailer records sent messages, fails for addresses in failFor
type fakeMailer struct {
	mu      sync.Mutex
	sent    []email.Message
	failFor map[string]error
}

func (m *fakeMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range msg.To {
		if err, ok := m.failFor[to]; ok {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}
