package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
)

const (
	defaultCartFlushDelay = 500 * time.Millisecond
	cartShutdownTimeout   = 5 * time.Second
	maxCartItems          = 100
)

// CartRepository is interface for storing carts
type CartRepository interface {
	SaveCart(ctx context.Context, cart models.Cart) error
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
}

type pendingCart struct {
	items []models.CartItem
	dueAt time.Time
}

// CartService keeps latest carts in memory and writes them to database in background
type CartService struct {
	repo   CartRepository
	delay  time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingCart
	// carts being written, still served by Load
	inflight map[string]*pendingCart
}

// NewCartService creates new CartService instance.
// Cart is written not later than delay after its first save.
func NewCartService(repo CartRepository, delay time.Duration, logger *zap.Logger) *CartService {
	if delay <= 0 {
		delay = defaultCartFlushDelay
	}
	return &CartService{
		repo:     repo,
		delay:    delay,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string]*pendingCart),
		inflight: make(map[string]*pendingCart),
	}
}

// Save queues user cart
func (cs *CartService) Save(userID string, items []models.CartItem) error {
	if err := validateCart(items); err != nil {
		return err
	}

	snapshot := append([]models.CartItem{}, items...)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if p, ok := cs.pending[userID]; ok {
		// keep original deadline so frequent saves can not postpone write forever
		p.items = snapshot
		return nil
	}

	cs.pending[userID] = &pendingCart{items: snapshot, dueAt: cs.now().Add(cs.delay)}
	return nil
}

// Load returns queued cart if any, otherwise stored cart
func (cs *CartService) Load(ctx context.Context, userID string) ([]models.CartItem, error) {
	cs.mu.Lock()
	p, ok := cs.pending[userID]
	if !ok {
		p, ok = cs.inflight[userID]
	}
	if ok {
		items := append([]models.CartItem{}, p.items...)
		cs.mu.Unlock()
		return items, nil
	}
	cs.mu.Unlock()

	cart, err := cs.repo.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return []models.CartItem{}, nil
		}
		return nil, err
	}

	if cart.Items == nil {
		return []models.CartItem{}, nil
	}
	return cart.Items, nil
}

// Run writes due carts until ctx is done, then writes everything queued
func (cs *CartService) Run(ctx context.Context) {
	ticker := time.NewTicker(max(cs.delay/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), cartShutdownTimeout)
			if err := cs.Flush(flushCtx); err != nil {
				cs.logger.Error("flush carts on shutdown", zap.Error(err))
			}
			cancel()
			cs.logger.Debug("cart writer is done")
			return
		case <-ticker.C:
			now := cs.now()
			if err := cs.flush(ctx, func(p *pendingCart) bool { return !p.dueAt.After(now) }); err != nil {
				cs.logger.Error("flush carts", zap.Error(err))
			}
		}
	}
}

// Flush writes all queued carts
func (cs *CartService) Flush(ctx context.Context) error {
	return cs.flush(ctx, func(*pendingCart) bool { return true })
}

func (cs *CartService) flush(ctx context.Context, due func(*pendingCart) bool) error {
	cs.mu.Lock()
	batch := make(map[string]*pendingCart)
	for userID, p := range cs.pending {
		if _, busy := cs.inflight[userID]; busy {
			continue
		}
		if due(p) {
			batch[userID] = p
			delete(cs.pending, userID)
			cs.inflight[userID] = p
		}
	}
	cs.mu.Unlock()

	var errs []error
	for userID, p := range batch {
		err := cs.repo.SaveCart(ctx, models.Cart{UserID: userID, Items: p.items})
		if err != nil {
			errs = append(errs, fmt.Errorf("save cart of user %s: %w", userID, err))
		}
		cs.settle(userID, p, err)
	}

	return errors.Join(errs...)
}

// settle drops written cart from inflight, failed cart is queued again unless newer one has been saved meanwhile
func (cs *CartService) settle(userID string, p *pendingCart, err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.inflight, userID)
	if err == nil {
		return
	}
	if _, ok := cs.pending[userID]; ok {
		return
	}
	p.dueAt = cs.now().Add(cs.delay)
	cs.pending[userID] = p
}

func validateCart(items []models.CartItem) error {
	if len(items) > maxCartItems {
		return models.NewValidationError("items", fmt.Sprintf("must not contain more than %d items", maxCartItems))
	}
	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			return models.NewValidationError(field+".product_id", "is required")
		}
		if item.Quantity < 1 {
			return models.NewValidationError(field+".quantity", "must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return models.NewValidationError(field+".unit_price", "must not be negative")
		}
	}
	return nil
}
