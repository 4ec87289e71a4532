package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/outbox/payloads"
	"github.com/persiashop/storefront-backend/pkg/redis"
	"github.com/persiashop/storefront-backend/pkg/types"
)

const mergeLockScope = "cart-merge"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// Service is the cart surface used by the HTTP controllers.
type Service interface {
	// Active returns the authoritative cart for the caller. userID 0 means anonymous.
	Active(ctx context.Context, userID int64, guest *LocalStore) (View, error)
	AddItem(ctx context.Context, userID int64, input ItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*UpdateResult, error)
	RemoveItem(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
	Merge(ctx context.Context, userID int64, local []LocalItem) (*MergeResult, error)
	MergeGuest(ctx context.Context, userID int64, guest *LocalStore) (*MergeResult, error)

	OpenGuest(ctx context.Context, sessionID string) (*LocalStore, error)
	AddGuestItem(ctx context.Context, guest *LocalStore, item LocalItem) (View, error)
	UpdateGuestItem(ctx context.Context, guest *LocalStore, productID int64, options types.SelectedOptions, quantity int) (View, error)
	RemoveGuestItem(ctx context.Context, guest *LocalStore, productID int64, options types.SelectedOptions) (View, error)
	ClearGuest(ctx context.Context, guest *LocalStore) error
}

// ServiceParams bundles the dependencies of the cart service.
type ServiceParams struct {
	Repo       *Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Locks      lockStore
	GuestStore guestStore
	Cache      *Cache
	Metrics    *metrics.CartMetrics
	Logger     *logger.Logger
	Config     config.CartConfig
}

type service struct {
	repo    *Repository
	tx      txRunner
	outbox  outboxPublisher
	locks   lockStore
	guests  guestStore
	cache   *Cache
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	cfg     config.CartConfig
	now     func() time.Time
}

// NewService wires the cart service. Cache, metrics and logger are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if params.GuestStore == nil {
		return nil, fmt.Errorf("guest cart store required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		locks:   params.Locks,
		guests:  params.GuestStore,
		cache:   params.Cache,
		metrics: params.Metrics,
		logg:    params.Logger,
		cfg:     params.Config,
		now:     time.Now,
	}, nil
}

func (s *service) Active(ctx context.Context, userID int64, guest *LocalStore) (View, error) {
	var local []LocalItem
	if guest != nil {
		local = guest.Items()
	}
	if userID <= 0 {
		return BuildView(false, nil, local), nil
	}
	persisted, err := s.cache.Get(ctx, userID, func(ctx context.Context) (*models.Cart, error) {
		return s.repo.GetCart(ctx, userID)
	})
	if err != nil {
		return View{}, err
	}
	return BuildView(true, persisted, local), nil
}

func (s *service) AddItem(ctx context.Context, userID int64, input ItemInput) (*models.CartItem, error) {
	if err := s.checkQuantity(input.Quantity); err != nil {
		return nil, err
	}
	input.MaxLineQuantity = s.cfg.MaxItemQuantity
	item, err := s.repo.AddItem(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	s.info(ctx, userID, "cart.item.added", map[string]any{"product_id": input.ProductID, "cart_item_id": item.ID})
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*UpdateResult, error) {
	if quantity > 0 {
		if err := s.checkQuantity(quantity); err != nil {
			// merged lines may sit above the cap; they can still be lowered
			current, qerr := s.repo.ItemQuantity(ctx, userID, itemID)
			if qerr != nil {
				return nil, qerr
			}
			if quantity > current {
				return nil, err
			}
		}
	}
	result, err := s.repo.UpdateItem(ctx, userID, itemID, quantity)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if err := s.repo.RemoveItem(ctx, userID, itemID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *service) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Merge folds local into the user's persisted cart. Merges for one user are
// serialized by a Redis lock; a second concurrent merge fails with CONFLICT.
func (s *service) Merge(ctx context.Context, userID int64, local []LocalItem) (*MergeResult, error) {
	start := s.now()
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := ValidateLocalItems(local, s.cfg.MaxMergeItems); err != nil {
		s.metrics.ObserveMerge(metrics.MergeResultFailed, s.now().Sub(start), 0, 0)
		return nil, err
	}

	lock, err := redis.NewLock(s.locks, s.locks.LockKey(mergeLockScope, strconv.FormatInt(userID, 10)), s.cfg.MergeLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build merge lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire merge lock")
	}
	if !acquired {
		s.metrics.ObserveMerge(metrics.MergeResultConflict, s.now().Sub(start), 0, 0)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart merge already in progress")
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.warn(ctx, userID, "cart.merge.lock_release_failed", err)
		}
	}()

	var result *MergeResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		merged, err := mergeLocal(ctx, s.repo.WithTx(tx), userID, local)
		if err != nil {
			return err
		}
		if len(local) > 0 {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCartMerged,
				AggregateType: enums.AggregateCart,
				AggregateID:   strconv.FormatInt(merged.CartID, 10),
				Actor:         &outbox.ActorRef{UserID: userID},
				Version:       1,
				OccurredAt:    s.now().UTC(),
				Data: payloads.CartMergedEvent{
					CartID:        merged.CartID,
					UserID:        userID,
					ItemsUpdated:  merged.Updated,
					ItemsInserted: merged.Inserted,
					Quantity:      merged.Quantity,
					MergedAt:      s.now().UTC(),
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue cart merged event")
			}
		}
		result = merged
		return nil
	})
	if err != nil {
		s.metrics.ObserveMerge(metrics.MergeResultFailed, s.now().Sub(start), 0, 0)
		s.logError(ctx, userID, "cart.merge.failed", err)
		return nil, asTyped(err, "merge cart")
	}

	s.invalidate(ctx, userID)
	outcome := metrics.MergeResultSuccess
	if len(local) == 0 {
		outcome = metrics.MergeResultEmpty
	}
	s.metrics.ObserveMerge(outcome, s.now().Sub(start), result.Updated, result.Inserted)
	s.info(ctx, userID, "cart.merge.completed", map[string]any{
		"cart_id":  result.CartID,
		"updated":  result.Updated,
		"inserted": result.Inserted,
	})
	return result, nil
}

// MergeGuest merges the guest cart and clears it only once the merge committed.
func (s *service) MergeGuest(ctx context.Context, userID int64, guest *LocalStore) (*MergeResult, error) {
	if guest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest cart required")
	}
	result, err := s.Merge(ctx, userID, guest.Items())
	if err != nil {
		return nil, err
	}
	if err := guest.Clear(ctx); err != nil {
		// The merge is committed; the Idempotency-Key on the request guards the retry.
		s.logError(ctx, userID, "cart.merge.guest_clear_failed", err)
	}
	return result, nil
}

// OpenGuest loads the guest cart named by sessionID and drops stale lines.
func (s *service) OpenGuest(ctx context.Context, sessionID string) (*LocalStore, error) {
	slot, err := NewGuestSlot(s.guests, sessionID, s.cfg.GuestTTL)
	if err != nil {
		if errors.Is(err, errGuestSessionRequired) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "X-Cart-Session header required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open guest cart")
	}
	store, err := LoadLocalStore(ctx, slot, s.now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}
	if s.cfg.StaleItemAge > 0 {
		if _, err := store.CleanupStale(ctx, s.cfg.StaleItemAge); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clean guest cart")
		}
	}
	return store, nil
}

func (s *service) AddGuestItem(ctx context.Context, guest *LocalStore, item LocalItem) (View, error) {
	if guest == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "guest cart required")
	}
	if err := ValidateLocalItems([]LocalItem{item}, 0); err != nil {
		return View{}, err
	}
	if err := s.checkQuantity(item.Quantity); err != nil {
		return View{}, err
	}
	if err := checkLineQuantity(guest.lineQuantity(item.identity())+item.Quantity, s.cfg.MaxItemQuantity); err != nil {
		return View{}, err
	}
	items, err := guest.Add(ctx, item)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return BuildView(false, nil, items), nil
}

func (s *service) UpdateGuestItem(ctx context.Context, guest *LocalStore, productID int64, options types.SelectedOptions, quantity int) (View, error) {
	if guest == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "guest cart required")
	}
	var (
		items []LocalItem
		err   error
	)
	if quantity <= 0 {
		items, err = guest.Remove(ctx, productID, options)
	} else {
		if err := s.checkQuantity(quantity); err != nil {
			return View{}, err
		}
		items, err = guest.Update(ctx, productID, options, quantity)
	}
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return BuildView(false, nil, items), nil
}

func (s *service) RemoveGuestItem(ctx context.Context, guest *LocalStore, productID int64, options types.SelectedOptions) (View, error) {
	if guest == nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "guest cart required")
	}
	items, err := guest.Remove(ctx, productID, options)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return BuildView(false, nil, items), nil
}

func (s *service) ClearGuest(ctx context.Context, guest *LocalStore) error {
	if guest == nil {
		return nil
	}
	if err := guest.Clear(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear guest cart")
	}
	return nil
}

// checkQuantity bounds one requested quantity. Adds also cap the resulting
// line; merge is exempt because it always sums.
func (s *service) checkQuantity(quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if s.cfg.MaxItemQuantity > 0 && quantity > s.cfg.MaxItemQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be at most %d", s.cfg.MaxItemQuantity))
	}
	return nil
}

// invalidate is best effort: a stale entry expires with the cache TTL.
func (s *service) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.warn(ctx, userID, "cart.cache.invalidate_failed", err)
	}
}

func (s *service) info(ctx context.Context, userID int64, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithUserID(ctx, userID)
	logCtx = s.logg.WithFields(logCtx, fields)
	s.logg.Info(logCtx, msg)
}

func (s *service) warn(ctx context.Context, userID int64, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, userID), map[string]any{"error": err.Error()})
	s.logg.Warn(logCtx, msg)
}

func (s *service) logError(ctx context.Context, userID int64, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithUserID(ctx, userID), msg, err)
}
