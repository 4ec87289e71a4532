package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/internal/cart"
	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/outbox/payloads"
	"github.com/persiashop/storefront-backend/pkg/pagination"
	"github.com/persiashop/storefront-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// optionLabeler resolves display names for selected options at checkout.
type optionLabeler interface {
	OptionLabels(ctx context.Context, selected types.SelectedOptions) ([]types.LabeledOption, error)
}

type cartInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// Service places and reads customer orders.
type Service interface {
	CreateOrder(ctx context.Context, userID int64, input CreateOrderInput) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actorID, orderID int64, status string) (*OrderDTO, error)
}

// ServiceParams bundles the order service dependencies. CartCache and Logger are optional.
type ServiceParams struct {
	Repo      Repository
	Carts     *cart.Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Options   optionLabeler
	CartCache cartInvalidator
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	carts     *cart.Repository
	tx        txRunner
	outbox    outboxPublisher
	options   optionLabeler
	cartCache cartInvalidator
	logg      *logger.Logger
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Options == nil {
		return nil, fmt.Errorf("option labeler required")
	}
	return &service{
		repo:      params.Repo,
		carts:     params.Carts,
		tx:        params.Tx,
		outbox:    params.Outbox,
		options:   params.Options,
		cartCache: params.CartCache,
		logg:      params.Logger,
	}, nil
}

// CreateOrder snapshots the user's persisted cart into an order, clears the
// cart and queues order_created, all in one transaction.
func (s *service) CreateOrder(ctx context.Context, userID int64, input CreateOrderInput) (*OrderDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if strings.TrimSpace(input.ShippingAddress.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	labels, err := s.optionLabels(ctx, userID)
	if err != nil {
		return nil, err
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		current, err := carts.GetCart(ctx, userID)
		if err != nil {
			return err
		}
		if current == nil || len(current.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		order := &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			ShippingAddress: input.ShippingAddress,
			Notes:           trimmedNotes(input.Notes),
			Items:           make([]models.OrderItem, 0, len(current.Items)),
		}
		for _, item := range current.Items {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			order.TotalAmount += int64(item.Quantity) * item.UnitPrice
			order.Items = append(order.Items, models.OrderItem{
				ProductID:       item.ProductID,
				ProductName:     name,
				Quantity:        item.Quantity,
				UnitPrice:       item.UnitPrice,
				SelectedOptions: labelsFor(item.SelectedOptions, labels),
			})
		}

		if _, err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := carts.ClearCart(ctx, userID); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(order.ID, 10),
			Actor:         &outbox.ActorRef{UserID: userID},
			OccurredAt:    order.CreatedAt,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      userID,
				Status:      order.Status,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(order.Items),
				CreatedAt:   order.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}
		created = order
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if s.cartCache != nil {
		if err := s.cartCache.Invalidate(ctx, userID); err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart.cache.invalidate_failed")
		}
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, userID), map[string]any{
			"order_id":     created.ID,
			"total_amount": created.TotalAmount,
			"item_count":   len(created.Items),
		})
		s.logg.Info(logCtx, "order.created")
	}

	dto := fromModel(created)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, userID int64, params pagination.Params) (*OrderList, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	parsed, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var cursor *ListCursor
	if parsed != nil {
		cursor = &ListCursor{CreatedAt: parsed.CreatedAt, ID: parsed.ID}
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListUserOrders(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows))}
	rows, list.NextCursor = pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	for i := range rows {
		list.Orders = append(list.Orders, fromModel(&rows[i]))
	}
	return list, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.repo.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := fromModel(order)
	return &dto, nil
}

// UpdateStatus moves an order to status on behalf of staff member actorID and
// queues order_status_changed. Delivered and cancelled orders are final;
// setting the current status again is a no-op.
func (s *service) UpdateStatus(ctx context.Context, actorID, orderID int64, status string) (*OrderDTO, error) {
	if actorID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	to, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}

	var (
		updated *models.Order
		from    enums.OrderStatus
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		from = order.Status
		if from == to {
			updated = order
			return nil
		}
		if from.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is already %s", from))
		}

		now := time.Now().UTC()
		ok, err := repo.UpdateStatus(ctx, orderID, from, to, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}
		order.Status, order.UpdatedAt = to, now

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   strconv.FormatInt(order.ID, 10),
			Actor:         &outbox.ActorRef{UserID: actorID},
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				From:        from,
				To:          to,
				TotalAmount: order.TotalAmount,
				ChangedBy:   actorID,
				ChangedAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}
		updated = order
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	if s.logg != nil && from != to {
		logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, actorID), map[string]any{
			"order_id": updated.ID,
			"from":     string(from),
			"to":       string(to),
		})
		s.logg.Info(logCtx, "order.status_changed")
	}

	dto := fromModel(updated)
	return &dto, nil
}

// optionLabels resolves names for every option in the user's cart before the
// checkout transaction starts, keeping catalog reads out of it.
func (s *service) optionLabels(ctx context.Context, userID int64) (map[int64]types.LabeledOption, error) {
	current, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	var all types.SelectedOptions
	for _, item := range current.Items {
		all = append(all, item.SelectedOptions...)
	}
	if len(all) == 0 {
		return nil, nil
	}
	resolved, err := s.options.OptionLabels(ctx, all)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]types.LabeledOption, len(resolved))
	for _, label := range resolved {
		out[label.OptionID] = label
	}
	return out, nil
}

func labelsFor(selected types.SelectedOptions, known map[int64]types.LabeledOption) []types.LabeledOption {
	out := make([]types.LabeledOption, 0, len(selected))
	for _, opt := range selected {
		label, ok := known[opt.OptionID]
		if !ok {
			label = types.LabeledOption{OptionGroupID: opt.OptionGroupID, OptionID: opt.OptionID}
		}
		out = append(out, label)
	}
	return out
}

func trimmedNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	value := strings.TrimSpace(*notes)
	if value == "" {
		return nil
	}
	return &value
}

