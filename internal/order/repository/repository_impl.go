package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Items.Modifiers").
		Where("id = ?", id).First(&order).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repo) FindOrderItemByID(ctx context.Context, itemID snowflake.ID) (*domain.OrderItem, error) {
	var item domain.OrderItem
	err := r.db.WithContext(ctx).Preload("Modifiers").Where("id = ?", itemID).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// LockForUpdate mirrors table.Repository.LockForUpdate: must run inside tx.
func (r *repo) LockForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := tx.WithContext(ctx).Raw(
		`SELECT id, session_id, customer_id, table_code, workflow_status, payment_status,
		        subtotal, tax_amount, tip_amount, total_amount,
		        waiter_id, chef_id, delivery_waiter_id,
		        accepted_at, waiter_accepted_at, chef_accepted_at, ready_at, delivered_at, paid_at,
		        payment_method, payment_reference, payment_meta, notes, created_at, updated_at
		 FROM orders WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	items, err := r.loadItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (r *repo) loadItems(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		var mods []domain.OrderItemModifier
		if err := tx.WithContext(ctx).Where("order_item_id = ?", items[i].ID).Find(&mods).Error; err != nil {
			return nil, err
		}
		items[i].Modifiers = mods
	}
	return items, nil
}

// ListActiveByTableAndWaiter finds every non-terminal order at tableCode
// currently assigned to waiterID (§4.5's transfer-with-orders step).
func (r *repo) ListActiveByTableAndWaiter(ctx context.Context, tx *gorm.DB, tableCode string, waiterID snowflake.ID) ([]domain.Order, error) {
	var orders []domain.Order
	err := tx.WithContext(ctx).
		Preload("Items").Preload("Items.Modifiers").
		Where("table_code = ? AND waiter_id = ? AND workflow_status IN ?", tableCode, waiterID,
			[]domain.WorkflowStatus{domain.StatusNew, domain.StatusQueued, domain.StatusPreparing, domain.StatusReady}).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) Update(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repo) ListBySession(ctx context.Context, sessionID snowflake.ID) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Items.Modifiers").
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateTx(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	return tx.WithContext(ctx).Save(order).Error
}

func (r *repo) ListBySessionTx(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) ([]domain.Order, error) {
	var orders []domain.Order
	err := tx.WithContext(ctx).
		Preload("Items").Preload("Items.Modifiers").
		Where("session_id = ?", sessionID).
		Order("created_at asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) AppendHistory(ctx context.Context, tx *gorm.DB, entry *domain.OrderHistoryEntry) error {
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *repo) NextHistorySequence(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (int, error) {
	var max int
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(sequence), 0) FROM order_history_entries WHERE order_id = ?`,
		orderID,
	).Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
