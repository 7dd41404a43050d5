package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ainan-ahmed/ecommforall-backend/models"
)

const (
	paymentReconcileInterval = 15 * time.Minute
	staleOrderMaxAge         = 24 * time.Hour
	staleCancelReason        = "Order cancelled automatically due to payment timeout"
)

// OrderScheduler runs the two time-driven order jobs: moving paid orders
// out of PENDING, and cancelling orders stuck unpaid for too long.
type OrderScheduler struct {
	db     *gorm.DB
	ledger StockLedger
}

func NewOrderScheduler(db *gorm.DB, ledger StockLedger) *OrderScheduler {
	return &OrderScheduler{db: db, ledger: ledger}
}

// Start launches both jobs. They stop when ctx is cancelled.
func (s *OrderScheduler) Start(ctx context.Context) {
	go s.runPaymentReconciliation(ctx)
	go s.runStaleCancellation(ctx)
}

func (s *OrderScheduler) runPaymentReconciliation(ctx context.Context) {
	ticker := time.NewTicker(paymentReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ReconcilePayments(); err != nil {
				log.Printf("payment reconciliation failed: %v", err)
			} else if n > 0 {
				log.Printf("moved %d paid orders to PROCESSING", n)
			}
		}
	}
}

// runStaleCancellation fires once daily at midnight.
func (s *OrderScheduler) runStaleCancellation(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
		log.Printf("next stale-order sweep scheduled at %s", next.Format("2006-01-02 15:04:05"))

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}

		if n, err := s.CancelStaleOrders(time.Now().Add(-staleOrderMaxAge)); err != nil {
			log.Printf("stale-order sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("cancelled %d stale pending orders", n)
		}
	}
}

// ReconcilePayments moves orders with a completed payment but a lagging
// status from PENDING to PROCESSING. Re-running with nothing to do is a
// no-op. A failure on one order does not abort the rest of the batch.
func (s *OrderScheduler) ReconcilePayments() (int, error) {
	var ids []uuid.UUID
	err := s.db.Model(&models.Order{}).
		Where("status = ? AND payment_status = ?", models.OrderStatusPending, models.PaymentStatusCompleted).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, id := range ids {
		moved, err := s.reconcileOrder(id)
		if err != nil {
			log.Printf("failed to move order %s to PROCESSING: %v", id, err)
			continue
		}
		if moved {
			processed++
		}
	}
	return processed, nil
}

// reconcileOrder re-reads the order under lock and only moves it if it
// still matches the scan predicate. An order cancelled between the scan
// and this transaction stays cancelled.
func (s *OrderScheduler) reconcileOrder(id uuid.UUID) (bool, error) {
	moved := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusCompleted {
			return nil
		}

		now := time.Now()
		order.Status = models.OrderStatusProcessing
		order.ProcessedAt = &now
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		moved = true
		return nil
	})
	return moved, err
}

// CancelStaleOrders cancels PENDING orders whose payment is still PENDING
// and that were created before cutoff. The debited stock is credited
// back, the same reversal a user-initiated cancellation performs.
func (s *OrderScheduler) CancelStaleOrders(cutoff time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.db.Model(&models.Order{}).
		Where("status = ? AND payment_status = ? AND created_at < ?",
			models.OrderStatusPending, models.PaymentStatusPending, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		done, err := s.cancelStaleOrder(id, cutoff)
		if err != nil {
			log.Printf("failed to cancel stale order %s: %v", id, err)
			continue
		}
		if done {
			cancelled++
		}
	}
	return cancelled, nil
}

// cancelStaleOrder re-reads the order under lock and skips it unless it
// still matches the scan predicate. A user cancellation committed after
// the scan must not be credited a second time or have its reason
// overwritten.
func (s *OrderScheduler) cancelStaleOrder(id uuid.UUID, cutoff time.Time) (bool, error) {
	done := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if order.Status != models.OrderStatusPending ||
			order.PaymentStatus != models.PaymentStatusPending ||
			!order.CreatedAt.Before(cutoff) {
			return nil
		}

		now := time.Now()
		order.Status = models.OrderStatusCancelled
		order.CancellationReason = staleCancelReason
		order.CancelledAt = &now
		if err := s.ledger.Adjust(tx, stockLinesFromItems(order.Items), StockCredit); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}
