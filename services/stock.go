package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ainan-ahmed/ecommforall-backend/apperrors"
	"github.com/ainan-ahmed/ecommforall-backend/models"
)

// StockDirection selects whether an adjustment debits stock (order
// creation) or credits it back (cancellation).
type StockDirection int

const (
	StockDebit StockDirection = iota
	StockCredit
)

// StockLine is one (product, variant, quantity) request against the ledger.
// When VariantID is set the variant's stock is checked and adjusted,
// otherwise the product's own stock is.
type StockLine struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// StockLedger is the only component allowed to mutate stock fields.
// Validate and Adjust take the caller's transaction handle so that a
// single createOrder runs both inside one transaction; the transaction
// boundary, not application locking, is the correctness mechanism.
type StockLedger interface {
	Validate(tx *gorm.DB, lines []StockLine) error
	Adjust(tx *gorm.DB, lines []StockLine, direction StockDirection) error
}

type stockLedger struct{}

func NewStockLedger() StockLedger { return &stockLedger{} }

// forUpdate adds a SELECT ... FOR UPDATE row lock. SQLite (used in tests)
// has no row locks and serializes writers itself, so the clause is
// postgres-only.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Validate loads every line's variant or product under a row lock and
// requires stock >= quantity. All violations are collected into one
// InsufficientStockError rather than failing on the first.
func (l *stockLedger) Validate(tx *gorm.DB, lines []StockLine) error {
	var shortages []apperrors.StockShortage

	for _, line := range lines {
		if line.VariantID != nil {
			var variant models.ProductVariant
			if err := forUpdate(tx).First(&variant, "id = ? AND product_id = ?", *line.VariantID, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product variant %s", apperrors.ErrNotFound, *line.VariantID)
				}
				return err
			}
			if variant.Stock < line.Quantity {
				name := variant.SKU
				if name == "" {
					name = variant.ID.String()
				}
				shortages = append(shortages, apperrors.StockShortage{
					ProductID: line.ProductID,
					VariantID: line.VariantID,
					Name:      name,
					Requested: line.Quantity,
					Available: variant.Stock,
				})
			}
			continue
		}

		var product models.Product
		if err := forUpdate(tx).First(&product, "id = ?", line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %s", apperrors.ErrNotFound, line.ProductID)
			}
			return err
		}
		if product.Stock < line.Quantity {
			shortages = append(shortages, apperrors.StockShortage{
				ProductID: line.ProductID,
				Name:      product.Name,
				Requested: line.Quantity,
				Available: product.Stock,
			})
		}
	}

	if len(shortages) > 0 {
		return &apperrors.InsufficientStockError{Lines: shortages}
	}
	return nil
}

// Adjust moves stock per line: DEBIT subtracts, CREDIT adds. A DEBIT
// assumes Validate already succeeded inside the same transaction; a
// CREDIT is a pure reversal and never re-checks.
func (l *stockLedger) Adjust(tx *gorm.DB, lines []StockLine, direction StockDirection) error {
	for _, line := range lines {
		change := line.Quantity
		if direction == StockDebit {
			change = -line.Quantity
		}

		if line.VariantID != nil {
			var variant models.ProductVariant
			if err := forUpdate(tx).First(&variant, "id = ? AND product_id = ?", *line.VariantID, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product variant %s", apperrors.ErrNotFound, *line.VariantID)
				}
				return err
			}
			variant.Stock += change
			if err := tx.Save(&variant).Error; err != nil {
				return fmt.Errorf("failed to adjust stock for variant %s: %w", variant.ID, err)
			}
			continue
		}

		var product models.Product
		if err := forUpdate(tx).First(&product, "id = ?", line.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %s", apperrors.ErrNotFound, line.ProductID)
			}
			return err
		}
		product.Stock += change
		if err := tx.Save(&product).Error; err != nil {
			return fmt.Errorf("failed to adjust stock for product %s: %w", product.ID, err)
		}
	}
	return nil
}
