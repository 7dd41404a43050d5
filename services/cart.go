package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ainan-ahmed/ecommforall-backend/apperrors"
	"github.com/ainan-ahmed/ecommforall-backend/models"
)

type AddItemInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// CartService manages the single active cart per user. Unit prices are
// locked when an item is first added and never re-derived from the catalog.
type CartService interface {
	GetCart(userID uuid.UUID) (models.Cart, error)
	AddItem(userID uuid.UUID, in AddItemInput) (models.CartItem, error)
	UpdateItem(userID, cartItemID uuid.UUID, quantity int) (models.CartItem, error)
	RemoveItem(userID, cartItemID uuid.UUID) error
	ClearCart(userID uuid.UUID) error
	Totals(userID uuid.UUID) (decimal.Decimal, error)
	ItemCount(userID uuid.UUID) (int, error)
}

type cartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) CartService {
	return &cartService{db: db}
}

// GetCart returns the user's cart with items, creating the cart row on
// first use.
func (s *cartService) GetCart(userID uuid.UUID) (models.Cart, error) {
	cart, err := s.getOrCreateCart(s.db, userID)
	if err != nil {
		return models.Cart{}, err
	}
	if err := s.db.Preload("Items").First(&cart, "id = ?", cart.ID).Error; err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

func (s *cartService) getOrCreateCart(tx *gorm.DB, userID uuid.UUID) (models.Cart, error) {
	var cart models.Cart
	err := tx.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{UserID: userID}
		if err := tx.Create(&cart).Error; err != nil {
			return models.Cart{}, err
		}
		log.Printf("created cart %s for user %s", cart.ID, userID)
		return cart, nil
	}
	return cart, err
}

// AddItem adds a product (or variant) to the cart. If a matching
// (product, variant) row already exists its quantity is increased and the
// locked price is kept; otherwise the price is captured from the variant,
// or from the product's own price when no variant is given.
func (s *cartService) AddItem(userID uuid.UUID, in AddItemInput) (models.CartItem, error) {
	if in.Quantity <= 0 {
		return models.CartItem{}, fmt.Errorf("%w: quantity must be greater than zero", apperrors.ErrInvalidArgument)
	}

	item, err := s.addItem(userID, in)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a concurrent first-add: the unique index rejected the
		// insert, so the row exists now and the retry increments it.
		return s.addItem(userID, in)
	}
	return item, err
}

func (s *cartService) addItem(userID uuid.UUID, in AddItemInput) (models.CartItem, error) {
	variantID := uuid.Nil
	if in.VariantID != nil {
		variantID = *in.VariantID
	}

	var result models.CartItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cart, err := s.getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}

		var product models.Product
		if err := tx.First(&product, "id = ?", in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: product %s", apperrors.ErrNotFound, in.ProductID)
			}
			return err
		}

		// Same-user double-add must serialize on the existing row.
		var existing models.CartItem
		err = forUpdate(tx).
			Where("cart_id = ? AND product_id = ? AND variant_id = ?", cart.ID, in.ProductID, variantID).
			First(&existing).Error
		if err == nil {
			existing.Quantity += in.Quantity
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		item := models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			VariantID: variantID,
			Quantity:  in.Quantity,
		}
		if in.VariantID != nil {
			var variant models.ProductVariant
			if err := tx.First(&variant, "id = ? AND product_id = ?", *in.VariantID, product.ID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product variant %s", apperrors.ErrNotFound, *in.VariantID)
				}
				return err
			}
			item.UnitPrice = variant.Price
		} else {
			if product.Price == nil {
				return fmt.Errorf("%w: product has no price and no variant was selected", apperrors.ErrInvalidState)
			}
			item.UnitPrice = *product.Price
		}

		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return models.CartItem{}, err
	}
	return result, nil
}

// UpdateItem sets a new quantity on an existing cart item. The locked
// price is never touched.
func (s *cartService) UpdateItem(userID, cartItemID uuid.UUID, quantity int) (models.CartItem, error) {
	if quantity <= 0 {
		return models.CartItem{}, fmt.Errorf("%w: quantity must be greater than zero", apperrors.ErrInvalidArgument)
	}

	var item models.CartItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&item, "id = ?", cartItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: cart item %s", apperrors.ErrNotFound, cartItemID)
			}
			return err
		}
		if err := s.checkOwnership(tx, item.CartID, userID); err != nil {
			return err
		}
		item.Quantity = quantity
		return tx.Save(&item).Error
	})
	if err != nil {
		return models.CartItem{}, err
	}
	return item, nil
}

// RemoveItem deletes a cart item. Removing an item that is already gone
// is a no-op.
func (s *cartService) RemoveItem(userID, cartItemID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.First(&item, "id = ?", cartItemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.checkOwnership(tx, item.CartID, userID); err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// ClearCart deletes all rows for the user's cart in one statement to
// avoid partial-clear races. Clearing an empty or missing cart is a no-op.
func (s *cartService) ClearCart(userID uuid.UUID) error {
	var cart models.Cart
	err := s.db.Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
}

// Totals sums unitPrice * quantity over the cart. An empty or missing
// cart totals to zero.
func (s *cartService) Totals(userID uuid.UUID) (decimal.Decimal, error) {
	items, err := s.cartItems(userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice())
	}
	return total, nil
}

func (s *cartService) ItemCount(userID uuid.UUID) (int, error) {
	items, err := s.cartItems(userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count, nil
}

func (s *cartService) cartItems(userID uuid.UUID) ([]models.CartItem, error) {
	var cart models.Cart
	err := s.db.Preload("Items").Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

func (s *cartService) checkOwnership(tx *gorm.DB, cartID, userID uuid.UUID) error {
	var cart models.Cart
	if err := tx.First(&cart, "id = ?", cartID).Error; err != nil {
		return err
	}
	if cart.UserID != userID {
		return fmt.Errorf("%w: cart item does not belong to user", apperrors.ErrPermissionDenied)
	}
	return nil
}
