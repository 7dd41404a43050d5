package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ainan-ahmed/ecommforall-backend/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A second connection would see a fresh empty in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
	))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price string, stock int) models.Product {
	t.Helper()
	p := dec(price)
	product := models.Product{
		Name:        name,
		Description: name + " description",
		SKU:         "SKU-" + name,
		Price:       &p,
		Stock:       stock,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedVariantProduct(t *testing.T, db *gorm.DB, name string) models.Product {
	t.Helper()
	product := models.Product{
		Name:        name,
		Description: name + " description",
		SKU:         "SKU-" + name,
		HasVariants: true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func seedVariant(t *testing.T, db *gorm.DB, product models.Product, sku, price string, stock int) models.ProductVariant {
	t.Helper()
	variant := models.ProductVariant{
		ProductID:  product.ID,
		SKU:        sku,
		Price:      dec(price),
		Stock:      stock,
		Attributes: map[string]string{"size": "M"},
	}
	require.NoError(t, db.Create(&variant).Error)
	return variant
}

func productStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", id).Error)
	return product.Stock
}

func variantStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, "id = ?", id).Error)
	return variant.Stock
}
