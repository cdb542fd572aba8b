package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

func CreateProduct(ctx context.Context, db *sql.DB, sku, name, description string) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, name, description, created_at, updated_at, version)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		RETURNING id, sku, name, description, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, sku, name, description).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func CreateVariant(ctx context.Context, db *sql.DB, productID int64, name string, price decimal.Decimal, stock int) (*models.Variant, error) {
	variant := &models.Variant{}

	query := `
		INSERT INTO variants (product_id, name, price, stock_quantity, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING id, product_id, name, price, stock_quantity, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, productID, name, price, stock).Scan(
		&variant.ID,
		&variant.ProductID,
		&variant.Name,
		&variant.Price,
		&variant.StockQuantity,
		&variant.CreatedAt,
		&variant.UpdatedAt,
		&variant.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create variant: %w", err)
	}

	return variant, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, description, created_at, updated_at, version
		FROM products
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, product_id, name, price, stock_quantity, created_at, updated_at, version
		FROM variants
		WHERE product_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v models.Variant
		err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.Name,
			&v.Price,
			&v.StockQuantity,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		product.Variants = append(product.Variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return product, nil
}

func FindVariant(ctx context.Context, db *sql.DB, id int64) (*models.Variant, error) {
	variant := &models.Variant{}

	query := `
		SELECT id, product_id, name, price, stock_quantity, created_at, updated_at, version
		FROM variants
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&variant.ID,
		&variant.ProductID,
		&variant.Name,
		&variant.Price,
		&variant.StockQuantity,
		&variant.CreatedAt,
		&variant.UpdatedAt,
		&variant.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVariantNotFound
		}
		return nil, fmt.Errorf("find variant: %w", err)
	}

	return variant, nil
}

// variantSnapshot is the catalog state read under lock at order time.
type variantSnapshot struct {
	VariantID   int64
	ProductName string
	VariantName string
	Price       decimal.Decimal
	Stock       int
}

// lockVariant reads price, stock and display names with a row lock held,
// so a concurrent checkout cannot oversell the same variant.
func lockVariant(ctx context.Context, tx *sql.Tx, variantID int64) (*variantSnapshot, error) {
	snap := &variantSnapshot{}

	query := `
		SELECT v.id, p.name, v.name, v.price, v.stock_quantity
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		FOR UPDATE OF v`

	err := tx.QueryRowContext(ctx, query, variantID).Scan(
		&snap.VariantID,
		&snap.ProductName,
		&snap.VariantName,
		&snap.Price,
		&snap.Stock,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrVariantNotFound
		}
		return nil, fmt.Errorf("lock variant %d: %w", variantID, err)
	}

	return snap, nil
}

func decrementStock(ctx context.Context, tx *sql.Tx, variantID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE variants
		 SET stock_quantity = stock_quantity - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		quantity, variantID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func incrementStock(ctx context.Context, tx *sql.Tx, variantID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE variants
		 SET stock_quantity = stock_quantity + $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, variantID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrVariantNotFound
	}

	return nil
}

// IncrementStock restores stock outside a larger transaction, e.g. for
// admin corrections.
func IncrementStock(ctx context.Context, db *sql.DB, variantID int64, delta int) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return incrementStock(ctx, tx, variantID, delta)
	})
}

func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, sku, name, description, created_at, updated_at, version
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.CreatedAt,
			&product.UpdatedAt,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
