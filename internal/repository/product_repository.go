package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/storefront/internal/domain"
)

// ProductRepository encapsulates catalog persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Product, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type productRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository instantiates repository.
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool}
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	const query = `
        INSERT INTO products (user_id, name, price, description, stock, category)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		product.UserID,
		product.Name,
		product.Price,
		product.Description,
		product.Stock,
		product.Category,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	const query = `
        UPDATE products SET name=$1, price=$2, description=$3, stock=$4, category=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	if !validUUID(product.ID) {
		return pgx.ErrNoRows
	}
	return r.pool.QueryRow(ctx, query,
		product.Name,
		product.Price,
		product.Description,
		product.Stock,
		product.Category,
		product.ID,
	).Scan(&product.UpdatedAt)
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	const query = `
        SELECT id, user_id, name, price, description, stock, category, created_at, updated_at
        FROM products WHERE id=$1`
	if !validUUID(id) {
		return nil, pgx.ErrNoRows
	}
	var product domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, query, id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListByUser(ctx context.Context, userID string) ([]domain.Product, error) {
	const query = `
        SELECT id, user_id, name, price, description, stock, category, created_at, updated_at
        FROM products WHERE user_id=$1
        ORDER BY created_at DESC`
	if !validUUID(userID) {
		return []domain.Product{}, nil
	}
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var product domain.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *productRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	if !validUUID(userID) {
		return 0, nil
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanProduct(row pgx.Row, product *domain.Product) error {
	return row.Scan(
		&product.ID,
		&product.UserID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Stock,
		&product.Category,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}
