package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/domain"
	"github.com/spec-kit/storefront/internal/repository"
	apperrors "github.com/spec-kit/storefront/pkg/util/errorutil"
)

// CreateProductInput holds the fields of a new product.
type CreateProductInput struct {
	Name        string
	Price       float64
	Description string
	Stock       int
	Category    string
}

// UpdateProductInput carries optional product updates; nil fields are untouched.
type UpdateProductInput struct {
	Name        *string
	Price       *float64
	Description *string
	Stock       *int
	Category    *string
}

// CatalogService owns product workflows. Every mutation runs the ownership
// guard first.
type CatalogService struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewCatalogService creates the service.
func NewCatalogService(products repository.ProductRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{products: products, logger: logger}
}

// Create stores a product owned by ownerID, the validated token subject.
func (s *CatalogService) Create(ctx context.Context, ownerID string, in CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		UserID:      ownerID,
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Description: in.Description,
		Stock:       in.Stock,
		Category:    in.Category,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListByUser returns the products owned by userID, newest first.
func (s *CatalogService) ListByUser(ctx context.Context, userID string) ([]domain.Product, error) {
	return s.products.ListByUser(ctx, userID)
}

// Get returns a product by id.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrResourceNotFound
	}
	return product, err
}

// CheckOwnership loads the product and fails unless subjectID owns it.
func (s *CatalogService) CheckOwnership(ctx context.Context, productID, subjectID string) (*domain.Product, error) {
	product, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.OwnedBy(subjectID) {
		return nil, apperrors.ErrNotAuthorized
	}
	return product, nil
}

// Update applies in to the product after the ownership check.
func (s *CatalogService) Update(ctx context.Context, id, subjectID string, in UpdateProductInput) (*domain.Product, error) {
	product, err := s.CheckOwnership(ctx, id, subjectID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		product.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.Description != nil {
		product.Description = *in.Description
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	if in.Category != nil {
		product.Category = *in.Category
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrResourceNotFound
		}
		return nil, err
	}
	return product, nil
}

// Delete removes the product after the ownership check.
func (s *CatalogService) Delete(ctx context.Context, id, subjectID string) error {
	if _, err := s.CheckOwnership(ctx, id, subjectID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrResourceNotFound
		}
		return err
	}
	return nil
}

// DeleteAllForUser removes every product of a deleted user.
func (s *CatalogService) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	removed, err := s.products.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("removed products of deleted user", zap.String("user_id", userID), zap.Int64("count", removed))
	return removed, nil
}

func validateProduct(p *domain.Product) error {
	details := map[string]any{}
	if p.Name == "" {
		details["name"] = "name is required"
	}
	if p.Price < 0 {
		details["price"] = "price must not be negative"
	}
	if p.Stock < 0 {
		details["stock"] = "stock must not be negative"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid product", details)
	}
	return nil
}
