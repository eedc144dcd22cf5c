package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront/internal/api/dto"
	"github.com/spec-kit/storefront/internal/service"
)

// CatalogHandler exposes product endpoints.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Create handles POST /catalog.
func (h *CatalogHandler) Create(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	product, err := h.catalog.Create(c.UserContext(), principal.Claims.SubjectID, service.CreateProductInput{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Stock:       req.Stock,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.OK(product))
}

// ListByUser handles GET /catalog/user/:userId.
func (h *CatalogHandler) ListByUser(c *fiber.Ctx) error {
	products, err := h.catalog.ListByUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(products))
}

// Get handles GET /catalog/:id.
func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	product, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(product))
}

// Update handles PATCH /catalog/:id.
func (h *CatalogHandler) Update(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	product, err := h.catalog.Update(c.UserContext(), c.Params("id"), principal.Claims.SubjectID, service.UpdateProductInput{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Stock:       req.Stock,
		Category:    req.Category,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK(product))
}

// Delete handles DELETE /catalog/:id.
func (h *CatalogHandler) Delete(c *fiber.Ctx) error {
	principal, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.catalog.Delete(c.UserContext(), c.Params("id"), principal.Claims.SubjectID); err != nil {
		return err
	}
	return c.JSON(dto.OK(true))
}
