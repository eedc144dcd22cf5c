package dto

// CreateProductRequest payload for POST /catalog. Any owner field sent by the
// client is ignored; the token subject owns the product.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
}

// UpdateProductRequest payload for PATCH /catalog/:id.
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	Stock       *int     `json:"stock"`
	Category    *string  `json:"category"`
}
