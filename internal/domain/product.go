package domain

import "time"

// Product is a catalog entry owned by exactly one user.
type Product struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OwnedBy reports whether subjectID owns the product.
func (p *Product) OwnedBy(subjectID string) bool {
	return p.UserID != "" && p.UserID == subjectID
}
