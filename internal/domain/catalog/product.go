package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("catalog: unit price must be zero or greater")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// AlertLevel classifies a product's stock position relative to its threshold.
type AlertLevel string

const (
	AlertOK         AlertLevel = "OK"
	AlertLow        AlertLevel = "LOW"
	AlertCritical   AlertLevel = "CRITICAL"
	AlertOutOfStock AlertLevel = "OUT_OF_STOCK"
)

// criticalStockLevel marks the point below which a product is flagged CRITICAL
// regardless of its configured threshold.
const criticalStockLevel = 5

type Product struct {
	ID                string
	Name              string
	Description       string
	UnitPriceCents    int64
	StockLevel        int
	LowStockThreshold int
	UpdatedAt         time.Time
}

func NewProduct(id, name string, unitPriceCents int64, stockLevel, lowStockThreshold int) (*Product, error) {
	if unitPriceCents < 0 {
		return nil, ErrInvalidPrice
	}
	if stockLevel < 0 || lowStockThreshold < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Product{
		ID:                id,
		Name:              name,
		UnitPriceCents:    unitPriceCents,
		StockLevel:        stockLevel,
		LowStockThreshold: lowStockThreshold,
		UpdatedAt:         time.Now().UTC(),
	}, nil
}

// Deduct is the in-memory half of the reservation contract: it checks and
// decrements in one step. Callers must hold whatever lock makes the
// check-and-decrement atomic for this product.
func (p *Product) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > p.StockLevel {
		return ErrInsufficientStock
	}
	p.StockLevel -= quantity
	p.touch()
	return nil
}

func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	p.StockLevel += quantity
	p.touch()
	return nil
}

func (p *Product) Alert() AlertLevel {
	switch {
	case p.StockLevel == 0:
		return AlertOutOfStock
	case p.StockLevel > p.LowStockThreshold:
		return AlertOK
	case p.StockLevel <= criticalStockLevel:
		return AlertCritical
	default:
		return AlertLow
	}
}

// NeedsAttention reports whether the product belongs in the alerts listing.
func (p *Product) NeedsAttention() bool {
	return p.Alert() != AlertOK
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
