package entity

import "strings"

// Marketplace variante de marketplace de un seller.
type Marketplace string

const (
	MarketplaceWB   Marketplace = "wb"
	MarketplaceOzon Marketplace = "ozon"
)

// ParseMarketplace normaliza el valor almacenado ("WB", "wb", " Ozon ").
func ParseMarketplace(s string) Marketplace {
	return Marketplace(strings.ToLower(strings.TrimSpace(s)))
}

// Valid indica si la variante es una de las soportadas.
func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceWB, MarketplaceOzon:
		return true
	}
	return false
}

func (m Marketplace) String() string { return string(m) }
