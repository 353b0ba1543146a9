package entity

import "time"

// SKU identidad de un producto para un seller en un marketplace.
// La tripleta (SellerID, Marketplace, Code) es única.
type SKU struct {
	ID          string
	SellerID    string
	Marketplace Marketplace
	Code        string // código externo estable del marketplace
	Title       string
	CreatedAt   time.Time
}
