package domain

import (
	"math"
	"time"
)

// Cart is the per-user document persisted as a single JSON value.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// View is the response projection: totals derived from the stored
// document on every read, never persisted.
type View struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewCart returns an empty cart for userID. Used both to initialize the
// document on first add and to synthesize the response for a user with
// no stored cart.
func NewCart(userID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges item into the cart. At most one entry exists per
// productId: an existing entry has its quantity incremented, a new one
// is appended.
func (c *Cart) AddItem(item CartItem) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			c.Touch()
			return
		}
	}
	c.Items = append(c.Items, item)
	c.Touch()
}

// SetQuantity sets the absolute quantity for productID. Quantity 0
// removes the item; a stored quantity is never below 1. Returns false
// when the item is not in the cart.
func (c *Cart) SetQuantity(productID string, quantity int) bool {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		if quantity == 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = quantity
		}
		c.Touch()
		return true
	}
	return false
}

// RemoveItem deletes the entry for productID. Returns false when the
// item is not in the cart.
func (c *Cart) RemoveItem(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.Touch()
			return true
		}
	}
	return false
}

// Touch refreshes UpdatedAt. CreatedAt is fixed at first creation.
func (c *Cart) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Project computes the derived view: total = round(Σ price·quantity, 2),
// itemCount = Σ quantity.
func (c *Cart) Project() View {
	var total float64
	var count int
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
		count += item.Quantity
	}

	items := c.Items
	if items == nil {
		items = []CartItem{}
	}

	return View{
		UserID:    c.UserID,
		Items:     items,
		Total:     math.Round(total*100) / 100,
		ItemCount: count,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
