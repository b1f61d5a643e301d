package entity

import "time"

// Receipt represents a receipt for data transfer between layers.
// Date is a calendar date in YYYY-MM-DD form.
type Receipt struct {
	ID          int64     `json:"id"`
	Vendor      string    `json:"vendor"`
	Amount      float64   `json:"amount"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	ClientID    *int64    `json:"client_id"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
	Tags        []string  `json:"tags"`
}

// ReceiptFilter narrows receipt listings. Zero values mean "no constraint".
type ReceiptFilter struct {
	From       string
	To         string
	CategoryID int64
	ClientID   int64
	Limit      int
}
