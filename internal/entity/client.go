package entity

import "time"

// Client represents a client that receipts can be billed against.
type Client struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ProjectCode string    `json:"project_code,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FindClientByID returns the client with the given id, or nil.
func FindClientByID(clients []Client, id int64) *Client {
	for i := range clients {
		if clients[i].ID == id {
			return &clients[i]
		}
	}
	return nil
}
