package models

// ContentItem is a piece of deliverable content.
type ContentItem struct {
	ID       string `json:"id"`
	Body     string `json:"body"`
	Author   string `json:"author,omitempty"`
	IsActive bool   `json:"is_active"`
}
