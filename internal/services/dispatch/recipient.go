package dispatch

import (
	"strconv"
	"time"

	"github.com/hopeana/dispatcher/internal/models"
)

// NewRecipient builds the per-recipient substitution data for one delivery.
func NewRecipient(s models.Schedule, item models.ContentItem, now time.Time) models.Recipient {
	firstName := s.UserFirstName
	if firstName == "" {
		firstName = "there"
	}
	author := item.Author
	if author == "" {
		author = "Unknown"
	}
	return models.Recipient{
		Email: s.UserEmail,
		Name:  s.UserFirstName,
		DynamicData: map[string]string{
			"firstName":    firstName,
			"quoteContent": item.Body,
			"quoteAuthor":  author,
			"currentYear":  strconv.Itoa(now.Year()),
		},
	}
}
