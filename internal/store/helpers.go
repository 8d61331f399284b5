package store

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/medicarekit/quotehub/internal/models"
)

// encodeQuotes serializes a quote bucket for storage.
func encodeQuotes(quotes []models.Quote) (string, error) {
	data, err := json.Marshal(quotes)
	if err != nil {
		return "", fmt.Errorf("failed to marshal quotes: %w", err)
	}
	return string(data), nil
}

// decodeQuotes deserializes a stored quote bucket.
func decodeQuotes(quotesJSON string) ([]models.Quote, error) {
	var quotes []models.Quote
	if err := json.Unmarshal([]byte(quotesJSON), &quotes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quotes: %w", err)
	}
	return quotes, nil
}
