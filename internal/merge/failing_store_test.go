package merge

import (
	"errors"
	"time"

	"github.com/medicarekit/quotehub/internal/models"
)

// failingStore errors on every operation, for soft-fail coverage.
type failingStore struct{}

var errStorage = errors.New("storage quota exceeded")

func (failingStore) GetBucket(key string) ([]models.Quote, error)            { return nil, errStorage }
func (failingStore) SaveBucket(key string, quotes []models.Quote) error      { return errStorage }
func (failingStore) DeleteBucket(key string) error                           { return errStorage }
func (failingStore) DeleteBucketsWithPrefix(prefix string) (int64, error)    { return 0, errStorage }
func (failingStore) PruneBucketsBefore(cutoff time.Time) (int64, error)      { return 0, errStorage }
func (failingStore) SaveFormData(id string, form models.QuoteFormData) error { return errStorage }
func (failingStore) GetFormData(id string) (*models.QuoteFormData, error)    { return nil, errStorage }
func (failingStore) DeleteFormData(id string) error                          { return errStorage }
func (failingStore) Close() error                                            { return nil }
