package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Matias-Artesi/odoo-attain/internal/shared"
)

const resultKeyPrefix = "sales:import:result:"

// ResultStore keeps run results in Redis so operators can fetch the summary
// of a queued import after the fact.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultStore instantiates the store.
func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

// Save persists the result under its run ID.
func (s *ResultStore) Save(ctx context.Context, res *Result) error {
	if s == nil || s.client == nil {
		return errors.New("importer: result store not initialised")
	}
	if res == nil || res.RunID == "" {
		return errors.New("importer: result has no run id")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("importer: marshal result: %w", err)
	}
	return s.client.Set(ctx, resultKeyPrefix+res.RunID, data, s.ttl).Err()
}

// Get loads a stored result; shared.ErrNotFound when the run is unknown or
// expired.
func (s *ResultStore) Get(ctx context.Context, runID string) (*Result, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("importer: result store not initialised")
	}
	data, err := s.client.Get(ctx, resultKeyPrefix+runID).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("importer: unmarshal result: %w", err)
	}
	return &res, nil
}
