package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/asperus/agenda/internal/stores"
	"github.com/asperus/agenda/pkg/logging"
)

// LoadStoreSeed reads a JSON array of stores. An empty path yields no stores.
func LoadStoreSeed(path string) ([]stores.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read store seed: %w", err)
	}
	var list []stores.Store
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("bootstrap: parse store seed: %w", err)
	}
	for i := range list {
		if err := list[i].Validate(); err != nil {
			return nil, fmt.Errorf("bootstrap: store seed entry %d: %w", i, err)
		}
	}
	return list, nil
}

// SeedStores upserts every store in list.
func SeedStores(ctx context.Context, repo stores.Repository, list []stores.Store, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	for i := range list {
		store := list[i]
		if err := repo.Upsert(ctx, &store); err != nil {
			return fmt.Errorf("bootstrap: seed store %s: %w", store.ID, err)
		}
	}
	if len(list) > 0 {
		logger.Info("store directory seeded", "count", len(list))
	}
	return nil
}
