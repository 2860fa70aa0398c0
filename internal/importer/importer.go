package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salescout/discovery/internal/discovery"
)

// DataSource marks products created by the discovery pipeline.
const DataSource = "auto_discovery"

// Outcome summarizes one import pass.
type Outcome struct {
	ImportedIDs []uuid.UUID
	Imported    int
	Duplicates  int
	Failed      int
}

// Importer writes ranked listings into the product store.
type Importer struct {
	products discovery.ProductStore
	clock    discovery.Clock
	logger   *zap.Logger
}

// New builds an Importer. A nil clock falls back to the system clock.
func New(products discovery.ProductStore, clock discovery.Clock, logger *zap.Logger) *Importer {
	if clock == nil {
		clock = discovery.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{products: products, clock: clock, logger: logger}
}

// Import persists each listing unless a product with the same normalized URL
// already exists in the project. Per-listing failures are counted and logged,
// never fatal; only a canceled context stops the pass.
func (im *Importer) Import(ctx context.Context, projectID, userID uuid.UUID, listings []discovery.ScrapedListing) (Outcome, error) {
	var out Outcome
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("import canceled: %w", err)
		}

		normalized := NormalizeURL(l.URL)
		_, err := im.products.FindByProjectURL(ctx, projectID, normalized)
		switch {
		case err == nil:
			out.Duplicates++
			im.logger.Debug("skipping duplicate product",
				zap.String("url", normalized),
				zap.String("project_id", projectID.String()),
			)
			continue
		case !errors.Is(err, discovery.ErrNotFound):
			out.Failed++
			im.logger.Warn("dedup lookup failed", zap.String("url", normalized), zap.Error(err))
			continue
		}

		id, err := im.products.Create(ctx, discovery.Product{
			ProjectID:    projectID,
			Name:         l.Name,
			Brand:        l.Brand,
			Platform:     l.Platform,
			URL:          normalized,
			CurrentPrice: l.Price,
			Currency:     "VND",
			DataSource:   DataSource,
			CreatedBy:    userID,
			CreatedAt:    im.clock.Now(),
		})
		switch {
		case err == nil:
			out.Imported++
			out.ImportedIDs = append(out.ImportedIDs, id)
		case errors.Is(err, discovery.ErrDuplicate):
			out.Duplicates++
		case errors.Is(err, discovery.ErrPermission):
			out.Failed++
			im.logger.Warn("create product denied", zap.String("url", normalized), zap.Error(err))
		default:
			out.Failed++
			im.logger.Warn("create product failed", zap.String("url", normalized), zap.Error(err))
		}
	}
	return out, nil
}
