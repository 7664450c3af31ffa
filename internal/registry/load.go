package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/sandforge/internal/particle"
)

// RegisterAll registers every description in order. Failures do not stop
// the batch; they are joined into the returned error. The returned slice
// holds the ids of the successful registrations.
func (r *Registry) RegisterAll(ctx context.Context, descs []particle.Description) ([]uint32, error) {
	logger := r.loggerFor(ctx)
	logger.Debug("Registering particle batch.", "count", len(descs))

	var (
		ids  []uint32
		errs []error
	)
	for k, d := range descs {
		id, err := r.Register(ctx, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("particle %d: %w", k, err))
			continue
		}
		ids = append(ids, id)
	}
	if len(errs) > 0 {
		logger.Warn("Some particles failed to register.", "failed", len(errs), "registered", len(ids))
	}
	return ids, errors.Join(errs...)
}
