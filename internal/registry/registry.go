package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/specialistvlad/sandforge/internal/action"
	"github.com/specialistvlad/sandforge/internal/ctxlog"
	"github.com/specialistvlad/sandforge/internal/particle"
)

// Entry is one registered particle.
type Entry struct {
	Name        string               `json:"name"`
	ColorID     uint32               `json:"color_id"`
	Color       particle.Color       `json:"color"`
	Description particle.Description `json:"description"`
	Source      string               `json:"source"`
	Notes       []string             `json:"notes,omitempty"`
	Revision    int                  `json:"revision"`
	Registered  time.Time            `json:"registered"`
	Updated     time.Time            `json:"updated"`
	Action      action.Func          `json:"-"`
}

// Registry holds every registered particle for a single application
// instance. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	offset  uint32
	builder Builder
	logger  *slog.Logger

	byName  map[string]uint32
	entries []Entry
	table   *Table
	now     func() time.Time
}

// New creates an empty registry handing out ids from offset upwards.
func New(offset uint32, builder Builder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		offset:  offset,
		builder: builder,
		logger:  logger,
		byName:  make(map[string]uint32),
		table:   &Table{offset: offset},
		now:     time.Now,
	}
}

// Offset returns the first id the registry hands out.
func (r *Registry) Offset() uint32 { return r.offset }

// Register builds d and stores it, returning its color id. Registering a
// known name replaces only its action; the first color and description stay.
// A build failure is returned as a *particle.RegistrationError and leaves the
// registry unchanged.
func (r *Registry) Register(ctx context.Context, d particle.Description) (uint32, error) {
	d = d.Normalize()
	if err := d.Check(); err != nil {
		return 0, &particle.RegistrationError{Name: d.Name, Stage: "describe", Err: err}
	}
	name := d.Identifier()

	r.mu.Lock()
	defer r.mu.Unlock()

	id, seen := r.byName[name]
	if !seen {
		id = r.offset + uint32(len(r.entries))
	}
	logger := r.loggerFor(ctx).With("name", name, "color_id", id)
	ctx = ctxlog.WithLogger(ctx, logger)

	built, err := r.builder.Build(ctx, d, id)
	if err != nil {
		logger.Warn("Particle registration failed.", "error", err)
		return 0, err
	}

	now := r.now()
	if seen {
		// Cells already painted with id keep their appearance: only the
		// behavior is swapped.
		e := &r.entries[id-r.offset]
		e.Source = built.Source
		e.Notes = built.Notes
		e.Action = built.Action
		e.Revision++
		e.Updated = now
		logger.Info("Particle re-registered.", "revision", e.Revision)
	} else {
		r.byName[name] = id
		r.entries = append(r.entries, Entry{
			Name:        name,
			ColorID:     id,
			Color:       built.Description.Color,
			Description: built.Description,
			Source:      built.Source,
			Notes:       built.Notes,
			Revision:    1,
			Registered:  now,
			Updated:     now,
			Action:      built.Action,
		})
		logger.Info("Particle registered.")
	}
	r.table = newTable(r.offset, r.entries)
	return id, nil
}

// loggerFor prefers the request logger carried by ctx over the registry's own.
func (r *Registry) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := ctxlog.Lookup(ctx); ok {
		return logger
	}
	return r.logger
}

// Lookup returns the id registered for name.
func (r *Registry) Lookup(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[particle.NormalizeName(name)]
	return id, ok
}

// Entry returns the entry for id.
func (r *Registry) Entry(id uint32) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < r.offset || int(id-r.offset) >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[id-r.offset], true
}

// Entries returns a copy of every entry in id order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Descriptions returns the last registered description of every particle
// in id order.
func (r *Registry) Descriptions() []particle.Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]particle.Description, len(r.entries))
	for k, e := range r.entries {
		out[k] = e.Description
	}
	return out
}

// Len returns the number of registered particles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Table returns the current action table.
func (r *Registry) Table() *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}
