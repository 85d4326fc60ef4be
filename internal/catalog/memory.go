package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amestel/coffee-catalog/internal/model"
)

// MemoryStore is an in-memory Store implementation.  It backs the
// service tests and can stand in for MySQL during local development.
// All methods are safe for concurrent use; a single mutex guards the
// maps, which is plenty at this scale.
type MemoryStore struct {
	mu           sync.Mutex
	coffees      map[uint64]*model.Coffee
	flavours     map[uint64]*model.Flavour
	flavourNames map[string]uint64 // name -> flavour id, the uniqueness index
	events       []model.Event

	nextCoffeeID  uint64
	nextFlavourID uint64
	nextEventID   uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		coffees:      make(map[uint64]*model.Coffee),
		flavours:     make(map[uint64]*model.Flavour),
		flavourNames: make(map[string]uint64),
	}
}

// ListCoffees returns a page of coffees ordered by id.
func (m *MemoryStore) ListCoffees(ctx context.Context, offset, limit int) ([]model.Coffee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint64, 0, len(m.coffees))
	for id := range m.coffees {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []model.Coffee{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.cloneLocked(ids[i]))
	}
	return out, nil
}

// GetCoffee returns a copy of the stored coffee or a *NotFoundError.
func (m *MemoryStore) GetCoffee(ctx context.Context, id uint64) (*model.Coffee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.coffees[id]; !ok {
		return nil, &NotFoundError{ID: id}
	}
	c := m.cloneLocked(id)
	return &c, nil
}

// FindFlavourByName looks a flavour up by exact name.
func (m *MemoryStore) FindFlavourByName(ctx context.Context, name string) (*model.Flavour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.flavourNames[name]
	if !ok {
		return nil, ErrFlavourNotFound
	}
	f := *m.flavours[id]
	return &f, nil
}

// InsertCoffee assigns ids to the coffee and any unsaved flavours and
// stores them.  Mirrors the cascading save of the SQL repository.
func (m *MemoryStore) InsertCoffee(ctx context.Context, c *model.Coffee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.nextCoffeeID++
	c.ID = m.nextCoffeeID
	c.CreatedAt = now
	c.UpdatedAt = now
	for i := range c.Flavours {
		m.saveFlavourLocked(&c.Flavours[i])
	}

	stored := *c
	stored.Flavours = append([]model.Flavour(nil), c.Flavours...)
	m.coffees[c.ID] = &stored
	return nil
}

// UpdateCoffee merges the patch onto the stored coffee under the lock,
// which gives the same check-then-write atomicity the SQL store gets
// from its transaction.
func (m *MemoryStore) UpdateCoffee(ctx context.Context, id uint64, patch CoffeePatch) (*model.Coffee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.coffees[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if patch.Title != nil {
		stored.Title = *patch.Title
	}
	if patch.Brand != nil {
		stored.Brand = *patch.Brand
	}
	if patch.Flavours != nil {
		flavours := make([]model.Flavour, len(patch.Flavours))
		copy(flavours, patch.Flavours)
		for i := range flavours {
			m.saveFlavourLocked(&flavours[i])
		}
		stored.Flavours = flavours
	}
	stored.UpdatedAt = time.Now().UTC()

	c := m.cloneLocked(id)
	return &c, nil
}

// DeleteCoffee removes the coffee row; flavours stay behind.
func (m *MemoryStore) DeleteCoffee(ctx context.Context, c *model.Coffee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.coffees[c.ID]; !ok {
		return &NotFoundError{ID: c.ID}
	}
	delete(m.coffees, c.ID)
	return nil
}

// Begin opens a staged unit of work.  Writes accumulate in the Tx and
// are applied to the store only on Commit.
func (m *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	return &memoryTx{store: m}, nil
}

// Events returns a copy of the appended audit events, oldest first.
// Test helper; the service itself never reads events back.
func (m *MemoryStore) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out
}

// FlavourCount reports how many distinct flavour rows exist.
func (m *MemoryStore) FlavourCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flavours)
}

// saveFlavourLocked inserts an unsaved flavour or resolves it to the
// existing row with the same name.  Callers must hold m.mu.
func (m *MemoryStore) saveFlavourLocked(f *model.Flavour) {
	if f.ID != 0 {
		return
	}
	if id, ok := m.flavourNames[f.Name]; ok {
		f.ID = id
		return
	}
	m.nextFlavourID++
	f.ID = m.nextFlavourID
	stored := *f
	m.flavours[f.ID] = &stored
	m.flavourNames[f.Name] = f.ID
}

// cloneLocked returns a deep copy of the stored coffee so callers can
// mutate the result freely.  Callers must hold m.mu.
func (m *MemoryStore) cloneLocked(id uint64) model.Coffee {
	stored := m.coffees[id]
	c := *stored
	c.Flavours = make([]model.Flavour, len(stored.Flavours))
	copy(c.Flavours, stored.Flavours)
	return c
}

// memoryTx stages writes until Commit.  Rollback simply drops them,
// matching the all-or-nothing contract of the SQL transaction.
type memoryTx struct {
	store    *MemoryStore
	coffees  []model.Coffee
	events   []model.Event
	finished bool
}

func (t *memoryTx) SaveCoffee(ctx context.Context, c *model.Coffee) error {
	t.coffees = append(t.coffees, *c)
	return nil
}

func (t *memoryTx) InsertEvent(ctx context.Context, ev *model.Event) error {
	t.events = append(t.events, *ev)
	return nil
}

func (t *memoryTx) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true

	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range t.coffees {
		if stored, ok := m.coffees[c.ID]; ok {
			stored.Title = c.Title
			stored.Brand = c.Brand
			stored.Description = c.Description
			stored.Recommendations = c.Recommendations
			stored.UpdatedAt = time.Now().UTC()
		}
	}
	for _, ev := range t.events {
		m.nextEventID++
		ev.ID = m.nextEventID
		ev.CreatedAt = time.Now().UTC()
		m.events = append(m.events, ev)
	}
	return nil
}

func (t *memoryTx) Rollback() error {
	t.finished = true
	t.coffees = nil
	t.events = nil
	return nil
}
