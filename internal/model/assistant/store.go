package assistant

// Store exposes assistant lookup for handlers and services.
type Store interface {
	List() []Assistant
	FindByID(id string) (Assistant, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Assistant
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied assistants.
func NewMemoryStore(items []Assistant) *MemoryStore {
	return &MemoryStore{items: append([]Assistant(nil), items...)}
}

// List returns the configured assistants.
func (s *MemoryStore) List() []Assistant {
	return append([]Assistant(nil), s.items...)
}

// FindByID looks up an assistant by identifier.
func (s *MemoryStore) FindByID(id string) (Assistant, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Assistant{}, false
}

// WithPrompt returns a copy of the store where the given assistant uses prompt
// as its system prompt. Unknown ids leave the store unchanged.
func (s *MemoryStore) WithPrompt(id, prompt string) *MemoryStore {
	items := s.List()
	for i := range items {
		if items[i].ID == id {
			items[i].SystemPrompt = prompt
		}
	}
	return &MemoryStore{items: items}
}
