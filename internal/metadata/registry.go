package metadata

import "sync"

type Registry struct {
	mu       sync.RWMutex
	tables   map[string]*Table // keyed by name
	tablesID map[string]*Table // keyed by id
}

func NewRegistry() *Registry {
	return &Registry{
		tables:   make(map[string]*Table),
		tablesID: make(map[string]*Table),
	}
}

// GetTable returns the table with the given name, or nil.
func (r *Registry) GetTable(name string) *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[name]
}

// GetTableByID returns the table with the given id, or nil.
func (r *Registry) GetTableByID(id string) *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tablesID[id]
}

// AllTables returns all registered tables.
func (r *Registry) AllTables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		tables = append(tables, t)
	}
	return tables
}

// Load replaces all tables in the registry. Called during startup and after
// every schema mutation.
func (r *Registry) Load(tables []*Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = make(map[string]*Table, len(tables))
	r.tablesID = make(map[string]*Table, len(tables))
	for _, t := range tables {
		r.tables[t.Name] = t
		r.tablesID[t.ID] = t
	}
}
