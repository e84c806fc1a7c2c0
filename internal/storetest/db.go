// Package storetest provides in-memory implementations of the service store
// interfaces. All views share one DB so unique constraints, version checks,
// cascades and links behave like the PostgreSQL schema.
package storetest

import (
	"sync"
	"time"

	"leads-backend/internal/models"
)

type DB struct {
	mu sync.Mutex

	principals    map[int]*models.Principal
	nextPrincipal int

	mappings    map[string]*models.DialerMapping
	nextMapping int

	settings map[string]*models.SystemSetting

	leads     map[int]*models.Lead
	nextLead  int
	sequences map[string]int

	history     []*models.LeadStatusChange
	nextHistory int

	notifications    map[int]*models.Notification
	nextNotification int

	callbacks    map[int]*models.Callback
	nextCallback int

	outbox      map[string]*models.OutboxEntry
	outboxOrder []string

	submissions    map[int]*models.FieldSubmission
	nextSubmission int

	// LeadWriteErr, when set, fails every Create/Update
	LeadWriteErr error
	// LeadWrites counts committed lead transactions
	LeadWrites int
}

func New() *DB {
	return &DB{
		principals:    make(map[int]*models.Principal),
		mappings:      make(map[string]*models.DialerMapping),
		settings:      make(map[string]*models.SystemSetting),
		leads:         make(map[int]*models.Lead),
		sequences:     make(map[string]int),
		notifications: make(map[int]*models.Notification),
		callbacks:     make(map[int]*models.Callback),
		outbox:        make(map[string]*models.OutboxEntry),
		submissions:   make(map[int]*models.FieldSubmission),
	}
}

func (db *DB) Principals() *Principals             { return &Principals{db: db} }
func (db *DB) DialerMappings() *DialerMappings     { return &DialerMappings{db: db} }
func (db *DB) Settings() *Settings                 { return &Settings{db: db} }
func (db *DB) Leads() *Leads                       { return &Leads{db: db} }
func (db *DB) Notifications() *Notifications       { return &Notifications{db: db} }
func (db *DB) Callbacks() *Callbacks               { return &Callbacks{db: db} }
func (db *DB) Outbox() *Outbox                     { return &Outbox{db: db} }
func (db *DB) FieldSubmissions() *FieldSubmissions { return &FieldSubmissions{db: db} }

// SetSequence primes the lead number counter for a prefix
func (db *DB) SetSequence(prefix string, last int) {
	db.mu.Lock()
	db.sequences[prefix] = last
	db.mu.Unlock()
}

// LeadCount returns every stored lead, soft-deleted included
func (db *DB) LeadCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.leads)
}

// AllNotifications returns every notification for assertions
func (db *DB) AllNotifications() []*models.Notification {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*models.Notification, 0, len(db.notifications))
	for _, n := range db.notifications {
		c := *n
		out = append(out, &c)
	}
	return out
}

// AllOutbox returns outbox rows in insertion order
func (db *DB) AllOutbox() []*models.OutboxEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*models.OutboxEntry, 0, len(db.outboxOrder))
	for _, id := range db.outboxOrder {
		if e, ok := db.outbox[id]; ok {
			out = append(out, cloneOutbox(e))
		}
	}
	return out
}

// RawLead returns the stored row without any join, for byte-level checks
func (db *DB) RawLead(id int) *models.Lead {
	db.mu.Lock()
	defer db.mu.Unlock()
	if l, ok := db.leads[id]; ok {
		return l.Clone()
	}
	return nil
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func cloneOutbox(e *models.OutboxEntry) *models.OutboxEntry {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	if e.DoneAt != nil {
		d := *e.DoneAt
		c.DoneAt = &d
	}
	return &c
}
