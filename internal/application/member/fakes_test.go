package member_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

type memoryDirectory struct {
	mu      sync.Mutex
	members map[string]domain.Member
	// failInsert fails inserts of the member with the given person id.
	failInsert map[string]error
	findErr    error
	inserts    int
	updates    int
}

func newMemoryDirectory(seed ...domain.Member) *memoryDirectory {
	d := &memoryDirectory{members: make(map[string]domain.Member), failInsert: make(map[string]error)}
	for _, m := range seed {
		d.members[m.ID] = m
	}
	return d
}

func (d *memoryDirectory) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return domain.Member{}, d.findErr
	}
	return findIn(d.members, tenantID, id, false)
}

func (d *memoryDirectory) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return domain.Member{}, d.findErr
	}
	return findIn(d.members, tenantID, id, true)
}

func (d *memoryDirectory) WithinTx(ctx context.Context, fn func(ctx context.Context, w domain.DirectoryWriter) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &memoryTx{dir: d, members: make(map[string]domain.Member, len(d.members))}
	for id, m := range d.members {
		tx.members[id] = m
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	d.members = tx.members
	d.inserts += tx.inserts
	d.updates += tx.updates
	return nil
}

func (d *memoryDirectory) get(id string) (domain.Member, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[id]
	return m, ok
}

func (d *memoryDirectory) byEmail(email string) (domain.Member, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.members {
		if m.Email == email {
			return m, true
		}
	}
	return domain.Member{}, false
}

func (d *memoryDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.members)
}

type memoryTx struct {
	dir     *memoryDirectory
	members map[string]domain.Member
	inserts int
	updates int
}

func (t *memoryTx) FindByIdentifier(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findIn(t.members, tenantID, id, false)
}

func (t *memoryTx) FindManager(ctx context.Context, tenantID string, id domain.Identifier) (domain.Member, error) {
	return findIn(t.members, tenantID, id, true)
}

func (t *memoryTx) Get(ctx context.Context, tenantID, id string) (domain.Member, error) {
	m, ok := t.members[id]
	if !ok || m.TenantID != tenantID {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	return m, nil
}

func (t *memoryTx) Insert(ctx context.Context, m domain.Member) error {
	if err, ok := t.dir.failInsert[m.PersonID]; ok {
		return err
	}
	for _, existing := range t.members {
		if existing.TenantID != m.TenantID {
			continue
		}
		if (m.Email != "" && existing.Email == m.Email) ||
			(m.Username != "" && existing.Username == m.Username) ||
			existing.PersonID == m.PersonID {
			return fmt.Errorf("insert member: %w", domain.ErrDuplicateIdentifier)
		}
	}
	t.members[m.ID] = m
	t.inserts++
	return nil
}

func (t *memoryTx) Update(ctx context.Context, tenantID, id string, changes []domain.FieldUpdated) error {
	m, err := t.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	for _, c := range changes {
		if err := m.Set(c.Field, c.NewValue); err != nil {
			return err
		}
	}
	t.members[id] = m
	t.updates++
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := t.Get(ctx, tenantID, id); err != nil {
		return err
	}
	delete(t.members, id)
	return nil
}

func findIn(members map[string]domain.Member, tenantID string, id domain.Identifier, managersOnly bool) (domain.Member, error) {
	ids := make([]string, 0, len(members))
	for k := range members {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	for _, k := range ids {
		m := members[k]
		if m.TenantID != tenantID || (managersOnly && !m.Role.CanManage()) {
			continue
		}
		var v string
		switch id.Kind {
		case domain.IdentifierEmail:
			v = m.Email
		case domain.IdentifierUsername:
			v = m.Username
		case domain.IdentifierEmployeeID:
			v = m.EmployeeID
		case domain.IdentifierPersonID:
			v = m.PersonID
		}
		if v != "" && strings.EqualFold(v, id.Value) {
			return m, nil
		}
	}
	return domain.Member{}, domain.ErrMemberNotFound
}

type memoryJournal struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	appendErr error
}

func (j *memoryJournal) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.appendErr != nil {
		return domain.AuditEntry{}, j.appendErr
	}
	if entry.RollbackOf != "" {
		for _, e := range j.entries {
			if e.RollbackOf == entry.RollbackOf {
				return domain.AuditEntry{}, domain.ErrAlreadyRolledBack
			}
		}
	}
	j.entries = append(j.entries, entry)
	return entry, nil
}

func (j *memoryJournal) Get(ctx context.Context, id string) (domain.AuditEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.AuditEntry{}, domain.ErrAuditEntryNotFound
}

func (j *memoryJournal) FindRollbackOf(ctx context.Context, tenantID, entryID string) (domain.AuditEntry, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e.TenantID == tenantID && e.RollbackOf == entryID {
			return e, true, nil
		}
	}
	return domain.AuditEntry{}, false, nil
}

func (j *memoryJournal) List(ctx context.Context, tenantID string, limit int) ([]domain.AuditEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].TenantID != tenantID {
			continue
		}
		out = append(out, j.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (j *memoryJournal) byAction(action domain.AuditAction) []domain.AuditEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range j.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type prefixHasher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *prefixHasher) Hash(ctx context.Context, plain string) (string, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plain, nil
}

func (h *prefixHasher) Matches(hash, plain string) bool {
	return hash == "hashed:"+plain
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(workerType domain.WorkerType) (string, error) {
	if workerType == domain.WorkerOperational {
		return "482913", nil
	}
	return "Generated-Pass-1", nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(domain.WorkerType) (string, error) {
	return "", errors.New("entropy exhausted")
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
