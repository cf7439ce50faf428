package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// Memory is an in-process Store. Writes inside WithJobLock are buffered and applied on success.
type Memory struct {
	mu               sync.RWMutex
	jobs             map[int64]*domain.Job
	assignments      map[int64]*domain.Assignment
	users            map[int64]*domain.User
	blacklist        map[int64][]int64
	languages        map[int64]string
	audit            []*domain.AuditEntry
	nextJobID        int64
	nextAssignmentID int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		jobs:        make(map[int64]*domain.Job),
		assignments: make(map[int64]*domain.Assignment),
		users:       make(map[int64]*domain.User),
		blacklist:   make(map[int64][]int64),
		languages:   make(map[int64]string),
		locks:       make(map[int64]*sync.Mutex),
	}
}

// PutUser seeds a user.
func (m *Memory) PutUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
}

// PutJob seeds a job, keeping its id.
func (m *Memory) PutJob(j *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j.Clone()
	if j.ID > m.nextJobID {
		m.nextJobID = j.ID
	}
}

// PutAssignment seeds an assignment, keeping its id.
func (m *Memory) PutAssignment(a *domain.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.assignments[a.ID] = &c
	if a.ID > m.nextAssignmentID {
		m.nextAssignmentID = a.ID
	}
}

// PutLanguage seeds a language label.
func (m *Memory) PutLanguage(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages[id] = name
}

// PutBlacklist records that customerID excluded translatorID.
func (m *Memory) PutBlacklist(customerID, translatorID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[customerID] = append(m.blacklist[customerID], translatorID)
}

// AuditEntries returns a copy of the audit log.
func (m *Memory) AuditEntries() []*domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *Memory) jobLock(jobID int64) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[jobID] = l
	}
	return l
}

// WithJobLock implements Store.
func (m *Memory) WithJobLock(ctx context.Context, jobID int64, fn func(ctx context.Context, repo Repository) error) error {
	l := m.jobLock(jobID)
	l.Lock()
	defer l.Unlock()

	tx := m.begin()
	if _, err := tx.FindJob(ctx, jobID); err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) begin() *memTx {
	return &memTx{
		base:        m,
		jobs:        make(map[int64]*domain.Job),
		assignments: make(map[int64]*domain.Assignment),
	}
}

func (m *Memory) autocommit(fn func(tx *memTx) error) error {
	tx := m.begin()
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	return m.begin().FindJob(ctx, id)
}

func (m *Memory) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	return m.begin().FindUser(ctx, id)
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.begin().FindUserByEmail(ctx, email)
}

func (m *Memory) FindActiveAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error) {
	return m.begin().FindActiveAssignment(ctx, jobID)
}

func (m *Memory) FindLatestAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error) {
	return m.begin().FindLatestAssignment(ctx, jobID)
}

func (m *Memory) FilterUsers(ctx context.Context, criteria UserCriteria) ([]*domain.User, error) {
	return m.begin().FilterUsers(ctx, criteria)
}

func (m *Memory) FilterJobs(ctx context.Context, criteria JobCriteria) ([]*domain.Job, error) {
	return m.begin().FilterJobs(ctx, criteria)
}

func (m *Memory) FilterAssignments(ctx context.Context, criteria AssignmentCriteria) ([]*domain.Assignment, error) {
	return m.begin().FilterAssignments(ctx, criteria)
}

func (m *Memory) Blacklist(ctx context.Context, customerID int64) ([]int64, error) {
	return m.begin().Blacklist(ctx, customerID)
}

func (m *Memory) LanguageName(ctx context.Context, languageID int64) (string, error) {
	return m.begin().LanguageName(ctx, languageID)
}

func (m *Memory) CreateJob(ctx context.Context, job *domain.Job) error {
	return m.autocommit(func(tx *memTx) error { return tx.CreateJob(ctx, job) })
}

func (m *Memory) SaveJob(ctx context.Context, job *domain.Job) error {
	return m.autocommit(func(tx *memTx) error { return tx.SaveJob(ctx, job) })
}

func (m *Memory) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	return m.autocommit(func(tx *memTx) error { return tx.CreateAssignment(ctx, a) })
}

func (m *Memory) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	return m.autocommit(func(tx *memTx) error { return tx.SaveAssignment(ctx, a) })
}

func (m *Memory) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	return m.autocommit(func(tx *memTx) error { return tx.AppendAudit(ctx, entry) })
}

// memTx overlays uncommitted writes on top of the shared maps.
type memTx struct {
	base        *Memory
	jobs        map[int64]*domain.Job
	assignments map[int64]*domain.Assignment
	audit       []*domain.AuditEntry
}

func (tx *memTx) commit() {
	m := tx.base
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range tx.jobs {
		m.jobs[id] = j
	}
	for id, a := range tx.assignments {
		m.assignments[id] = a
	}
	m.audit = append(m.audit, tx.audit...)
}

func (tx *memTx) FindJob(_ context.Context, id int64) (*domain.Job, error) {
	if j, ok := tx.jobs[id]; ok {
		return j.Clone(), nil
	}
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	j, ok := tx.base.jobs[id]
	if !ok {
		return nil, domain.NotFoundf("job %d", id)
	}
	return j.Clone(), nil
}

func (tx *memTx) FindUser(_ context.Context, id int64) (*domain.User, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	u, ok := tx.base.users[id]
	if !ok {
		return nil, domain.NotFoundf("user %d", id)
	}
	return cloneUser(u), nil
}

func (tx *memTx) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	for _, u := range tx.base.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.NotFoundf("user %q", email)
}

func (tx *memTx) allAssignments() []*domain.Assignment {
	tx.base.mu.RLock()
	out := make([]*domain.Assignment, 0, len(tx.base.assignments)+len(tx.assignments))
	for id, a := range tx.base.assignments {
		if _, shadowed := tx.assignments[id]; shadowed {
			continue
		}
		out = append(out, a)
	}
	tx.base.mu.RUnlock()
	for _, a := range tx.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (tx *memTx) FindActiveAssignment(_ context.Context, jobID int64) (*domain.Assignment, error) {
	for _, a := range tx.allAssignments() {
		if a.JobID == jobID && a.Active() {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (tx *memTx) FindLatestAssignment(_ context.Context, jobID int64) (*domain.Assignment, error) {
	var latest *domain.Assignment
	for _, a := range tx.allAssignments() {
		if a.JobID == jobID {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (tx *memTx) FilterUsers(_ context.Context, criteria UserCriteria) ([]*domain.User, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	var out []*domain.User
	for _, u := range tx.base.users {
		if criteria.Type != "" && u.Type != criteria.Type {
			continue
		}
		if criteria.TranslatorType != "" && u.Meta.TranslatorType != criteria.TranslatorType {
			continue
		}
		if criteria.LanguageID != 0 && !u.SpeaksLanguage(criteria.LanguageID) {
			continue
		}
		if criteria.EnabledOnly && !u.Enabled {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (tx *memTx) FilterJobs(_ context.Context, criteria JobCriteria) ([]*domain.Job, error) {
	tx.base.mu.RLock()
	merged := make(map[int64]*domain.Job, len(tx.base.jobs))
	for id, j := range tx.base.jobs {
		merged[id] = j
	}
	tx.base.mu.RUnlock()
	for id, j := range tx.jobs {
		merged[id] = j
	}

	var out []*domain.Job
	for _, j := range merged {
		if len(criteria.Statuses) > 0 && !containsStatus(criteria.Statuses, j.Status) {
			continue
		}
		if criteria.JobType != "" && j.JobType != criteria.JobType {
			continue
		}
		if len(criteria.LanguageIDs) > 0 && !containsID(criteria.LanguageIDs, j.FromLanguageID) {
			continue
		}
		if !criteria.DueAfter.IsZero() && !j.Due.After(criteria.DueAfter) {
			continue
		}
		if !criteria.ExpiresBefore.IsZero() && !j.WillExpireAt.Before(criteria.ExpiresBefore) {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Due.Before(out[k].Due) })
	return out, nil
}

func (tx *memTx) FilterAssignments(_ context.Context, criteria AssignmentCriteria) ([]*domain.Assignment, error) {
	var out []*domain.Assignment
	for _, a := range tx.allAssignments() {
		if criteria.UserID != 0 && a.UserID != criteria.UserID {
			continue
		}
		if criteria.JobID != 0 && a.JobID != criteria.JobID {
			continue
		}
		if criteria.ActiveOnly && !a.Active() {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (tx *memTx) Blacklist(_ context.Context, customerID int64) ([]int64, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	ids := tx.base.blacklist[customerID]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

func (tx *memTx) LanguageName(_ context.Context, languageID int64) (string, error) {
	tx.base.mu.RLock()
	defer tx.base.mu.RUnlock()
	name, ok := tx.base.languages[languageID]
	if !ok {
		return "", domain.NotFoundf("language %d", languageID)
	}
	return name, nil
}

func (tx *memTx) CreateJob(_ context.Context, job *domain.Job) error {
	tx.base.mu.Lock()
	tx.base.nextJobID++
	job.ID = tx.base.nextJobID
	tx.base.mu.Unlock()
	tx.jobs[job.ID] = job.Clone()
	return nil
}

func (tx *memTx) SaveJob(ctx context.Context, job *domain.Job) error {
	if _, err := tx.FindJob(ctx, job.ID); err != nil {
		return err
	}
	tx.jobs[job.ID] = job.Clone()
	return nil
}

func (tx *memTx) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	if a.Active() {
		active, err := tx.FindActiveAssignment(ctx, a.JobID)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.ErrAlreadyAssigned
		}
	}
	tx.base.mu.Lock()
	tx.base.nextAssignmentID++
	a.ID = tx.base.nextAssignmentID
	tx.base.mu.Unlock()
	c := *a
	tx.assignments[a.ID] = &c
	return nil
}

func (tx *memTx) SaveAssignment(_ context.Context, a *domain.Assignment) error {
	c := *a
	tx.assignments[a.ID] = &c
	return nil
}

func (tx *memTx) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	tx.audit = append(tx.audit, entry)
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Languages = append([]int64(nil), u.Languages...)
	return &c
}

func containsStatus(list []domain.JobStatus, s domain.JobStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
