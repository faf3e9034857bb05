package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

// ── users / roles ─────────────────────────────────────────────────────────────

type stubUserRepo struct {
	users     map[string]*domain.User
	touchErr  error
	passwords int
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	r := &stubUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = cloneUser(u)
	}
	return r
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Count(context.Context) (int64, error) { return int64(len(r.users)), nil }

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash, u.UpdatedAt = hash, at
	r.passwords++
	return nil
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	if r.touchErr != nil {
		return r.touchErr
	}
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (r *stubUserRepo) List(context.Context, ports.UserFilter, domain.Page) ([]domain.User, int64, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

type stubRoleRepo struct {
	roles map[string]*domain.Role
}

func newStubRoleRepo(roles ...*domain.Role) *stubRoleRepo {
	r := &stubRoleRepo{roles: make(map[string]*domain.Role)}
	for _, role := range roles {
		clone := *role
		r.roles[role.ID] = &clone
	}
	return r
}

func (r *stubRoleRepo) FindByID(_ context.Context, id string) (*domain.Role, error) {
	if role, ok := r.roles[id]; ok {
		clone := *role
		return &clone, nil
	}
	return nil, domain.ErrRoleNotFound
}

func (r *stubRoleRepo) FindByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, domain.ErrRoleNotFound
}

func (r *stubRoleRepo) Create(_ context.Context, role *domain.Role) error {
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return domain.ErrRoleNameTaken
		}
	}
	clone := *role
	r.roles[role.ID] = &clone
	return nil
}

func (r *stubRoleRepo) Update(_ context.Context, role *domain.Role) error {
	clone := *role
	r.roles[role.ID] = &clone
	return nil
}

func (r *stubRoleRepo) List(context.Context, string, domain.Page) ([]domain.Role, int64, error) {
	out := make([]domain.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, *role)
	}
	return out, int64(len(out)), nil
}

// ── sessions / audit ──────────────────────────────────────────────────────────

type stubSessions struct {
	sessions   map[string]domain.Identity
	destroyed  []string
	seq        int
	createErr  error
	destroyErr error
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: make(map[string]domain.Identity)}
}

func (s *stubSessions) Create(_ context.Context, id domain.Identity) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.seq++
	sid := fmt.Sprintf("sid-%d", s.seq)
	s.sessions[sid] = id
	return sid, nil
}

func (s *stubSessions) Get(_ context.Context, sid string) (*domain.Identity, error) {
	id, ok := s.sessions[sid]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return &id, nil
}

func (s *stubSessions) Touch(context.Context, string) error { return nil }

func (s *stubSessions) Destroy(_ context.Context, sid string) error {
	if s.destroyErr != nil {
		return s.destroyErr
	}
	delete(s.sessions, sid)
	s.destroyed = append(s.destroyed, sid)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Record(_ context.Context, ev domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Action
	}
	return out
}

func (a *recordingAudit) count(action string) int {
	n := 0
	for _, got := range a.actions() {
		if got == action {
			n++
		}
	}
	return n
}

// ── installations ─────────────────────────────────────────────────────────────

type stubInstallationRepo struct {
	installations  map[string]*domain.Installation
	items          map[string]*domain.InstallationItem
	assignments    map[string]*domain.CrewAssignment
	scheduleWrites int
}

func newStubInstallationRepo(insts ...*domain.Installation) *stubInstallationRepo {
	r := &stubInstallationRepo{
		installations: make(map[string]*domain.Installation),
		items:         make(map[string]*domain.InstallationItem),
		assignments:   make(map[string]*domain.CrewAssignment),
	}
	for _, inst := range insts {
		clone := *inst
		r.installations[inst.ID] = &clone
	}
	return r
}

func (r *stubInstallationRepo) Create(_ context.Context, inst *domain.Installation) error {
	clone := *inst
	r.installations[inst.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) FindByID(_ context.Context, id string) (*domain.Installation, error) {
	if inst, ok := r.installations[id]; ok {
		clone := *inst
		return &clone, nil
	}
	return nil, domain.ErrInstallationNotFound
}

func (r *stubInstallationRepo) List(context.Context, ports.InstallationFilter, domain.Page) ([]domain.Installation, int64, error) {
	out := make([]domain.Installation, 0, len(r.installations))
	for _, inst := range r.installations {
		out = append(out, *inst)
	}
	return out, int64(len(out)), nil
}

func (r *stubInstallationRepo) UpdateSchedule(_ context.Context, inst *domain.Installation) error {
	r.scheduleWrites++
	clone := *inst
	r.installations[inst.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) UpdateStatus(_ context.Context, id string, status domain.InstallationStatus, updatedBy *string, at time.Time) (*domain.Installation, error) {
	inst, ok := r.installations[id]
	if !ok {
		return nil, domain.ErrInstallationNotFound
	}
	inst.Status, inst.UpdatedBy, inst.UpdatedAt = status, updatedBy, at
	clone := *inst
	return &clone, nil
}

func (r *stubInstallationRepo) CreateItem(_ context.Context, item *domain.InstallationItem) error {
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) FindItem(_ context.Context, installationID, itemID string) (*domain.InstallationItem, error) {
	if item, ok := r.items[itemID]; ok && item.InstallationID == installationID {
		clone := *item
		return &clone, nil
	}
	return nil, domain.ErrItemNotFound
}

func (r *stubInstallationRepo) ListItems(_ context.Context, installationID string, _ domain.Page) ([]domain.InstallationItem, int64, error) {
	var out []domain.InstallationItem
	for _, item := range r.items {
		if item.InstallationID == installationID {
			out = append(out, *item)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubInstallationRepo) UpdateItem(_ context.Context, item *domain.InstallationItem) error {
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) DeleteItem(_ context.Context, _, itemID string) error {
	delete(r.items, itemID)
	return nil
}

func (r *stubInstallationRepo) CreateAssignment(_ context.Context, a *domain.CrewAssignment) error {
	clone := *a
	r.assignments[a.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) FindAssignment(_ context.Context, installationID, assignmentID string) (*domain.CrewAssignment, error) {
	if a, ok := r.assignments[assignmentID]; ok && a.InstallationID == installationID {
		clone := *a
		return &clone, nil
	}
	return nil, domain.ErrAssignmentNotFound
}

func (r *stubInstallationRepo) ListAssignments(_ context.Context, installationID string, _ domain.Page) ([]domain.CrewAssignment, int64, error) {
	var out []domain.CrewAssignment
	for _, a := range r.assignments {
		if a.InstallationID == installationID {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubInstallationRepo) UpdateAssignment(_ context.Context, a *domain.CrewAssignment) error {
	clone := *a
	r.assignments[a.ID] = &clone
	return nil
}

func (r *stubInstallationRepo) DeleteAssignment(_ context.Context, _, assignmentID string) error {
	delete(r.assignments, assignmentID)
	return nil
}

// ── stores / addresses ────────────────────────────────────────────────────────

type stubStoreRepo struct {
	stores map[string]*domain.Store
}

func newStubStoreRepo(stores ...*domain.Store) *stubStoreRepo {
	r := &stubStoreRepo{stores: make(map[string]*domain.Store)}
	for _, st := range stores {
		clone := *st
		r.stores[st.ID] = &clone
	}
	return r
}

func (r *stubStoreRepo) Create(_ context.Context, st *domain.Store) error {
	for _, existing := range r.stores {
		if st.ExternalStoreID != nil && existing.ExternalStoreID != nil && *existing.ExternalStoreID == *st.ExternalStoreID {
			return domain.ErrExternalStoreTaken
		}
	}
	clone := *st
	r.stores[st.ID] = &clone
	return nil
}

func (r *stubStoreRepo) FindByID(_ context.Context, id string) (*domain.Store, error) {
	if st, ok := r.stores[id]; ok {
		clone := *st
		return &clone, nil
	}
	return nil, domain.ErrStoreNotFound
}

func (r *stubStoreRepo) List(context.Context, ports.StoreFilter, domain.Page) ([]domain.Store, int64, error) {
	out := make([]domain.Store, 0, len(r.stores))
	for _, st := range r.stores {
		out = append(out, *st)
	}
	return out, int64(len(out)), nil
}

func (r *stubStoreRepo) Update(_ context.Context, st *domain.Store) error {
	clone := *st
	r.stores[st.ID] = &clone
	return nil
}

type stubAddressRepo struct {
	addresses map[string]*domain.Address
}

func newStubAddressRepo(addrs ...*domain.Address) *stubAddressRepo {
	r := &stubAddressRepo{addresses: make(map[string]*domain.Address)}
	for _, a := range addrs {
		clone := *a
		r.addresses[a.ID] = &clone
	}
	return r
}

func (r *stubAddressRepo) Create(_ context.Context, a *domain.Address) error {
	clone := *a
	r.addresses[a.ID] = &clone
	return nil
}

func (r *stubAddressRepo) FindByID(_ context.Context, id string) (*domain.Address, error) {
	if a, ok := r.addresses[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, domain.ErrAddressNotFound
}

func (r *stubAddressRepo) List(context.Context, ports.AddressFilter, domain.Page) ([]domain.Address, int64, error) {
	out := make([]domain.Address, 0, len(r.addresses))
	for _, a := range r.addresses {
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (r *stubAddressRepo) Update(_ context.Context, a *domain.Address) error {
	clone := *a
	r.addresses[a.ID] = &clone
	return nil
}

// ── checklists ────────────────────────────────────────────────────────────────

type stubTemplateRepo struct {
	templates map[string]*domain.ChecklistTemplate
	items     map[string]*domain.ChecklistItem
}

func newStubTemplateRepo(items ...*domain.ChecklistItem) *stubTemplateRepo {
	r := &stubTemplateRepo{
		templates: make(map[string]*domain.ChecklistTemplate),
		items:     make(map[string]*domain.ChecklistItem),
	}
	for _, item := range items {
		clone := *item
		r.items[item.ID] = &clone
	}
	return r
}

func (r *stubTemplateRepo) CreateTemplate(_ context.Context, t *domain.ChecklistTemplate) error {
	clone := *t
	r.templates[t.ID] = &clone
	return nil
}

func (r *stubTemplateRepo) FindTemplate(_ context.Context, id string) (*domain.ChecklistTemplate, error) {
	if t, ok := r.templates[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, domain.ErrTemplateNotFound
}

func (r *stubTemplateRepo) ListTemplates(context.Context, string, domain.Page) ([]domain.ChecklistTemplate, int64, error) {
	out := make([]domain.ChecklistTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (r *stubTemplateRepo) UpdateTemplate(_ context.Context, t *domain.ChecklistTemplate) error {
	clone := *t
	r.templates[t.ID] = &clone
	return nil
}

func (r *stubTemplateRepo) CreateItem(_ context.Context, item *domain.ChecklistItem) error {
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *stubTemplateRepo) FindItem(_ context.Context, id string) (*domain.ChecklistItem, error) {
	if item, ok := r.items[id]; ok {
		clone := *item
		return &clone, nil
	}
	return nil, domain.ErrChecklistItemNotFound
}

func (r *stubTemplateRepo) ListItems(_ context.Context, templateID string, _ domain.Page) ([]domain.ChecklistItem, int64, error) {
	var out []domain.ChecklistItem
	for _, item := range r.items {
		if item.TemplateID == templateID {
			out = append(out, *item)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubTemplateRepo) UpdateItem(_ context.Context, item *domain.ChecklistItem) error {
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

// stubResponseRepo enforces the (installation, item) uniqueness of the real
// store. raceOnInsert simulates a concurrent writer winning the insert;
// concurrentWrite mutates the stored row between a read and the next patch.
type stubResponseRepo struct {
	rows            map[string]*domain.ChecklistResponse
	raceOnInsert    *domain.ChecklistResponse
	concurrentWrite func(row *domain.ChecklistResponse)
	inserts         int
}

func newStubResponseRepo() *stubResponseRepo {
	return &stubResponseRepo{rows: make(map[string]*domain.ChecklistResponse)}
}

func responseKey(installationID, itemID string) string { return installationID + "/" + itemID }

func (r *stubResponseRepo) FindByKey(_ context.Context, installationID, itemID string) (*domain.ChecklistResponse, error) {
	if row, ok := r.rows[responseKey(installationID, itemID)]; ok {
		clone := *row
		return &clone, nil
	}
	return nil, domain.ErrResponseNotFound
}

func (r *stubResponseRepo) FindByID(_ context.Context, id string) (*domain.ChecklistResponse, error) {
	for _, row := range r.rows {
		if row.ID == id {
			clone := *row
			return &clone, nil
		}
	}
	return nil, domain.ErrResponseNotFound
}

func (r *stubResponseRepo) Insert(_ context.Context, resp *domain.ChecklistResponse) error {
	if r.raceOnInsert != nil {
		winner := *r.raceOnInsert
		r.rows[responseKey(winner.InstallationID, winner.ItemID)] = &winner
		r.raceOnInsert = nil
	}
	key := responseKey(resp.InstallationID, resp.ItemID)
	if _, ok := r.rows[key]; ok {
		return domain.ErrDuplicateKey
	}
	r.inserts++
	clone := *resp
	r.rows[key] = &clone
	return nil
}

func (r *stubResponseRepo) ApplyPatch(_ context.Context, id string, in ports.ResponsePatch, at time.Time) (*domain.ChecklistResponse, error) {
	for _, row := range r.rows {
		if row.ID != id {
			continue
		}
		if r.concurrentWrite != nil {
			r.concurrentWrite(row)
			r.concurrentWrite = nil
		}
		if in.Value.Set {
			row.Value = in.Value.Value
		}
		if in.CompletedAt.Set {
			row.CompletedAt = in.CompletedAt.Ptr()
		}
		row.UpdatedAt = at
		clone := *row
		return &clone, nil
	}
	return nil, domain.ErrResponseNotFound
}

func (r *stubResponseRepo) ListByInstallation(_ context.Context, installationID string, _ domain.Page) ([]domain.ChecklistResponse, int64, error) {
	var out []domain.ChecklistResponse
	for _, row := range r.rows {
		if row.InstallationID == installationID {
			out = append(out, *row)
		}
	}
	return out, int64(len(out)), nil
}

// ── media ─────────────────────────────────────────────────────────────────────

type stubMediaRepo struct {
	media map[string]*domain.MediaAsset
}

func newStubMediaRepo() *stubMediaRepo {
	return &stubMediaRepo{media: make(map[string]*domain.MediaAsset)}
}

func (r *stubMediaRepo) Create(_ context.Context, m *domain.MediaAsset) error {
	clone := *m
	r.media[m.ID] = &clone
	return nil
}

func (r *stubMediaRepo) FindByID(_ context.Context, id string) (*domain.MediaAsset, error) {
	if m, ok := r.media[id]; ok {
		clone := *m
		return &clone, nil
	}
	return nil, domain.ErrMediaNotFound
}

func (r *stubMediaRepo) ListByInstallation(_ context.Context, installationID, mediaType string, _ domain.Page) ([]domain.MediaAsset, int64, error) {
	var out []domain.MediaAsset
	for _, m := range r.media {
		if m.InstallationID == installationID && (mediaType == "" || string(m.Type) == mediaType) {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubMediaRepo) Delete(_ context.Context, id string) error {
	delete(r.media, id)
	return nil
}
