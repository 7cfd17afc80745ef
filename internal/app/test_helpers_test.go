package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/muster/internal/clock"
	"github.com/example/muster/internal/core/policy"
	"github.com/example/muster/internal/core/render"
	"github.com/example/muster/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockOperationRepository implements secondary.OperationRepository in memory.
type mockOperationRepository struct {
	mu         sync.Mutex
	operations map[string]*secondary.OperationRecord
	createErr  error
	dueErr     error
	flagErr    error

	// staleExpiry, when set, is returned by DueForExpiry in place of a query.
	staleExpiry []*secondary.OperationRecord
}

func newMockOperationRepository() *mockOperationRepository {
	return &mockOperationRepository{operations: make(map[string]*secondary.OperationRecord)}
}

func (m *mockOperationRepository) Create(ctx context.Context, operation *secondary.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, op := range m.operations {
		if !op.Expired && op.PostRef == operation.PostRef {
			return fmt.Errorf("post %s: %w", operation.PostRef, secondary.ErrDuplicatePost)
		}
	}
	stored := *operation
	stored.CreatedAt = "2026-03-01T12:00:00Z"
	m.operations[operation.ID] = &stored
	return nil
}

func (m *mockOperationRepository) GetByID(ctx context.Context, id string) (*secondary.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.operations[id]; ok {
		copied := *op
		return &copied, nil
	}
	return nil, fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
}

func (m *mockOperationRepository) GetByPostRef(ctx context.Context, postRef string) (*secondary.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.operations {
		if op.PostRef == postRef && !op.Expired {
			copied := *op
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("operation for post %s: %w", postRef, secondary.ErrNotFound)
}

func (m *mockOperationRepository) UpdateFields(ctx context.Context, id string, update secondary.OperationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operations[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
	}
	if update.Title != nil {
		op.Title = *update.Title
	}
	if update.Description != nil {
		op.Description = *update.Description
	}
	if update.ScheduledAt != nil {
		op.ScheduledAt = *update.ScheduledAt
	}
	return nil
}

func (m *mockOperationRepository) SetLifecycleFlag(ctx context.Context, id string, flag secondary.LifecycleFlag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flagErr != nil {
		return m.flagErr
	}
	op, ok := m.operations[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, secondary.ErrNotFound)
	}
	switch flag {
	case secondary.FlagReminderSent:
		op.ReminderSent = true
	case secondary.FlagExpired:
		op.Expired = true
	}
	return nil
}

func (m *mockOperationRepository) List(ctx context.Context, filters secondary.OperationFilters) ([]*secondary.OperationRecord, error) {
	return m.filter(func(op *secondary.OperationRecord) bool {
		if filters.ChannelRef != "" && op.ChannelRef != filters.ChannelRef {
			return false
		}
		return filters.IncludeExpired || !op.Expired
	}), nil
}

func (m *mockOperationRepository) DueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*secondary.OperationRecord, error) {
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	return m.filter(func(op *secondary.OperationRecord) bool {
		return !op.Expired && !op.ReminderSent && op.ScheduledAt.After(now) && !op.ScheduledAt.After(now.Add(lead))
	}), nil
}

func (m *mockOperationRepository) DueForExpiry(ctx context.Context, now time.Time, grace time.Duration) ([]*secondary.OperationRecord, error) {
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	if m.staleExpiry != nil {
		return m.staleExpiry, nil
	}
	return m.filter(func(op *secondary.OperationRecord) bool {
		return !op.Expired && op.ScheduledAt.Before(now.Add(-grace))
	}), nil
}

func (m *mockOperationRepository) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("OP-%03d", len(m.operations)+1), nil
}

func (m *mockOperationRepository) filter(keep func(*secondary.OperationRecord) bool) []*secondary.OperationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.OperationRecord
	for _, op := range m.operations {
		if keep(op) {
			copied := *op
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// add stores an operation directly, bypassing the service.
func (m *mockOperationRepository) add(op *secondary.OperationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[op.ID] = op
}

func (m *mockOperationRepository) get(id string) *secondary.OperationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.operations[id]
	return &copied
}

// mockSignupRepository implements secondary.SignupRepository in memory.
type mockSignupRepository struct {
	mu        sync.Mutex
	signups   map[string]map[string]*storedSignup
	seq       int
	upserts   int
	upsertErr error
}

type storedSignup struct {
	record secondary.SignupRecord
	seq    int
}

func newMockSignupRepository() *mockSignupRepository {
	return &mockSignupRepository{signups: make(map[string]map[string]*storedSignup)}
}

func (m *mockSignupRepository) Upsert(ctx context.Context, signup *secondary.SignupRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return "", m.upsertErr
	}
	m.upserts++
	byMember, ok := m.signups[signup.OperationID]
	if !ok {
		byMember = make(map[string]*storedSignup)
		m.signups[signup.OperationID] = byMember
	}
	if existing, ok := byMember[signup.MemberID]; ok {
		previous := existing.record.Category
		if previous != signup.Category {
			existing.record = *signup
		}
		return previous, nil
	}
	m.seq++
	byMember[signup.MemberID] = &storedSignup{record: *signup, seq: m.seq}
	return "", nil
}

func (m *mockSignupRepository) Remove(ctx context.Context, operationID, memberID string) (bool, error) {
	return m.RemoveInCategory(ctx, operationID, memberID, "")
}

func (m *mockSignupRepository) RemoveInCategory(ctx context.Context, operationID, memberID, category string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.signups[operationID][memberID]
	if !ok || (category != "" && existing.record.Category != category) {
		return false, nil
	}
	delete(m.signups[operationID], memberID)
	return true, nil
}

func (m *mockSignupRepository) Get(ctx context.Context, operationID, memberID string) (*secondary.SignupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.signups[operationID][memberID]; ok {
		copied := existing.record
		return &copied, nil
	}
	return nil, fmt.Errorf("signup %s/%s: %w", operationID, memberID, secondary.ErrNotFound)
}

func (m *mockSignupRepository) List(ctx context.Context, operationID string) ([]*secondary.SignupRecord, error) {
	return m.ListExcluding(ctx, operationID, "")
}

func (m *mockSignupRepository) ListExcluding(ctx context.Context, operationID, excluded string) ([]*secondary.SignupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]*storedSignup, 0, len(m.signups[operationID]))
	for _, s := range m.signups[operationID] {
		if excluded != "" && s.record.Category == excluded {
			continue
		}
		stored = append(stored, s)
	}
	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i].record, stored[j].record
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if !a.SignedUpAt.Equal(b.SignedUpAt) {
			return a.SignedUpAt.Before(b.SignedUpAt)
		}
		return stored[i].seq < stored[j].seq
	})
	out := make([]*secondary.SignupRecord, len(stored))
	for i, s := range stored {
		copied := s.record
		out[i] = &copied
	}
	return out, nil
}

func (m *mockSignupRepository) DeleteForOperation(ctx context.Context, operationID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.signups[operationID])
	delete(m.signups, operationID)
	return n, nil
}

func (m *mockSignupRepository) count(operationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signups[operationID])
}

// mockDirectory implements secondary.MemberDirectory for testing.
type mockDirectory struct {
	mu       sync.Mutex
	roles    map[string][]string
	names    map[string]string
	rolesErr error
	lookups  int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{roles: make(map[string][]string), names: make(map[string]string)}
}

func (m *mockDirectory) addMember(id, name string, roles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[id] = name
	m.roles[id] = roles
}

func (m *mockDirectory) MemberRoles(ctx context.Context, memberID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	roles, ok := m.roles[memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, secondary.ErrNotFound)
	}
	return roles, nil
}

func (m *mockDirectory) DisplayName(ctx context.Context, memberID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[memberID]
	if !ok {
		return "", fmt.Errorf("member %s: %w", memberID, secondary.ErrNotFound)
	}
	return name, nil
}

// recordingTransport implements secondary.Transport and records every call.
type recordingTransport struct {
	mu              sync.Mutex
	posts           int
	publishes       []publishCall
	seeds           [][]string
	reactionRemoves []reactionRemoveCall
	postRemoves     []string
	notices         []noticeCall
	publishErr      error
	removeErr       error
}

type publishCall struct {
	ChannelRef string
	PostRef    string
	Text       string
}

type reactionRemoveCall struct {
	PostRef       string
	MemberID      string
	Symbol        string
	SelfCaused    bool
	CorrelationID string
}

type noticeCall struct {
	MemberID string
	Text     string
}

func (r *recordingTransport) Publish(ctx context.Context, channelRef, postRef, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return "", r.publishErr
	}
	if postRef == "" {
		r.posts++
		postRef = fmt.Sprintf("post-%d", r.posts)
	}
	r.publishes = append(r.publishes, publishCall{ChannelRef: channelRef, PostRef: postRef, Text: text})
	return postRef, nil
}

func (r *recordingTransport) SeedReactions(ctx context.Context, channelRef, postRef string, symbols []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds = append(r.seeds, append([]string(nil), symbols...))
	return nil
}

func (r *recordingTransport) RemoveReaction(ctx context.Context, channelRef, postRef, memberID, symbol string, selfCaused bool, correlationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.removeErr != nil {
		return r.removeErr
	}
	r.reactionRemoves = append(r.reactionRemoves, reactionRemoveCall{
		PostRef:       postRef,
		MemberID:      memberID,
		Symbol:        symbol,
		SelfCaused:    selfCaused,
		CorrelationID: correlationID,
	})
	return nil
}

func (r *recordingTransport) RemovePost(ctx context.Context, channelRef, postRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.postRemoves = append(r.postRemoves, postRef)
	return nil
}

func (r *recordingTransport) SendDirectNotice(ctx context.Context, memberID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, noticeCall{MemberID: memberID, Text: text})
	return nil
}

func (r *recordingTransport) publishCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.publishes)
}

func (r *recordingTransport) lastPublish() publishCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publishes[len(r.publishes)-1]
}

func (r *recordingTransport) removals() []reactionRemoveCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reactionRemoveCall(nil), r.reactionRemoves...)
}

// removedSymbols strips correlation ids, which are random per removal.
func (r *recordingTransport) removedSymbols() []reactionRemoveCall {
	calls := r.removals()
	for i := range calls {
		calls[i].CorrelationID = ""
	}
	return calls
}

// ============================================================================
// Test Harness
// ============================================================================

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	testStaffRole = "role-staff"
	testChannel   = "chan-events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.New([]policy.Category{
		{Key: "operator", Label: "Operator", Symbol: "🎯", Roles: []string{"role-operator"}},
		{Key: "pilot", Label: "Pilot", Symbol: "✈️", Roles: []string{"role-pilot"}},
		{Key: "support", Label: "Support", Symbol: "🛠"},
	}, policy.Category{Label: "Declined", Symbol: "❌"})
	require.NoError(t, err)
	return p
}

type harnessOptions struct {
	debounce   time.Duration
	blockStaff bool
}

type harness struct {
	clock      *clock.FakeClock
	ops        *mockOperationRepository
	signups    *mockSignupRepository
	directory  *mockDirectory
	transport  *recordingTransport
	registry   *SuppressionRegistry
	publisher  *RosterPublisher
	attendance *AttendanceServiceImpl
	operations *OperationServiceImpl
	scheduler  *LifecycleSchedulerImpl
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &harness{
		clock:     clock.Fake(testNow),
		ops:       newMockOperationRepository(),
		signups:   newMockSignupRepository(),
		directory: newMockDirectory(),
		transport: &recordingTransport{},
	}
	logger := testLogger()
	pol := testPolicy(t)

	dispatcher := NewInlineDispatcher(NewEffectExecutor(h.transport, logger), logger)
	h.registry = NewSuppressionRegistry(30*time.Second, h.clock, logger)
	h.publisher = NewRosterPublisher(h.ops, h.signups, pol, dispatcher, h.clock, logger, RosterPublisherConfig{
		RenderOptions: render.Options{Location: time.UTC},
		Debounce:      o.debounce,
	})
	h.attendance = NewAttendanceService(h.ops, h.signups, h.directory, pol, h.registry, h.publisher, dispatcher, h.clock,
		AttendanceConfig{StaffRoleID: testStaffRole, BlockStaffSignups: o.blockStaff}, logger)
	h.operations = NewOperationService(h.ops, h.signups, h.directory, h.transport, pol, h.publisher, dispatcher, h.clock,
		testStaffRole, logger)
	h.scheduler = NewLifecycleScheduler(h.ops, h.signups, h.publisher, dispatcher, h.registry, h.clock, SchedulerConfig{
		ReminderLead:     15 * time.Minute,
		ExpiryGrace:      24 * time.Hour,
		ReminderInterval: time.Minute,
		ExpiryInterval:   15 * time.Minute,
	}, logger)

	h.directory.addMember("m-staff", "Cmdr Vale", testStaffRole)
	return h
}

func withDebounce(d time.Duration) func(*harnessOptions) {
	return func(o *harnessOptions) { o.debounce = d }
}

func withStaffBlocked() func(*harnessOptions) {
	return func(o *harnessOptions) { o.blockStaff = true }
}

// seedOperation stores a live operation directly and returns it.
func (h *harness) seedOperation(id, postRef string, scheduledAt time.Time) *secondary.OperationRecord {
	op := &secondary.OperationRecord{
		ID:          id,
		PostRef:     postRef,
		ChannelRef:  testChannel,
		CreatorID:   "m-staff",
		CreatorName: "Cmdr Vale",
		Title:       "Operation " + id,
		ScheduledAt: scheduledAt,
	}
	h.ops.add(op)
	return op
}

// Ensure mocks implement the interfaces
var (
	_ secondary.OperationRepository = (*mockOperationRepository)(nil)
	_ secondary.SignupRepository    = (*mockSignupRepository)(nil)
	_ secondary.MemberDirectory     = (*mockDirectory)(nil)
	_ secondary.Transport           = (*recordingTransport)(nil)
)
