// Package memory is an in-process Store used by tests and the "memory"
// storage driver. Atomically calls are fully serialized and a failed closure
// has its own writes reverted; writes made outside the closure are kept.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/ledger-engine/internal/domain"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/shopspring/decimal"
)

type attendanceKey struct {
	userID string
	day    string
}

type payrollKey struct {
	userID string
	month  string
}

type state struct {
	ledger      []domain.LedgerEntry
	references  map[string]bool
	employees   map[string]domain.Employee
	attendance  map[attendanceKey]domain.Attendance
	payroll     map[payrollKey]domain.PayrollAdjustment
	money       map[uuid.UUID]domain.MoneyRequest
	withdrawals map[uuid.UUID]domain.WithdrawalRequest
	approvals   map[uuid.UUID]domain.ApprovalRequest
	workflow    []domain.WorkflowStep
}

func newState() state {
	return state{
		references:  map[string]bool{},
		employees:   map[string]domain.Employee{},
		attendance:  map[attendanceKey]domain.Attendance{},
		payroll:     map[payrollKey]domain.PayrollAdjustment{},
		money:       map[uuid.UUID]domain.MoneyRequest{},
		withdrawals: map[uuid.UUID]domain.WithdrawalRequest{},
		approvals:   map[uuid.UUID]domain.ApprovalRequest{},
	}
}

// Store is an in-memory repository.Store.
type Store struct {
	txMu sync.Mutex // serializes Atomically
	mu   sync.RWMutex
	data state
	now  func() time.Time

	// queued errors returned by Atomically in place of running the closure
	failMu   sync.Mutex
	failNext []error
}

// New returns an empty store using clock for Now; nil means time.Now.
func New(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{data: newState(), now: clock}
}

// FailNext queues errors returned by upcoming Atomically calls, in order.
func (s *Store) FailNext(errs ...error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext = append(s.failNext, errs...)
}

func (s *Store) popFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if len(s.failNext) == 0 {
		return nil
	}
	err := s.failNext[0]
	s.failNext = s.failNext[1:]
	return err
}

func (s *Store) Atomically(ctx context.Context, lockKey string, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.popFailure(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	var undo []func(*state)
	if err := fn(&handle{Store: s, undo: &undo}); err != nil {
		s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i](&s.data)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Now(ctx context.Context) (time.Time, error) {
	return s.now(), nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) direct() *handle { return &handle{Store: s} }

func (s *Store) Ledger() repository.LedgerRepository { return s.direct().Ledger() }
func (s *Store) Employees() repository.EmployeeRepository { return s.direct().Employees() }
func (s *Store) Attendance() repository.AttendanceRepository { return s.direct().Attendance() }
func (s *Store) Payroll() repository.PayrollRepository { return s.direct().Payroll() }
func (s *Store) MoneyRequests() repository.MoneyRequestRepository { return s.direct().MoneyRequests() }
func (s *Store) Withdrawals() repository.WithdrawalRepository { return s.direct().Withdrawals() }
func (s *Store) Approvals() repository.ApprovalRequestRepository { return s.direct().Approvals() }
func (s *Store) Workflow() repository.WorkflowRepository { return s.direct().Workflow() }

// handle binds the repositories to the store. Inside Atomically undo collects
// the inverse of every write the closure makes.
type handle struct {
	*Store
	undo *[]func(*state)
}

func (h *handle) Ledger() repository.LedgerRepository { return (*ledgerRepo)(h) }
func (h *handle) Employees() repository.EmployeeRepository { return (*employeeRepo)(h) }
func (h *handle) Attendance() repository.AttendanceRepository { return (*attendanceRepo)(h) }
func (h *handle) Payroll() repository.PayrollRepository { return (*payrollRepo)(h) }
func (h *handle) MoneyRequests() repository.MoneyRequestRepository { return (*moneyRepo)(h) }
func (h *handle) Withdrawals() repository.WithdrawalRepository { return (*withdrawalRepo)(h) }
func (h *handle) Approvals() repository.ApprovalRequestRepository { return (*approvalRepo)(h) }
func (h *handle) Workflow() repository.WorkflowRepository { return (*workflowRepo)(h) }

func record(undo *[]func(*state), revert func(*state)) {
	if undo != nil {
		*undo = append(*undo, revert)
	}
}

// restore puts back the value a write replaced, or removes the key it added.
func restore[K comparable, V any](m map[K]V, k K, prev V, existed bool) {
	if existed {
		m[k] = prev
		return
	}
	delete(m, k)
}

func without[T any](values []T, drop func(T) bool) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func contains[T comparable](values []T, v T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

type ledgerRepo handle

func (r *ledgerRepo) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.Reference != "" && r.data.references[entry.Reference] {
		return repository.ErrDuplicate
	}
	r.data.ledger = append(r.data.ledger, *entry)
	if entry.Reference != "" {
		r.data.references[entry.Reference] = true
	}
	id, reference := entry.ID, entry.Reference
	record(r.undo, func(d *state) {
		d.ledger = without(d.ledger, func(e domain.LedgerEntry) bool { return e.ID == id })
		delete(d.references, reference)
	})
	return nil
}

func (r *ledgerRepo) SumByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, e := range r.data.ledger {
		if e.UserID == userID {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, userID string) ([]*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []*domain.LedgerEntry
	for _, e := range r.data.ledger {
		if e.UserID == userID {
			e := e
			entries = append(entries, &e)
		}
	}
	return entries, nil
}

func (r *ledgerRepo) ExistsReference(ctx context.Context, reference string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.references[reference], nil
}

type employeeRepo handle

func (r *employeeRepo) Create(ctx context.Context, employee *domain.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.employees[employee.UserID]; ok {
		return repository.ErrDuplicate
	}
	r.data.employees[employee.UserID] = *employee
	userID := employee.UserID
	record(r.undo, func(d *state) { delete(d.employees, userID) })
	return nil
}

func (r *employeeRepo) GetByUserID(ctx context.Context, userID string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.data.employees[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *employeeRepo) List(ctx context.Context) ([]*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	employees := make([]*domain.Employee, 0, len(r.data.employees))
	for _, e := range r.data.employees {
		e := e
		employees = append(employees, &e)
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].UserID < employees[j].UserID })
	return employees, nil
}

type attendanceRepo handle

func (r *attendanceRepo) Record(ctx context.Context, attendance *domain.Attendance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attendanceKey{attendance.UserID, dayKey(attendance.Date)}
	prev, existed := r.data.attendance[key]
	r.data.attendance[key] = *attendance
	record(r.undo, func(d *state) { restore(d.attendance, key, prev, existed) })
	return nil
}

func (r *attendanceRepo) CountPresent(ctx context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	days := 0
	for k, a := range r.data.attendance {
		if k.userID != userID || a.Status != domain.AttendancePresent {
			continue
		}
		// calendar dates, as with a DATE column
		if d := dayKey(a.Date); d >= dayKey(from) && d <= dayKey(to) {
			days++
		}
	}
	return days, nil
}

func (r *attendanceRepo) PresentOn(ctx context.Context, day time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []string
	for k, a := range r.data.attendance {
		if k.day == dayKey(day) && a.Status == domain.AttendancePresent {
			users = append(users, k.userID)
		}
	}
	sort.Strings(users)
	return users, nil
}

type payrollRepo handle

func (r *payrollRepo) Upsert(ctx context.Context, adjustment *domain.PayrollAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := payrollKey{adjustment.UserID, dayKey(adjustment.PeriodMonth)}
	prev, existed := r.data.payroll[key]
	r.data.payroll[key] = *adjustment
	record(r.undo, func(d *state) { restore(d.payroll, key, prev, existed) })
	return nil
}

func (r *payrollRepo) GetAdjustment(ctx context.Context, userID string, periodMonth time.Time) (*domain.PayrollAdjustment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data.payroll[payrollKey{userID, dayKey(periodMonth)}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type moneyRepo handle

func (r *moneyRepo) Create(ctx context.Context, request *domain.MoneyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.money[request.ID]; ok {
		return repository.ErrDuplicate
	}
	r.data.money[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { delete(d.money, id) })
	return nil
}

func (r *moneyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MoneyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.data.money[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *moneyRepo) Update(ctx context.Context, request *domain.MoneyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.data.money[request.ID]
	if !ok {
		return repository.ErrNotFound
	}
	r.data.money[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { restore(d.money, id, prev, true) })
	return nil
}

func (r *moneyRepo) ListByUser(ctx context.Context, userID string) ([]*domain.MoneyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var requests []*domain.MoneyRequest
	for _, m := range r.data.money {
		if m.UserID == userID {
			m := m
			requests = append(requests, &m)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (r *moneyRepo) SumCreatedBetween(ctx context.Context, userID string, types []domain.RequestType, statuses []string, from, to time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, m := range r.data.money {
		if m.UserID != userID || !contains(types, m.RequestType) || !contains(statuses, m.Status) {
			continue
		}
		if !m.CreatedAt.Before(from) && m.CreatedAt.Before(to) {
			total = total.Add(m.Amount)
		}
	}
	return total, nil
}

func (r *moneyRepo) SumForPeriod(ctx context.Context, userID string, types []domain.RequestType, statuses []string, periodMonth time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, m := range r.data.money {
		if m.UserID != userID || !contains(types, m.RequestType) || !contains(statuses, m.Status) {
			continue
		}
		if m.PeriodMonth != nil && dayKey(*m.PeriodMonth) == dayKey(periodMonth) {
			total = total.Add(m.Amount)
		}
	}
	return total, nil
}

type withdrawalRepo handle

func (r *withdrawalRepo) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.withdrawals[request.ID]; ok {
		return repository.ErrDuplicate
	}
	r.data.withdrawals[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { delete(d.withdrawals, id) })
	return nil
}

func (r *withdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.data.withdrawals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &w, nil
}

func (r *withdrawalRepo) Update(ctx context.Context, request *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.data.withdrawals[request.ID]
	if !ok {
		return repository.ErrNotFound
	}
	r.data.withdrawals[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { restore(d.withdrawals, id, prev, true) })
	return nil
}

func (r *withdrawalRepo) ListByUser(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var requests []*domain.WithdrawalRequest
	for _, w := range r.data.withdrawals {
		if w.UserID == userID {
			w := w
			requests = append(requests, &w)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (r *withdrawalRepo) SumByStatuses(ctx context.Context, userID string, statuses []string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, w := range r.data.withdrawals {
		if w.UserID == userID && contains(statuses, w.Status) {
			total = total.Add(w.Amount)
		}
	}
	return total, nil
}

type approvalRepo handle

func (r *approvalRepo) Create(ctx context.Context, request *domain.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.approvals[request.ID]; ok {
		return repository.ErrDuplicate
	}
	r.data.approvals[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { delete(d.approvals, id) })
	return nil
}

func (r *approvalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data.approvals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *approvalRepo) Update(ctx context.Context, request *domain.ApprovalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.data.approvals[request.ID]
	if !ok {
		return repository.ErrNotFound
	}
	r.data.approvals[request.ID] = *request
	id := request.ID
	record(r.undo, func(d *state) { restore(d.approvals, id, prev, true) })
	return nil
}

type workflowRepo handle

func (r *workflowRepo) Append(ctx context.Context, step *domain.WorkflowStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.workflow = append(r.data.workflow, *step)
	id := step.ID
	record(r.undo, func(d *state) {
		d.workflow = without(d.workflow, func(s domain.WorkflowStep) bool { return s.ID == id })
	})
	return nil
}

func (r *workflowRepo) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.WorkflowStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var steps []*domain.WorkflowStep
	for _, s := range r.data.workflow {
		if s.PaymentID == paymentID {
			s := s
			steps = append(steps, &s)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Timestamp.Before(steps[j].Timestamp) })
	return steps, nil
}

var _ repository.Store = (*Store)(nil)
