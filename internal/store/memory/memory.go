// Package memory provides an in-memory Store used for tests, development,
// and as the default backend. Optionally seeds categories and accounts from
// JSON files in a data directory.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Pehalba/AdmFinanceira/internal/core"
	"github.com/Pehalba/AdmFinanceira/internal/store"
)

type Store struct {
	mu sync.Mutex

	accounts     map[string]core.Account
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	templates    map[string]core.BillTemplate
	statuses     map[string]core.BillStatus
	summaries    map[string]core.MonthlySummary // keyed uid|monthKey
	users        map[string]core.User
	meta         map[string]core.UserMeta
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     make(map[string]core.Account),
		categories:   make(map[string]core.Category),
		transactions: make(map[string]core.Transaction),
		templates:    make(map[string]core.BillTemplate),
		statuses:     make(map[string]core.BillStatus),
		summaries:    make(map[string]core.MonthlySummary),
		users:        make(map[string]core.User),
		meta:         make(map[string]core.UserMeta),
	}
}

// NewFromFiles seeds the store from optional JSON files under base
// (seed_accounts.json, seed_categories.json). Missing or malformed files are
// skipped silently; seeding is a convenience, not a contract.
func NewFromFiles(base string) *Store {
	s := New()

	var accounts []core.Account
	if readJSON(filepath.Join(base, "seed_accounts.json"), &accounts) {
		for _, a := range accounts {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			s.accounts[a.ID] = a
		}
	}

	var categories []core.Category
	if readJSON(filepath.Join(base, "seed_categories.json"), &categories) {
		for _, c := range categories {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			s.categories[c.ID] = c
		}
	}

	return s
}

func readJSON(path string, out any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Accounts() store.Accounts         { return accountsRepo{s} }
func (s *Store) Categories() store.Categories     { return categoriesRepo{s} }
func (s *Store) Transactions() store.Transactions { return transactionsRepo{s} }
func (s *Store) Templates() store.Templates       { return templatesRepo{s} }
func (s *Store) Statuses() store.Statuses         { return statusesRepo{s} }
func (s *Store) Summaries() store.Summaries       { return summariesRepo{s} }
func (s *Store) Users() store.Users               { return usersRepo{s} }
func (s *Store) Meta() store.Meta                 { return metaRepo{s} }

// --- accounts ---

type accountsRepo struct{ s *Store }

func (r accountsRepo) Create(_ context.Context, a core.Account) (core.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	r.s.accounts[a.ID] = a
	return a, nil
}

func (r accountsRepo) GetByID(_ context.Context, uid, id string) (core.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.UID != uid {
		return core.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (r accountsRepo) Update(_ context.Context, a core.Account) (core.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.accounts[a.ID]
	if !ok || existing.UID != a.UID {
		return core.Account{}, store.ErrNotFound
	}
	r.s.accounts[a.ID] = a
	return a, nil
}

func (r accountsRepo) Delete(_ context.Context, uid, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.UID != uid {
		return store.ErrNotFound
	}
	delete(r.s.accounts, id)
	return nil
}

func (r accountsRepo) ListByUser(_ context.Context, uid string) ([]core.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Account
	for _, a := range r.s.accounts {
		if a.UID == uid {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- categories ---

type categoriesRepo struct{ s *Store }

func (r categoriesRepo) Create(_ context.Context, c core.Category) (core.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = uuid.NewString()
	r.s.categories[c.ID] = c
	return c, nil
}

func (r categoriesRepo) GetByID(_ context.Context, uid, id string) (core.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok || c.UID != uid {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r categoriesRepo) Update(_ context.Context, c core.Category) (core.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.categories[c.ID]
	if !ok || existing.UID != c.UID {
		return core.Category{}, store.ErrNotFound
	}
	r.s.categories[c.ID] = c
	return c, nil
}

func (r categoriesRepo) Delete(_ context.Context, uid, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok || c.UID != uid {
		return store.ErrNotFound
	}
	delete(r.s.categories, id)
	return nil
}

func (r categoriesRepo) ListByUser(_ context.Context, uid string) ([]core.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.Category
	for _, c := range r.s.categories {
		if c.UID == uid {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- transactions ---

type transactionsRepo struct{ s *Store }

func (r transactionsRepo) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.s.transactions[t.ID] = t
	return t, nil
}

func (r transactionsRepo) GetByID(_ context.Context, uid, id string) (core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.UID != uid {
		return core.Transaction{}, store.ErrNotFound
	}
	return t, nil
}

func (r transactionsRepo) Update(_ context.Context, t core.Transaction) (core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.transactions[t.ID]
	if !ok || existing.UID != t.UID {
		return core.Transaction{}, store.ErrNotFound
	}
	r.s.transactions[t.ID] = t
	return t, nil
}

func (r transactionsRepo) Delete(_ context.Context, uid, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.UID != uid {
		return store.ErrNotFound
	}
	delete(r.s.transactions, id)
	return nil
}

// newestFirst orders by date descending, then id for a stable cursor.
func newestFirst(txs []core.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
}

func (r transactionsRepo) ListByMonth(_ context.Context, uid string, monthKey core.MonthKey, limit int, startAfter string) ([]core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []core.Transaction
	for _, t := range r.s.transactions {
		if t.UID == uid && t.MonthKey == monthKey {
			all = append(all, t)
		}
	}
	newestFirst(all)

	start := 0
	if startAfter != "" {
		for i, t := range all {
			if t.ID == startAfter {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 || limit > store.MaxMonthScan {
		limit = store.MaxMonthScan
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	if start >= len(all) {
		return nil, nil
	}
	return append([]core.Transaction(nil), all[start:end]...), nil
}

func (r transactionsRepo) ListRecent(_ context.Context, uid string, limit int) ([]core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []core.Transaction
	for _, t := range r.s.transactions {
		if t.UID == uid {
			all = append(all, t)
		}
	}
	newestFirst(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r transactionsRepo) ListByUser(_ context.Context, uid string) ([]core.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []core.Transaction
	for _, t := range r.s.transactions {
		if t.UID == uid {
			all = append(all, t)
		}
	}
	return all, nil
}

func (r transactionsRepo) CountByCategory(_ context.Context, uid, categoryID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.transactions {
		if t.UID == uid && t.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// --- bill templates ---

type templatesRepo struct{ s *Store }

func (r templatesRepo) Create(_ context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.s.templates[t.ID] = t
	return t, nil
}

func (r templatesRepo) GetByID(_ context.Context, uid, id string) (core.BillTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok || t.UID != uid {
		return core.BillTemplate{}, store.ErrNotFound
	}
	return t, nil
}

func (r templatesRepo) Update(_ context.Context, t core.BillTemplate) (core.BillTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.templates[t.ID]
	if !ok || existing.UID != t.UID {
		return core.BillTemplate{}, store.ErrNotFound
	}
	r.s.templates[t.ID] = t
	return t, nil
}

func (r templatesRepo) Delete(_ context.Context, uid, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok || t.UID != uid {
		return store.ErrNotFound
	}
	delete(r.s.templates, id)
	return nil
}

func (r templatesRepo) list(uid string, limit int, activeOnly bool) []core.BillTemplate {
	var out []core.BillTemplate
	for _, t := range r.s.templates {
		if t.UID != uid {
			continue
		}
		if activeOnly && !t.Active {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDay != out[j].DueDay {
			return out[i].DueDay < out[j].DueDay
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r templatesRepo) ListActive(_ context.Context, uid string, limit int) ([]core.BillTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(uid, limit, true), nil
}

func (r templatesRepo) ListByUser(_ context.Context, uid string, limit int) ([]core.BillTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(uid, limit, false), nil
}

// --- bill statuses ---

type statusesRepo struct{ s *Store }

func (r statusesRepo) Ensure(_ context.Context, st core.BillStatus) (core.BillStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	// Check-then-create under one lock: first writer wins.
	for _, existing := range r.s.statuses {
		if existing.TemplateID == st.TemplateID && existing.MonthKey == st.MonthKey {
			return existing, nil
		}
	}
	st.ID = uuid.NewString()
	r.s.statuses[st.ID] = st
	return st, nil
}

func (r statusesRepo) GetByID(_ context.Context, uid, id string) (core.BillStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.statuses[id]
	if !ok || st.UID != uid {
		return core.BillStatus{}, store.ErrNotFound
	}
	return st, nil
}

func (r statusesRepo) GetByTemplateAndMonth(_ context.Context, uid, templateID string, monthKey core.MonthKey) (core.BillStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.statuses {
		if st.UID == uid && st.TemplateID == templateID && st.MonthKey == monthKey {
			return st, nil
		}
	}
	return core.BillStatus{}, store.ErrNotFound
}

func (r statusesRepo) Update(_ context.Context, st core.BillStatus) (core.BillStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.statuses[st.ID]
	if !ok || existing.UID != st.UID {
		return core.BillStatus{}, store.ErrNotFound
	}
	r.s.statuses[st.ID] = st
	return st, nil
}

func (r statusesRepo) ListByMonth(_ context.Context, uid string, monthKey core.MonthKey) ([]core.BillStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []core.BillStatus
	for _, st := range r.s.statuses {
		if st.UID == uid && st.MonthKey == monthKey {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r statusesRepo) DeleteByTemplate(_ context.Context, uid, templateID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, st := range r.s.statuses {
		if st.UID == uid && st.TemplateID == templateID {
			delete(r.s.statuses, id)
		}
	}
	return nil
}

// --- monthly summaries ---

type summariesRepo struct{ s *Store }

func summaryKey(uid string, monthKey core.MonthKey) string {
	return uid + "|" + string(monthKey)
}

func (r summariesRepo) Get(_ context.Context, uid string, monthKey core.MonthKey) (core.MonthlySummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum, ok := r.s.summaries[summaryKey(uid, monthKey)]
	if !ok {
		return core.MonthlySummary{}, store.ErrNotFound
	}
	return cloneSummary(sum), nil
}

func (r summariesRepo) Upsert(_ context.Context, sum core.MonthlySummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.summaries[summaryKey(sum.UID, sum.MonthKey)] = cloneSummary(sum)
	return nil
}

// cloneSummary copies the breakdown maps so callers never alias stored state.
func cloneSummary(sum core.MonthlySummary) core.MonthlySummary {
	out := sum
	out.ByCategory = cloneTotals(sum.ByCategory)
	out.ByCategoryIncome = cloneTotals(sum.ByCategoryIncome)
	out.ByCategoryExpense = cloneTotals(sum.ByCategoryExpense)
	return out
}

func cloneTotals(in map[string]core.CategoryTotal) map[string]core.CategoryTotal {
	if in == nil {
		return nil
	}
	out := make(map[string]core.CategoryTotal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// --- users ---

type usersRepo struct{ s *Store }

func (r usersRepo) Create(_ context.Context, u core.User) (core.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, store.ErrAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r usersRepo) GetByID(_ context.Context, id string) (core.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return core.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r usersRepo) GetByEmail(_ context.Context, email string) (core.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, store.ErrNotFound
}

// --- user meta ---

type metaRepo struct{ s *Store }

func (r metaRepo) Get(_ context.Context, uid string) (core.UserMeta, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.meta[uid]
	if !ok {
		return core.UserMeta{UID: uid}, nil
	}
	return m, nil
}

func (r metaRepo) Put(_ context.Context, m core.UserMeta) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.meta[m.UID] = m
	return nil
}
