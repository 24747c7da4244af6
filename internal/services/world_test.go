package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/models"
)

var errStore = errors.New("store unavailable")

type memberKey struct{ account, list string }

// world is an in-memory database behind every store interface the services use.
// It follows the repositories: missing rows are (nil, nil), duplicate emails and
// memberships fail with a unique violation.
type world struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	keys     map[string]*models.APIKey
	lists    map[string]*models.List
	members  map[memberKey]models.Role
	items    map[string]*models.Item
	fail     bool
}

func newWorld() *world {
	return &world{
		accounts: map[string]*models.Account{},
		keys:     map[string]*models.APIKey{},
		lists:    map[string]*models.List{},
		members:  map[memberKey]models.Role{},
		items:    map[string]*models.Item{},
	}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// accounts

func (w *world) CreateAccount(_ context.Context, a *models.Account) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errStore
	}
	for _, existing := range w.accounts {
		if existing.Email == a.Email {
			return uniqueViolation()
		}
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()
	cp := *a
	w.accounts[a.ID] = &cp
	return nil
}

func (w *world) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return nil, errStore
	}
	if a, ok := w.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (w *world) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return nil, errStore
	}
	for _, a := range w.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (w *world) ListAccounts(_ context.Context, limit, offset int) ([]*models.Account, int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	all := make([]*models.Account, 0, len(w.accounts))
	for _, a := range w.accounts {
		cp := *a
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset >= total {
		return []*models.Account{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (w *world) DeleteAccountCascade(_ context.Context, id string) (int64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return 0, false, errStore
	}
	if _, ok := w.accounts[id]; !ok {
		return 0, false, nil
	}
	var n int64
	for k, r := range w.members {
		if k.account == id && r == models.RoleOwner {
			n += w.dropListLocked(k.list)
		}
	}
	for k := range w.members {
		if k.account == id {
			delete(w.members, k)
			n++
		}
	}
	for kid, key := range w.keys {
		if key.AccountID == id {
			delete(w.keys, kid)
			n++
		}
	}
	delete(w.accounts, id)
	return n + 1, true, nil
}

// keys

func (w *world) CreateAPIKey(_ context.Context, k *models.APIKey) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errStore
	}
	k.ID = uuid.New().String()
	cp := *k
	w.keys[k.ID] = &cp
	return nil
}

func (w *world) GetAPIKeyByAccountAndHash(_ context.Context, accountID, hash string) (*models.APIKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, k := range w.keys {
		if k.AccountID == accountID && k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (w *world) ListAPIKeysByAccount(_ context.Context, accountID string) ([]*models.APIKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*models.APIKey
	for _, k := range w.keys {
		if k.AccountID == accountID {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (w *world) InvalidateAPIKey(_ context.Context, accountID, keyID string, now time.Time) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k, ok := w.keys[keyID]
	if !ok || k.AccountID != accountID {
		return false, nil
	}
	if k.IsValid && now.Before(k.ExpiresAt) {
		k.ExpiresAt = now
	}
	k.IsValid = false
	return true, nil
}

func (w *world) InvalidateAllAPIKeys(_ context.Context, accountID string, now time.Time) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var n int64
	for _, k := range w.keys {
		if k.AccountID == accountID && k.IsValid {
			if now.Before(k.ExpiresAt) {
				k.ExpiresAt = now
			}
			k.IsValid = false
			n++
		}
	}
	return n, nil
}

func (w *world) DeleteExpiredAPIKeys(_ context.Context, now time.Time) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var n int64
	for id, k := range w.keys {
		if !k.IsValid || !k.ExpiresAt.After(now) {
			delete(w.keys, id)
			n++
		}
	}
	return n, nil
}

// memberships

func (w *world) GetMembership(_ context.Context, accountID, listID string) (*models.Membership, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return nil, errStore
	}
	r, ok := w.members[memberKey{accountID, listID}]
	if !ok {
		return nil, nil
	}
	return &models.Membership{AccountID: accountID, ListID: listID, Role: r}, nil
}

func (w *world) CreateMembership(_ context.Context, m *models.Membership) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := memberKey{m.AccountID, m.ListID}
	if _, ok := w.members[k]; ok {
		return uniqueViolation()
	}
	w.members[k] = m.Role
	return nil
}

func (w *world) DeleteMembership(_ context.Context, accountID, listID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := memberKey{accountID, listID}
	if _, ok := w.members[k]; !ok {
		return false, nil
	}
	delete(w.members, k)
	return true, nil
}

func (w *world) ListMembers(_ context.Context, listID string) ([]*models.MembershipWithAccount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*models.MembershipWithAccount
	for k, r := range w.members {
		if k.list != listID {
			continue
		}
		m := &models.MembershipWithAccount{Membership: models.Membership{ListID: listID, AccountID: k.account, Role: r}}
		if a, ok := w.accounts[k.account]; ok {
			m.Email = a.Email
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, nil
}

// lists

func (w *world) CreateListWithOwner(_ context.Context, l *models.List, ownerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errStore
	}
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	cp := *l
	w.lists[l.ID] = &cp
	w.members[memberKey{ownerID, l.ID}] = models.RoleOwner
	return nil
}

func (w *world) GetList(_ context.Context, id string) (*models.List, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.lists[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (w *world) ListListsForAccount(_ context.Context, accountID string) ([]*models.ListWithRole, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []*models.ListWithRole
	for k, r := range w.members {
		if k.account == accountID {
			if l, ok := w.lists[k.list]; ok {
				out = append(out, &models.ListWithRole{List: *l, Role: r})
			}
		}
	}
	return out, nil
}

func (w *world) CountOwnedLists(_ context.Context, accountID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return 0, errStore
	}
	n := 0
	for k, r := range w.members {
		if k.account == accountID && r == models.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (w *world) RenameList(_ context.Context, id, name string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.lists[id]
	if !ok {
		return false, nil
	}
	l.Name = name
	return true, nil
}

func (w *world) DeleteListCascade(_ context.Context, id string) (int64, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.lists[id]; !ok {
		return 0, false, nil
	}
	return w.dropListLocked(id), true, nil
}

func (w *world) dropListLocked(id string) int64 {
	var n int64
	for iid, it := range w.items {
		if it.ListID == id {
			delete(w.items, iid)
			n++
		}
	}
	for k := range w.members {
		if k.list == id {
			delete(w.members, k)
			n++
		}
	}
	if _, ok := w.lists[id]; ok {
		delete(w.lists, id)
		n++
	}
	return n
}

func (w *world) TouchList(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.lists[id]; ok {
		l.UpdatedAt = time.Now()
	}
	return nil
}

// items

func (w *world) CreateItem(_ context.Context, it *models.Item) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	it.ID = uuid.New().String()
	cp := *it
	w.items[it.ID] = &cp
	return nil
}

func (w *world) GetItem(_ context.Context, listID, itemID string) (*models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if it, ok := w.items[itemID]; ok && it.ListID == listID {
		cp := *it
		return &cp, nil
	}
	return nil, nil
}

func (w *world) ListItems(_ context.Context, listID string) ([]*models.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []*models.Item{}
	for _, it := range w.items {
		if it.ListID == listID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (w *world) CountItems(_ context.Context, listID string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, it := range w.items {
		if it.ListID == listID {
			n++
		}
	}
	return n, nil
}

func (w *world) UpdateItem(_ context.Context, it *models.Item) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur, ok := w.items[it.ID]
	if !ok || cur.ListID != it.ListID {
		return false, nil
	}
	cp := *it
	w.items[it.ID] = &cp
	return true, nil
}

func (w *world) DeleteItem(_ context.Context, listID, itemID string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	it, ok := w.items[itemID]
	if !ok || it.ListID != listID {
		return false, nil
	}
	delete(w.items, itemID)
	return true, nil
}

func (w *world) addAccount(email string) string {
	id := uuid.New().String()
	w.mu.Lock()
	w.accounts[id] = &models.Account{ID: id, Email: email}
	w.mu.Unlock()
	return id
}

type fixture struct {
	w        *world
	accounts *AccountService
	lists    *ListService
	items    *ItemService
	keys     *auth.KeyManager
	authn    *auth.Authenticator
}

func newFixture(limits config.LimitsConfig) *fixture {
	w := newWorld()
	km := auth.NewKeyManager(w, "sl", auth.DefaultKeyTTL)
	a := authz.NewMembershipAuthorizer(w)
	return &fixture{
		w:        w,
		accounts: NewAccountService(w, km),
		lists:    NewListService(w, w, w, a, limits),
		items:    NewItemService(w, w, a, limits),
		keys:     km,
		authn:    auth.NewAuthenticator(w, w),
	}
}

func defaultLimits() config.LimitsConfig {
	return config.LimitsConfig{MaxListsPerAccount: 50, MaxItemsPerList: 500}
}
