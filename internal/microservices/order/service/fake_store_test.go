package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"order-desk/internal/domain"
	"order-desk/internal/microservices/order/repository"
)

type memState struct {
	orders    map[int64]domain.Order
	lines     []domain.OrderLine
	items     map[int64]domain.Item
	users     map[int64]domain.User
	log       []domain.StatusLogEntry
	nextOrder int64
	nextLine  int64
}

func (s memState) clone() memState {
	c := s
	c.orders = make(map[int64]domain.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.items = make(map[int64]domain.Item, len(s.items))
	for k, v := range s.items {
		c.items[k] = v
	}
	c.users = make(map[int64]domain.User, len(s.users))
	for k, v := range s.users {
		c.users[k] = v
	}
	c.lines = append([]domain.OrderLine(nil), s.lines...)
	c.log = append([]domain.StatusLogEntry(nil), s.log...)
	return c
}

// memStore commits a transaction's writes only when fn returns nil.
type memStore struct {
	mu  sync.Mutex
	st  memState
	now func() time.Time
	txs int
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{now: now, st: memState{
		orders: map[int64]domain.Order{},
		items:  map[int64]domain.Item{},
		users:  map[int64]domain.User{},
	}}
}

func (m *memStore) addItem(it domain.Item) domain.Item {
	m.st.items[it.ID] = it
	return it
}

func (m *memStore) addUser(id int64, role domain.Role) {
	m.st.users[id] = domain.User{ID: id, Name: string(role), Email: string(role) + "@desk", Role: role, IsVerified: true}
}

func (m *memStore) item(id int64) domain.Item   { return m.st.items[id] }
func (m *memStore) order(id int64) domain.Order { return m.st.orders[id] }
func (m *memStore) orderCount() int             { return len(m.st.orders) }
func (m *memStore) lineCount() int              { return len(m.st.lines) }
func (m *memStore) logFor(id int64) []domain.StatusLogEntry {
	var out []domain.StatusLogEntry
	for _, e := range m.st.log {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++
	work := m.st.clone()
	if err := fn(&memTx{st: &work, now: m.now}); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (m *memStore) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderView
	for _, o := range m.st.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		o.Lines = m.linesOf(o.ID)
		c, w := m.st.users[o.CashierID], m.st.users[o.WaiterID]
		out = append(out, domain.OrderView{
			Order:   o,
			Cashier: domain.UserSummary{ID: c.ID, Name: c.Name, Email: c.Email},
			Waiter:  domain.UserSummary{ID: w.ID, Name: w.Name, Email: w.Email},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) linesOf(orderID int64) []domain.OrderLine {
	var out []domain.OrderLine
	for _, l := range m.st.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) GetOrder(_ context.Context, id int64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o.Lines = m.linesOf(id)
	return o, nil
}

func (m *memStore) Timeline(_ context.Context, orderID int64, limit, offset int) ([]domain.StatusLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.logFor(orderID)
	if offset >= len(all) {
		return []domain.StatusLogEntry{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) ExpirePending(_ context.Context, cutoff, at time.Time, changedBy string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.st.orders {
		if o.Status == domain.StatusPending && !o.CreatedAt.After(cutoff) {
			o.Status = domain.StatusExpired
			m.st.orders[id] = o
			m.st.log = append(m.st.log, domain.StatusLogEntry{OrderID: id, Status: domain.StatusExpired, ChangedBy: changedBy, ChangedAt: at})
			n++
		}
	}
	return n, nil
}

type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) LockOrder(_ context.Context, id int64) (domain.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) Lines(_ context.Context, orderID int64) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	for _, l := range t.st.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) GetItem(_ context.Context, id int64) (domain.Item, error) {
	it, ok := t.st.items[id]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return it, nil
}

func (t *memTx) LockItems(_ context.Context, ids []int64) (map[int64]domain.Item, error) {
	out := map[int64]domain.Item{}
	for _, id := range ids {
		if it, ok := t.st.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (t *memTx) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) error {
	t.st.nextOrder++
	o.ID = t.st.nextOrder
	o.CreatedAt, o.UpdatedAt = t.now(), t.now()
	saved := *o
	saved.Lines = nil
	t.st.orders[o.ID] = saved
	return nil
}

func (t *memTx) InsertLine(_ context.Context, l *domain.OrderLine) error {
	if _, ok := t.st.orders[l.OrderID]; !ok {
		return errors.New("fk violation: order")
	}
	t.st.nextLine++
	l.ID = t.st.nextLine
	l.CreatedAt = t.now()
	t.st.lines = append(t.st.lines, *l)
	return nil
}

func (t *memTx) DeleteLine(_ context.Context, lineID int64) error {
	for i, l := range t.st.lines {
		if l.ID == lineID {
			t.st.lines = append(t.st.lines[:i:i], t.st.lines[i+1:]...)
			return nil
		}
	}
	return errors.New("line vanished")
}

func (t *memTx) UpdateTotal(_ context.Context, orderID int64, total decimal.Decimal) error {
	o := t.st.orders[orderID]
	o.TotalCost = total
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, orderID int64, status domain.OrderStatus) error {
	o := t.st.orders[orderID]
	o.Status = status
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) SetStock(_ context.Context, itemID int64, stock int) error {
	if stock < 0 {
		return errors.New("check constraint: stock_quantity")
	}
	it := t.st.items[itemID]
	it.StockQuantity = stock
	t.st.items[itemID] = it
	return nil
}

func (t *memTx) AppendStatusLog(_ context.Context, e domain.StatusLogEntry) error {
	t.st.log = append(t.st.log, e)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
