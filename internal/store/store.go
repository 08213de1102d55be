// Package store реализует локальное хранилище сущностей лаборатории: зеркало
// удалённых таблиц в памяти, CRUD с откатом на локальное состояние при ошибке
// удалённой записи и согласование с уведомлениями об изменениях.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mmeshcher/dental-lab/internal/model"
)

// Gateway описывает удалённое хранилище, в которое записываются изменения.
type Gateway interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
	InsertDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error)
	UpdateDoctor(ctx context.Context, d model.Doctor) (model.Doctor, error)
	DeleteDoctor(ctx context.Context, id int64) error
	InsertPatient(ctx context.Context, p model.Patient) (model.Patient, error)
	InsertProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	InsertTechnician(ctx context.Context, t model.Technician) (model.Technician, error)
	DeleteTechnician(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	UpdateOrder(ctx context.Context, o model.Order) (model.Order, error)
	UpdateOrderState(ctx context.Context, id int64, st model.OrderState) (time.Time, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Feed доставляет уведомления об изменениях удалённых таблиц.
// Subscribe блокируется до отмены контекста.
type Feed interface {
	Subscribe(ctx context.Context, tables []string, handle func(model.Change)) error
}

type revKey struct {
	table string
	id    int64
}

// revision фиксирует последнюю локальную запись сущности.
type revision struct {
	seq     uint64
	at      time.Time
	deleted bool
}

// Store хранит коллекции врачей, пациентов, изделий, техников и заказов.
type Store struct {
	gw     Gateway
	logger *zap.Logger
	now    func() time.Time
	ids    *snowflake.Node

	mu          sync.Mutex
	doctors     map[int64]model.Doctor
	patients    map[int64]model.Patient
	products    map[int64]model.Product
	technicians map[int64]model.Technician
	orders      map[int64]model.Order
	revs        map[revKey]revision
	revSeq      uint64

	noticeMu sync.Mutex
	notices  []Notice
}

type options struct {
	now    func() time.Time
	nodeID int64
}

// Option настраивает Store.
type Option func(*options)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNodeID задаёт номер узла генератора локальных идентификаторов.
func WithNodeID(id int64) Option {
	return func(o *options) { o.nodeID = id }
}

// New создаёт хранилище. При gw == nil все операции выполняются только в памяти.
func New(gw Gateway, logger *zap.Logger, opts ...Option) (*Store, error) {
	o := options{now: time.Now, nodeID: 1}
	for _, opt := range opts {
		opt(&o)
	}

	node, err := snowflake.NewNode(o.nodeID)
	if err != nil {
		return nil, fmt.Errorf("create id node: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		gw:          gw,
		logger:      logger,
		now:         func() time.Time { return o.now().UTC() },
		ids:         node,
		doctors:     make(map[int64]model.Doctor),
		patients:    make(map[int64]model.Patient),
		products:    make(map[int64]model.Product),
		technicians: make(map[int64]model.Technician),
		orders:      make(map[int64]model.Order),
		revs:        make(map[revKey]revision),
	}, nil
}

// Remote сообщает, подключено ли удалённое хранилище.
func (s *Store) Remote() bool {
	return s.gw != nil
}

func (s *Store) localID() int64 {
	return s.ids.Generate().Int64()
}

// touch отмечает локальную запись сущности. Вызывается под s.mu.
func (s *Store) touch(table string, id int64, at time.Time) {
	if at.IsZero() {
		at = s.now()
	}
	s.revSeq++
	s.revs[revKey{table, id}] = revision{seq: s.revSeq, at: at}
}

// bury отмечает удаление сущности. Вызывается под s.mu.
func (s *Store) bury(table string, id int64) {
	s.revSeq++
	s.revs[revKey{table, id}] = revision{seq: s.revSeq, at: s.now(), deleted: true}
}

// stale сообщает, что уведомление старше последней локальной записи
// либо относится к удалённой сущности. Вызывается под s.mu.
func (s *Store) stale(table string, id int64, updatedAt time.Time) bool {
	rev, ok := s.revs[revKey{table, id}]
	if !ok {
		return false
	}
	if rev.deleted {
		return true
	}
	return !updatedAt.IsZero() && updatedAt.Before(rev.at)
}

// revive снимает отметку об удалении с сущности, которая снова пришла из
// удалённого хранилища. Вызывается под s.mu.
func (s *Store) revive(table string, id int64) {
	key := revKey{table, id}
	if rev, ok := s.revs[key]; ok && rev.deleted {
		delete(s.revs, key)
	}
}

// Revision возвращает номер последней локальной записи сущности.
func (s *Store) Revision(table string, id int64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, ok := s.revs[revKey{table, id}]
	return rev.seq, ok
}

// Load заменяет локальные коллекции содержимым удалённого хранилища.
func (s *Store) Load(ctx context.Context) error {
	if s.gw == nil {
		return nil
	}

	snap, err := s.gw.Snapshot(ctx)
	if err != nil {
		s.warn("Failed to load data from the database, using local data.", zap.Error(err))
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doctors = make(map[int64]model.Doctor, len(snap.Doctors))
	for _, d := range snap.Doctors {
		d.Patients = nil
		s.doctors[d.ID] = d
		s.revive(model.TableDoctors, d.ID)
	}
	s.patients = make(map[int64]model.Patient, len(snap.Patients))
	for _, p := range snap.Patients {
		s.patients[p.ID] = p
		s.revive(model.TablePatients, p.ID)
	}
	s.products = make(map[int64]model.Product, len(snap.Products))
	for _, p := range snap.Products {
		s.products[p.ID] = p
		s.revive(model.TableProducts, p.ID)
	}
	s.technicians = make(map[int64]model.Technician, len(snap.Technicians))
	for _, t := range snap.Technicians {
		s.technicians[t.ID] = t
		s.revive(model.TableTechnicians, t.ID)
	}

	linesByOrder := make(map[int64][]model.LineItem)
	for _, l := range snap.Lines {
		linesByOrder[l.OrderID] = append(linesByOrder[l.OrderID], l)
		s.revive(model.TableOrderLines, l.ID)
	}

	s.orders = make(map[int64]model.Order, len(snap.Orders))
	for _, o := range snap.Orders {
		o.Lines = linesByOrder[o.ID]
		if o.Status == "" {
			o.Status = model.StatusForDeadline(o.Deadline, s.now())
		}
		s.putOrderLocked(o)
		s.revive(model.TableOrders, o.ID)
	}

	s.logger.Info("data loaded",
		zap.Int("doctors", len(s.doctors)),
		zap.Int("patients", len(s.patients)),
		zap.Int("products", len(s.products)),
		zap.Int("technicians", len(s.technicians)),
		zap.Int("orders", len(s.orders)),
	)
	return nil
}

// Sync подписывается на изменения всех таблиц и применяет их до отмены контекста.
func (s *Store) Sync(ctx context.Context, feed Feed) error {
	return feed.Subscribe(ctx, model.Tables, func(ch model.Change) {
		if err := s.Apply(ch); err != nil {
			s.logger.Error("apply change error", zap.String("table", ch.Table), zap.String("type", string(ch.Type)), zap.Error(err))
		}
	})
}

// Doctors возвращает врачей с их пациентами, отсортированных по имени.
func (s *Store) Doctors() []model.Doctor {
	s.mu.Lock()
	byDoctor := make(map[int64][]model.Patient)
	for _, p := range s.patients {
		byDoctor[p.DoctorID] = append(byDoctor[p.DoctorID], p)
	}
	out := make([]model.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		d.Patients = byDoctor[d.ID]
		out = append(out, d)
	}
	s.mu.Unlock()

	c := newCollator()
	for i := range out {
		sortByName(c, out[i].Patients, func(p model.Patient) string { return p.Name })
	}
	sortByName(c, out, func(d model.Doctor) string { return d.Name })
	return out
}

// Patients возвращает всех пациентов, отсортированных по имени.
func (s *Store) Patients() []model.Patient {
	s.mu.Lock()
	out := make([]model.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	s.mu.Unlock()

	sortByName(newCollator(), out, func(p model.Patient) string { return p.Name })
	return out
}

// Products возвращает изделия, отсортированные по имени.
func (s *Store) Products() []model.Product {
	s.mu.Lock()
	out := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	s.mu.Unlock()

	sortByName(newCollator(), out, func(p model.Product) string { return p.Name })
	return out
}

// Technicians возвращает техников, отсортированных по имени.
func (s *Store) Technicians() []model.Technician {
	s.mu.Lock()
	out := make([]model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		out = append(out, t)
	}
	s.mu.Unlock()

	sortByName(newCollator(), out, func(t model.Technician) string { return t.Name })
	return out
}

// Orders возвращает заказы по возрастанию идентификатора. Статус незавершённых
// заказов вычисляется по сроку на момент чтения.
func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	now := s.now()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, s.viewLocked(o, now))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order возвращает заказ по идентификатору.
func (s *Store) Order(id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %d: %w", id, model.ErrNotFound)
	}
	return s.viewLocked(o, s.now()), nil
}

func (s *Store) viewLocked(o model.Order, now time.Time) model.Order {
	c := o.Clone()
	if c.Status != model.OrderStatusFinalized {
		c.Status = model.StatusForDeadline(c.Deadline, now)
	}
	return c
}

func newCollator() *collate.Collator {
	return collate.New(language.Romanian, collate.IgnoreCase)
}

// sortByName сортирует по имени с учётом правил румынского языка.
func sortByName[T any](c *collate.Collator, items []T, name func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(name(items[i]), name(items[j])) < 0
	})
}
