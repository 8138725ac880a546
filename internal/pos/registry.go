// Package pos keeps the open registers of the running server. Each register
// owns one checkout session; cart snapshots survive restarts in a bbolt file.
package pos

import (
	"context"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/sales"
	"github.com/velvetpos/velvetpos/pkg/common"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var bucketRegisters = []byte("registers")

var ErrRegisterNotFound = errors.New("register not found")

// Binder turns a sale scope into the submitter a session checks out through.
type Binder interface {
	Bind(scope sales.Scope) checkout.Submitter
}

// Register is one open till.
type Register struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	StaffID   string    `json:"staff_id"`
	StaffName string    `json:"staff_name"`
	OpenedAt  time.Time `json:"opened_at"`

	Session *checkout.Session `json:"-"`
}

func (r *Register) scope() sales.Scope {
	return sales.Scope{StoreID: r.StoreID, StaffID: r.StaffID, StaffName: r.StaffName}
}

type record struct {
	Register
	Snapshot checkout.Snapshot `json:"snapshot"`
}

type Registry struct {
	mu        sync.RWMutex
	registers map[string]*Register
	db        *bbolt.DB
	binder    Binder
	rates     sales.TaxRates
}

// NewRegistry opens the snapshot file and restores the registers found in it.
func NewRegistry(path string, binder Binder, rates sales.TaxRates) (*Registry, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open register store")
	}
	r := &Registry{
		registers: make(map[string]*Register),
		db:        db,
		binder:    binder,
		rates:     rates,
	}
	if err := r.restore(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Registry) restore() error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketRegisters)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				zap.L().Warn("discard unreadable register snapshot", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			reg := rec.Register
			reg.Session = checkout.Restore(rec.Snapshot, r.binder.Bind(reg.scope()),
				checkout.WithTaxRate(r.rates.TaxRate(reg.StoreID)))
			r.registers[reg.ID] = &reg
			return nil
		})
	})
}

// Open starts a new register for a cashier.
func (r *Registry) Open(scope sales.Scope) (*Register, error) {
	reg := &Register{
		ID:        common.UUID(),
		StoreID:   scope.StoreID,
		StaffID:   scope.StaffID,
		StaffName: scope.StaffName,
		OpenedAt:  time.Now(),
	}
	reg.Session = checkout.NewSession(r.binder.Bind(scope),
		checkout.WithTaxRate(r.rates.TaxRate(scope.StoreID)),
		checkout.WithStaffName(scope.StaffName))

	if err := r.save(reg); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.registers[reg.ID] = reg
	r.mu.Unlock()
	zap.L().Info("register opened",
		zap.String("register_id", reg.ID),
		zap.String("store_id", reg.StoreID),
		zap.String("staff", reg.StaffName))
	return reg, nil
}

// Get returns a register of the store.
func (r *Registry) Get(storeID, id string) (*Register, error) {
	r.mu.RLock()
	reg, ok := r.registers[id]
	r.mu.RUnlock()
	if !ok || reg.StoreID != storeID {
		return nil, ErrRegisterNotFound
	}
	return reg, nil
}

// List returns the open registers of a store, oldest first.
func (r *Registry) List(storeID string) []*Register {
	r.mu.RLock()
	out := make([]*Register, 0, len(r.registers))
	for _, reg := range r.registers {
		if reg.StoreID == storeID {
			out = append(out, reg)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Mutate applies fn to the register's session and persists the result.
// A failing fn leaves the stored snapshot untouched.
func (r *Registry) Mutate(storeID, id string, fn func(*checkout.Session) error) (*Register, error) {
	reg, err := r.Get(storeID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(reg.Session); err != nil {
		return reg, err
	}
	return reg, r.save(reg)
}

// Checkout submits the register's sale and persists the cleared cart.
func (r *Registry) Checkout(ctx context.Context, storeID, id string) (*Register, *checkout.Result, error) {
	reg, err := r.Get(storeID, id)
	if err != nil {
		return nil, nil, err
	}
	res, err := reg.Session.Checkout(ctx)
	if err != nil {
		return reg, res, err
	}
	return reg, res, r.save(reg)
}

// Close discards a register and its cart.
func (r *Registry) Close(storeID, id string) error {
	if _, err := r.Get(storeID, id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.registers, id)
	r.mu.Unlock()
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegisters).Delete([]byte(id))
	})
}

func (r *Registry) save(reg *Register) error {
	data, err := json.Marshal(record{Register: *reg, Snapshot: reg.Session.Snapshot()})
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketRegisters)
		if err != nil {
			return err
		}
		return b.Put([]byte(reg.ID), data)
	})
}

// Shutdown persists every open register and closes the snapshot file.
func (r *Registry) Shutdown() error {
	r.mu.RLock()
	regs := make([]*Register, 0, len(r.registers))
	for _, reg := range r.registers {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()
	for _, reg := range regs {
		if err := r.save(reg); err != nil {
			zap.L().Error("persist register failed", zap.String("register_id", reg.ID), zap.Error(err))
		}
	}
	return r.db.Close()
}
