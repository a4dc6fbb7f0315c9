package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger/internal/schema"
	"ledger/pkg/exception"
)

const bankRowID = 1

// amount stores a uint64 in a numeric(20,0) column. database/sql does not
// accept uint64 values with the high bit set, so it travels as text.
type amount uint64

func (a amount) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

func (a *amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		if v < 0 {
			return fmt.Errorf("negative amount %d", v)
		}
		*a = amount(v)
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	default:
		return fmt.Errorf("unsupported amount type %T", src)
	}
	return nil
}

func (a *amount) parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*a = amount(v)
	return nil
}

type bankRow struct {
	ID            int    `gorm:"primaryKey;autoIncrement:false"`
	Admin         []byte `gorm:"type:bytea;not null"`
	Balance       amount `gorm:"type:numeric(20,0);not null"`
	StakedBalance amount `gorm:"type:numeric(20,0);not null"`
	LentBalance   amount `gorm:"type:numeric(20,0);not null"`
	TotalUsers    amount `gorm:"type:numeric(20,0);not null"`
	IsOperational bool   `gorm:"not null"`
}

func (bankRow) TableName() string { return "ledger_bank" }

type userRow struct {
	Owner         []byte  `gorm:"type:bytea;primaryKey"`
	Balance       amount  `gorm:"type:numeric(20,0);not null"`
	StakedBalance amount  `gorm:"type:numeric(20,0);not null"`
	StakeSlot     amount  `gorm:"type:numeric(20,0);not null"`
	LoanPrincipal *amount `gorm:"type:numeric(20,0)"`
	LoanTimestamp *int64
}

func (userRow) TableName() string { return "ledger_users" }

func toBankRow(b schema.Bank) bankRow {
	return bankRow{
		ID:            bankRowID,
		Admin:         append([]byte(nil), b.Admin[:]...),
		Balance:       amount(b.Balance),
		StakedBalance: amount(b.StakedBalance),
		LentBalance:   amount(b.LentBalance),
		TotalUsers:    amount(b.TotalUsers),
		IsOperational: b.IsOperational,
	}
}

func (r bankRow) record() (schema.Bank, error) {
	admin, err := schema.IdentityFromBytes(r.Admin)
	if err != nil {
		return schema.Bank{}, errors.Wrap(err, "decode bank admin")
	}
	return schema.Bank{
		Admin:         admin,
		Balance:       uint64(r.Balance),
		StakedBalance: uint64(r.StakedBalance),
		LentBalance:   uint64(r.LentBalance),
		TotalUsers:    uint64(r.TotalUsers),
		IsOperational: r.IsOperational,
	}, nil
}

func toUserRow(u schema.User) userRow {
	row := userRow{
		Owner:         append([]byte(nil), u.Owner[:]...),
		Balance:       amount(u.Balance),
		StakedBalance: amount(u.StakedBalance),
		StakeSlot:     amount(u.StakeSlot),
	}
	if u.Loan != nil {
		principal := amount(u.Loan.Principal)
		ts := u.Loan.Timestamp
		row.LoanPrincipal = &principal
		row.LoanTimestamp = &ts
	}
	return row
}

func (r userRow) record() (schema.User, error) {
	owner, err := schema.IdentityFromBytes(r.Owner)
	if err != nil {
		return schema.User{}, errors.Wrap(err, "decode user owner")
	}
	u := schema.User{
		Owner:         owner,
		Balance:       uint64(r.Balance),
		StakedBalance: uint64(r.StakedBalance),
		StakeSlot:     uint64(r.StakeSlot),
	}
	if r.LoanPrincipal != nil {
		u.Loan = &schema.Loan{Principal: uint64(*r.LoanPrincipal)}
		if r.LoanTimestamp != nil {
			u.Loan.Timestamp = *r.LoanTimestamp
		}
	}
	return u, nil
}

// Postgres keeps records in two tables, one row for the bank and one per user.
// Update runs inside a single SQL transaction that locks the user rows in
// owner order and the bank row last with SELECT ... FOR UPDATE.
type Postgres struct {
	db     *gorm.DB
	closed uint32
}

var _ Store = (*Postgres)(nil)

// NewPostgres migrates the ledger tables and returns the store. The caller
// keeps ownership of db.
func NewPostgres(ctx context.Context, db *gorm.DB) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("nil gorm db")
	}
	if err := db.WithContext(ctx).AutoMigrate(&bankRow{}, &userRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate ledger tables")
	}
	return &Postgres{db: db}, nil
}

// Update implements Store.
func (p *Postgres) Update(ctx context.Context, keys Keys, fn func(Tx) error) error {
	if atomic.LoadUint32(&p.closed) != 0 {
		return exception.ErrStoreClosed
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := p.load(tx, keys, true)
		if err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.persist(tx, state)
	})
}

// View implements Store.
func (p *Postgres) View(ctx context.Context, keys Keys, fn func(Tx) error) error {
	if atomic.LoadUint32(&p.closed) != 0 {
		return exception.ErrStoreClosed
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := p.load(tx, keys, false)
		if err != nil {
			return err
		}
		return fn(state)
	})
}

// Close rejects further operations. The connection pool is closed by its owner.
func (p *Postgres) Close() error {
	atomic.StoreUint32(&p.closed, 1)
	return nil
}

func (p *Postgres) load(tx *gorm.DB, keys Keys, lock bool) (*txState, error) {
	state := newTxState(keys)

	query := func() *gorm.DB {
		if lock {
			return tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return tx
	}

	if ids := keys.Sorted(); len(ids) > 0 {
		owners := make([][]byte, len(ids))
		for i := range ids {
			owners[i] = append([]byte(nil), ids[i][:]...)
		}
		var rows []userRow
		if err := query().Where("owner IN ?", owners).Order("owner").Find(&rows).Error; err != nil {
			return nil, errors.Wrap(err, "load users").With("count", len(owners))
		}
		for _, row := range rows {
			u, err := row.record()
			if err != nil {
				return nil, err
			}
			state.loadUser(u)
		}
	}

	if keys.Bank {
		var rows []bankRow
		if err := query().Where("id = ?", bankRowID).Limit(1).Find(&rows).Error; err != nil {
			return nil, errors.Wrap(err, "load bank")
		}
		if len(rows) > 0 {
			bank, err := rows[0].record()
			if err != nil {
				return nil, err
			}
			state.loadBank(&bank)
		}
	}

	return state, nil
}

// persist writes the staged changes. Records that were absent at load time
// hold no row lock, so they are inserted with ON CONFLICT DO NOTHING: a row
// that a concurrent unit committed in the meantime leaves nothing affected
// and the unit fails instead of overwriting it.
func (p *Postgres) persist(tx *gorm.DB, state *txState) error {
	c := state.writes()

	for _, u := range c.Inserts {
		row := toUserRow(u)
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return errors.Wrap(res.Error, "insert user").With("owner", u.Owner.String())
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(exception.ErrUserAlreadyExists, "owner %s", u.Owner)
		}
	}
	for _, u := range c.Updates {
		row := toUserRow(u)
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return errors.Wrap(err, "save user").With("owner", u.Owner.String())
		}
	}
	for _, id := range c.Deletes {
		if err := tx.Where("owner = ?", id[:]).Delete(&userRow{}).Error; err != nil {
			return errors.Wrap(err, "delete user").With("owner", id.String())
		}
	}
	if c.Bank != nil {
		row := toBankRow(*c.Bank)
		if c.NewBank {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return errors.Wrap(res.Error, "insert bank")
			}
			if res.RowsAffected == 0 {
				return exception.ErrBankAlreadyInitialized
			}
		} else if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return errors.Wrap(err, "save bank")
		}
	}
	return nil
}
