package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	storemodel "brokerd/internal/store/model"
)

func (s *GormStore) CreateAccount(ctx context.Context, a *storemodel.AccountModel) error {
	now := nowUnix()
	a.CreatedAtUnix = now
	a.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) Account(ctx context.Context, id int64) (storemodel.AccountModel, error) {
	var a storemodel.AccountModel
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return a, ErrNotFound
	}
	return a, err
}

func (s *GormStore) ListAccounts(ctx context.Context) ([]storemodel.AccountModel, error) {
	var out []storemodel.AccountModel
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateAccountBalance(ctx context.Context, id int64, balance float64) error {
	return s.db.WithContext(ctx).Model(&storemodel.AccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"balance": balance, "updated_at": nowUnix()}).Error
}

// SeedInstruments upserts the given instruments by symbol; existing rows
// are left untouched.
func (s *GormStore) SeedInstruments(ctx context.Context, instruments []storemodel.InstrumentModel) error {
	if len(instruments) == 0 {
		return nil
	}
	now := nowUnix()
	for i := range instruments {
		instruments[i].CreatedAtUnix = now
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "symbol"}}, DoNothing: true}).
		Create(&instruments).Error
}

func (s *GormStore) Instrument(ctx context.Context, id int64) (storemodel.InstrumentModel, error) {
	var ins storemodel.InstrumentModel
	err := s.db.WithContext(ctx).First(&ins, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ins, ErrNotFound
	}
	return ins, err
}

func (s *GormStore) InstrumentBySymbol(ctx context.Context, symbol string) (storemodel.InstrumentModel, error) {
	var ins storemodel.InstrumentModel
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&ins).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ins, ErrNotFound
	}
	return ins, err
}

func (s *GormStore) ListInstruments(ctx context.Context) ([]storemodel.InstrumentModel, error) {
	var out []storemodel.InstrumentModel
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("symbol").Find(&out).Error
	return out, err
}

func (s *GormStore) CreateOrder(ctx context.Context, o *storemodel.OrderModel) error {
	now := nowUnix()
	o.CreatedAtUnix = now
	o.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Create(o).Error
}

func (s *GormStore) UpdateOrder(ctx context.Context, o *storemodel.OrderModel) error {
	o.UpdatedAtUnix = nowUnix()
	return s.db.WithContext(ctx).Save(o).Error
}

func (s *GormStore) Order(ctx context.Context, id int64) (storemodel.OrderModel, error) {
	var o storemodel.OrderModel
	err := s.db.WithContext(ctx).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return o, ErrNotFound
	}
	return o, err
}

func (s *GormStore) ListOrders(ctx context.Context, accountID int64) ([]storemodel.OrderModel, error) {
	var out []storemodel.OrderModel
	q := s.db.WithContext(ctx).Order("id DESC")
	if accountID > 0 {
		q = q.Where("account_id = ?", accountID)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) Position(ctx context.Context, accountID, instrumentID int64) (storemodel.PositionModel, error) {
	var p storemodel.PositionModel
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND instrument_id = ?", accountID, instrumentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *GormStore) SavePosition(ctx context.Context, p *storemodel.PositionModel) error {
	now := nowUnix()
	if p.ID == 0 {
		p.CreatedAtUnix = now
	}
	p.UpdatedAtUnix = now
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) ListPositions(ctx context.Context, accountID int64) ([]storemodel.PositionModel, error) {
	var out []storemodel.PositionModel
	q := s.db.WithContext(ctx).Order("id")
	if accountID > 0 {
		q = q.Where("account_id = ?", accountID)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) CreateTrade(ctx context.Context, t *storemodel.TradeModel) error {
	t.CreatedAtUnix = nowUnix()
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *GormStore) ListTrades(ctx context.Context, accountID int64) ([]storemodel.TradeModel, error) {
	var out []storemodel.TradeModel
	q := s.db.WithContext(ctx).Order("id DESC")
	if accountID > 0 {
		q = q.Where("account_id = ?", accountID)
	}
	err := q.Find(&out).Error
	return out, err
}
