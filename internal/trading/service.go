package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"brokerd/internal/logger"
	"brokerd/internal/store/gormstore"
	storemodel "brokerd/internal/store/model"
)

var (
	ErrNoPrice         = errors.New("no cached price for symbol")
	ErrInvalidQuantity = errors.New("quantity below instrument minimum")
)

// PriceQuoter supplies the synthetic execution price: the close of the most
// recently cached candle for a symbol.
type PriceQuoter interface {
	LatestClose(ctx context.Context, symbol string) (float64, bool, error)
}

// Service implements the broker-operations CRUD over trading entities and
// immediate synthetic execution of market orders.
type Service struct {
	store  *gormstore.GormStore
	quotes PriceQuoter
}

func NewService(store *gormstore.GormStore, quotes PriceQuoter) *Service {
	return &Service{store: store, quotes: quotes}
}

type PlaceOrderRequest struct {
	AccountID int64                `json:"account_id" binding:"required"`
	Symbol    string               `json:"symbol" binding:"required"`
	Type      storemodel.OrderType `json:"order_type" binding:"required"`
	Side      storemodel.OrderSide `json:"side" binding:"required"`
	Quantity  float64              `json:"quantity" binding:"required"`
	Price     float64              `json:"price"`
}

// PlaceOrder validates the referential checks, persists the order, and for
// market orders executes immediately at the latest cached close price,
// recording the trade and updating the position and account balance in one
// transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (storemodel.OrderModel, error) {
	account, err := s.store.Account(ctx, req.AccountID)
	if err != nil {
		return storemodel.OrderModel{}, fmt.Errorf("account %d: %w", req.AccountID, err)
	}
	instrument, err := s.store.InstrumentBySymbol(ctx, req.Symbol)
	if err != nil {
		return storemodel.OrderModel{}, fmt.Errorf("instrument %s: %w", req.Symbol, err)
	}
	if req.Quantity < instrument.MinQuantity {
		return storemodel.OrderModel{}, fmt.Errorf("%w: %v < %v", ErrInvalidQuantity, req.Quantity, instrument.MinQuantity)
	}

	raw, _ := json.Marshal(req)
	order := storemodel.OrderModel{
		ClientID:     uuid.NewString(),
		AccountID:    account.ID,
		InstrumentID: instrument.ID,
		Type:         req.Type,
		Side:         req.Side,
		Quantity:     req.Quantity,
		Price:        req.Price,
		Status:       storemodel.OrderStatusPending,
		RawRequest:   raw,
	}
	if err := s.store.CreateOrder(ctx, &order); err != nil {
		return storemodel.OrderModel{}, err
	}

	if req.Type != storemodel.OrderTypeMarket {
		return order, nil
	}

	price, ok, err := s.quotes.LatestClose(ctx, req.Symbol)
	if err != nil {
		return storemodel.OrderModel{}, err
	}
	if !ok || price <= 0 {
		order.Status = storemodel.OrderStatusRejected
		if err := s.store.UpdateOrder(ctx, &order); err != nil {
			return storemodel.OrderModel{}, err
		}
		return order, fmt.Errorf("%w: %s", ErrNoPrice, req.Symbol)
	}
	if err := s.execute(ctx, &order, account, price); err != nil {
		return storemodel.OrderModel{}, err
	}
	return order, nil
}

// execute fills the whole order at the given price inside one transaction.
func (s *Service) execute(ctx context.Context, order *storemodel.OrderModel, account storemodel.AccountModel, price float64) error {
	err := s.store.Transaction(ctx, func(tx *gormstore.GormStore) error {
		trade := storemodel.TradeModel{
			OrderID:      order.ID,
			AccountID:    order.AccountID,
			InstrumentID: order.InstrumentID,
			Side:         order.Side,
			Quantity:     order.Quantity,
			Price:        price,
		}
		if err := tx.CreateTrade(ctx, &trade); err != nil {
			return err
		}

		position, err := tx.Position(ctx, order.AccountID, order.InstrumentID)
		if err != nil && !errors.Is(err, gormstore.ErrNotFound) {
			return err
		}
		realized := applyFill(&position, order.Side, order.Quantity, price)
		position.AccountID = order.AccountID
		position.InstrumentID = order.InstrumentID
		if err := tx.SavePosition(ctx, &position); err != nil {
			return err
		}
		if !realized.IsZero() {
			balance := decimal.NewFromFloat(account.Balance).Add(realized)
			bal, _ := balance.Float64()
			if err := tx.UpdateAccountBalance(ctx, account.ID, bal); err != nil {
				return err
			}
		}

		order.Status = storemodel.OrderStatusFilled
		order.FilledQty = order.Quantity
		order.AvgFillPrice = price
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return err
	}
	logger.Infof("order %s filled: %s %v %s @ %v", order.ClientID, order.Side, order.Quantity, orderSymbol(order), price)
	return nil
}

func orderSymbol(o *storemodel.OrderModel) string {
	return fmt.Sprintf("instrument#%d", o.InstrumentID)
}

// applyFill folds one fill into the position with decimal arithmetic and
// returns the realized P&L (non-zero only when the fill reduces exposure).
func applyFill(p *storemodel.PositionModel, side storemodel.OrderSide, quantity, price float64) decimal.Decimal {
	qty := decimal.NewFromFloat(p.Quantity)
	avg := decimal.NewFromFloat(p.AveragePrice)
	fill := decimal.NewFromFloat(quantity)
	px := decimal.NewFromFloat(price)

	signed := fill
	if side == storemodel.OrderSideSell {
		signed = fill.Neg()
	}
	realized := decimal.Zero

	sameDirection := qty.IsZero() || qty.Sign() == signed.Sign()
	if sameDirection {
		// Extending exposure: recompute the weighted average entry.
		newQty := qty.Add(signed)
		if !newQty.IsZero() {
			notional := avg.Mul(qty.Abs()).Add(px.Mul(fill))
			avg = notional.Div(qty.Abs().Add(fill))
		}
		qty = newQty
	} else {
		closed := decimal.Min(qty.Abs(), fill)
		diff := px.Sub(avg)
		if qty.Sign() < 0 {
			diff = diff.Neg()
		}
		realized = diff.Mul(closed)
		qty = qty.Add(signed)
		if qty.IsZero() {
			avg = decimal.Zero
		} else if qty.Sign() == signed.Sign() {
			// Flipped through zero: the remainder opens at the fill price.
			avg = px
		}
	}

	p.Quantity, _ = qty.Float64()
	p.AveragePrice, _ = avg.Float64()
	rp := decimal.NewFromFloat(p.RealizedPnL).Add(realized)
	p.RealizedPnL, _ = rp.Float64()
	return realized
}

func (s *Service) CreateAccount(ctx context.Context, name, accountType, currency string, balance float64) (storemodel.AccountModel, error) {
	if accountType == "" {
		accountType = "practice"
	}
	if currency == "" {
		currency = "USD"
	}
	account := storemodel.AccountModel{
		Name:        name,
		AccountType: accountType,
		Balance:     balance,
		Currency:    currency,
	}
	if err := s.store.CreateAccount(ctx, &account); err != nil {
		return storemodel.AccountModel{}, err
	}
	return account, nil
}

func (s *Service) Accounts(ctx context.Context) ([]storemodel.AccountModel, error) {
	return s.store.ListAccounts(ctx)
}

func (s *Service) Account(ctx context.Context, id int64) (storemodel.AccountModel, error) {
	return s.store.Account(ctx, id)
}

func (s *Service) Instruments(ctx context.Context) ([]storemodel.InstrumentModel, error) {
	return s.store.ListInstruments(ctx)
}

func (s *Service) Orders(ctx context.Context, accountID int64) ([]storemodel.OrderModel, error) {
	return s.store.ListOrders(ctx, accountID)
}

func (s *Service) Positions(ctx context.Context, accountID int64) ([]storemodel.PositionModel, error) {
	return s.store.ListPositions(ctx, accountID)
}

func (s *Service) Trades(ctx context.Context, accountID int64) ([]storemodel.TradeModel, error) {
	return s.store.ListTrades(ctx, accountID)
}
