package model

import "gorm.io/datatypes"

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

type InstrumentType string

const (
	InstrumentTypeForex  InstrumentType = "forex"
	InstrumentTypeCrypto InstrumentType = "crypto"
)

type AccountModel struct {
	ID            int64   `gorm:"column:id;primaryKey" json:"id"`
	Name          string  `gorm:"column:name;uniqueIndex" json:"name"`
	AccountType   string  `gorm:"column:account_type" json:"account_type"`
	Balance       float64 `gorm:"column:balance" json:"balance"`
	Currency      string  `gorm:"column:currency" json:"currency"`
	CreatedAtUnix int64   `gorm:"column:created_at" json:"created_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at" json:"updated_at"`
}

func (AccountModel) TableName() string { return "accounts" }

type InstrumentModel struct {
	ID            int64          `gorm:"column:id;primaryKey" json:"id"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex" json:"symbol"`
	Name          string         `gorm:"column:name" json:"name"`
	Type          InstrumentType `gorm:"column:instrument_type" json:"instrument_type"`
	BaseCurrency  string         `gorm:"column:base_currency" json:"base_currency"`
	QuoteCurrency string         `gorm:"column:quote_currency" json:"quote_currency"`
	MinQuantity   float64        `gorm:"column:min_quantity" json:"min_quantity"`
	TickSize      float64        `gorm:"column:tick_size" json:"tick_size"`
	IsActive      bool           `gorm:"column:is_active" json:"is_active"`
	CreatedAtUnix int64          `gorm:"column:created_at" json:"created_at"`
}

func (InstrumentModel) TableName() string { return "instruments" }

// OrderModel references account and instrument by identifier only; lookups
// go through the store, never a traversable object graph.
type OrderModel struct {
	ID            int64          `gorm:"column:id;primaryKey" json:"id"`
	ClientID      string         `gorm:"column:client_id;uniqueIndex" json:"client_id"`
	AccountID     int64          `gorm:"column:account_id;index" json:"account_id"`
	InstrumentID  int64          `gorm:"column:instrument_id;index" json:"instrument_id"`
	Type          OrderType      `gorm:"column:order_type" json:"order_type"`
	Side          OrderSide      `gorm:"column:side" json:"side"`
	Quantity      float64        `gorm:"column:quantity" json:"quantity"`
	Price         float64        `gorm:"column:price" json:"price,omitempty"`
	Status        OrderStatus    `gorm:"column:status;index" json:"status"`
	FilledQty     float64        `gorm:"column:filled_quantity" json:"filled_quantity"`
	AvgFillPrice  float64        `gorm:"column:average_fill_price" json:"average_fill_price"`
	RawRequest    datatypes.JSON `gorm:"column:raw_request;type:TEXT" json:"-"`
	CreatedAtUnix int64          `gorm:"column:created_at" json:"created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at" json:"updated_at"`
}

func (OrderModel) TableName() string { return "orders" }

type PositionModel struct {
	ID            int64   `gorm:"column:id;primaryKey" json:"id"`
	AccountID     int64   `gorm:"column:account_id;uniqueIndex:idx_position_key,priority:1" json:"account_id"`
	InstrumentID  int64   `gorm:"column:instrument_id;uniqueIndex:idx_position_key,priority:2" json:"instrument_id"`
	Quantity      float64 `gorm:"column:quantity" json:"quantity"`
	AveragePrice  float64 `gorm:"column:average_price" json:"average_price"`
	RealizedPnL   float64 `gorm:"column:realized_pnl" json:"realized_pnl"`
	CreatedAtUnix int64   `gorm:"column:created_at" json:"created_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at" json:"updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

type TradeModel struct {
	ID            int64     `gorm:"column:id;primaryKey" json:"id"`
	OrderID       int64     `gorm:"column:order_id;index" json:"order_id"`
	AccountID     int64     `gorm:"column:account_id;index" json:"account_id"`
	InstrumentID  int64     `gorm:"column:instrument_id;index" json:"instrument_id"`
	Side          OrderSide `gorm:"column:side" json:"side"`
	Quantity      float64   `gorm:"column:quantity" json:"quantity"`
	Price         float64   `gorm:"column:price" json:"price"`
	CreatedAtUnix int64     `gorm:"column:created_at" json:"created_at"`
}

func (TradeModel) TableName() string { return "trades" }
