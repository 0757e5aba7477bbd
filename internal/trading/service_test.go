package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	storemodel "brokerd/internal/store/model"
)

func TestApplyFillOpensLong(t *testing.T) {
	var p storemodel.PositionModel
	realized := applyFill(&p, storemodel.OrderSideBuy, 2, 100)
	assert.True(t, realized.IsZero())
	assert.Equal(t, 2.0, p.Quantity)
	assert.Equal(t, 100.0, p.AveragePrice)
	assert.Equal(t, 0.0, p.RealizedPnL)
}

func TestApplyFillAveragesUp(t *testing.T) {
	p := storemodel.PositionModel{Quantity: 2, AveragePrice: 100}
	realized := applyFill(&p, storemodel.OrderSideBuy, 2, 110)
	assert.True(t, realized.IsZero())
	assert.Equal(t, 4.0, p.Quantity)
	assert.Equal(t, 105.0, p.AveragePrice)
}

func TestApplyFillRealizesOnReduce(t *testing.T) {
	p := storemodel.PositionModel{Quantity: 4, AveragePrice: 105}
	realized := applyFill(&p, storemodel.OrderSideSell, 1, 120)
	assert.Equal(t, "15", realized.String())
	assert.Equal(t, 3.0, p.Quantity)
	assert.Equal(t, 105.0, p.AveragePrice)
	assert.Equal(t, 15.0, p.RealizedPnL)
}

func TestApplyFillClosesFlat(t *testing.T) {
	p := storemodel.PositionModel{Quantity: 3, AveragePrice: 105}
	realized := applyFill(&p, storemodel.OrderSideSell, 3, 100)
	assert.Equal(t, "-15", realized.String())
	assert.Equal(t, 0.0, p.Quantity)
	assert.Equal(t, 0.0, p.AveragePrice)
	assert.Equal(t, -15.0, p.RealizedPnL)
}

func TestApplyFillFlipsThroughZero(t *testing.T) {
	p := storemodel.PositionModel{Quantity: 2, AveragePrice: 90}
	realized := applyFill(&p, storemodel.OrderSideSell, 5, 100)
	// Closed 2 @ +10 each; remaining 3 short opens at the fill price.
	assert.Equal(t, "20", realized.String())
	assert.Equal(t, -3.0, p.Quantity)
	assert.Equal(t, 100.0, p.AveragePrice)
	assert.Equal(t, 20.0, p.RealizedPnL)
}

func TestApplyFillShortSide(t *testing.T) {
	p := storemodel.PositionModel{Quantity: -2, AveragePrice: 100}
	realized := applyFill(&p, storemodel.OrderSideSell, 3, 90)
	assert.True(t, realized.IsZero())
	assert.Equal(t, -5.0, p.Quantity)
	assert.Equal(t, 94.0, p.AveragePrice)

	// Covering part of the short below entry realizes a gain.
	realized = applyFill(&p, storemodel.OrderSideBuy, 2, 84)
	assert.Equal(t, "20", realized.String())
	assert.Equal(t, -3.0, p.Quantity)
	assert.Equal(t, 94.0, p.AveragePrice)
	assert.Equal(t, 20.0, p.RealizedPnL)
}
