package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-shop-bot/models"
)

func testProducts() []models.Product {
	return []models.Product{
		{Name: "Wooden Clothes Rack", Price: "Rs. 4,500", Detail: "6ft foldable"},
	}
}

func TestStartAdFlow(t *testing.T) {
	cc := &ConversationContext{SenderID: "s1", PageID: "p1"}

	reply := StartAdFlow(cc, "ad_123")

	assert.Equal(t, "ad_123", cc.AdID)
	assert.Equal(t, StepAskLocation, cc.Step)
	assert.True(t, cc.AskedLocation)
	assert.Contains(t, reply, "town")
}

func TestAdvanceAskLocation(t *testing.T) {
	t.Run("known place moves to order step", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskLocation}

		result := Advance(cc, "Kandy", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.True(t, result.SaveLead)
		assert.Equal(t, StepAskOrder, cc.Step)
		assert.Equal(t, "kandy", cc.Location)
		assert.Contains(t, result.Reply, DeliveryFeeOutstation)
	})

	t.Run("colombo area gets lower fee", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskLocation}

		result := Advance(cc, "Nugegoda", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Contains(t, result.Reply, DeliveryFeeColombo)
	})

	t.Run("unknown short text is kept verbatim", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskLocation}

		result := Advance(cc, "Pitakotuwa", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Equal(t, "Pitakotuwa", cc.Location)
	})

	t.Run("question drops out of the flow", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskLocation}

		result := Advance(cc, "meka kiyada", IntentPrice, nil)

		assert.False(t, result.Handled)
		assert.False(t, result.Interrupted)
		assert.Equal(t, StepNone, cc.Step)
	})
}

func TestAdvanceAskOrder(t *testing.T) {
	t.Run("agreement starts collection", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskOrder}

		result := Advance(cc, "ow", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Equal(t, StepCollectName, cc.Step)
		assert.Contains(t, strings.ToLower(result.Reply), "name")
	})

	t.Run("disagreement resets the flow", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskOrder}

		result := Advance(cc, "epa machan", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Equal(t, StepNone, cc.Step)
	})

	t.Run("multi word disagreement", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskOrder}

		result := Advance(cc, "not now thanks", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Equal(t, StepNone, cc.Step)
	})

	t.Run("question interrupts the flow", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskOrder, OrderRetries: 1}

		result := Advance(cc, "delivery kiyada", IntentDelivery, nil)

		assert.True(t, result.Interrupted)
		assert.False(t, result.Handled)
		assert.Equal(t, StepNone, cc.Step)
		assert.Equal(t, 0, cc.OrderRetries)
	})

	t.Run("unclear answers give up after the retry cap", func(t *testing.T) {
		cc := &ConversationContext{Step: StepAskOrder}

		first := Advance(cc, "hmm balanna", IntentGeneral, nil)
		require.True(t, first.Handled)
		assert.Equal(t, StepAskOrder, cc.Step)
		assert.Equal(t, 1, cc.OrderRetries)

		second := Advance(cc, "mata hithaganna puluwan pasuwata", IntentGeneral, nil)
		require.True(t, second.Handled)
		assert.Equal(t, StepNone, cc.Step)
		assert.Equal(t, 0, cc.OrderRetries)
	})
}

func TestAdvanceCollectName(t *testing.T) {
	t.Run("name moves to address", func(t *testing.T) {
		cc := &ConversationContext{Step: StepCollectName}

		result := Advance(cc, "Nimal Perera", IntentGeneral, nil)

		require.True(t, result.Handled)
		assert.Equal(t, "Nimal Perera", cc.Name)
		assert.Equal(t, StepCollectAddress, cc.Step)
	})

	t.Run("everything in one message completes the order", func(t *testing.T) {
		cc := &ConversationContext{Step: StepCollectName, Location: "kandy"}

		result := Advance(cc, "Nimal Perera\n123 Galle Road, Colombo 03\n0771234567", IntentGeneral, testProducts())

		require.True(t, result.Handled)
		assert.True(t, result.SaveOrder)
		assert.True(t, result.ClearContext)
		assert.Equal(t, "Nimal Perera", cc.Name)
		assert.Equal(t, "123 Galle Road, Colombo 03", cc.Address)
		assert.Equal(t, "0771234567", cc.Phone)
	})
}

func TestAdvanceCollectAddressAndPhone(t *testing.T) {
	cc := &ConversationContext{Step: StepCollectAddress, Name: "Nimal"}

	result := Advance(cc, "123 Galle Road, Colombo 03", IntentGeneral, nil)
	require.True(t, result.Handled)
	assert.Equal(t, "123 Galle Road, Colombo 03", cc.Address)
	assert.Equal(t, StepCollectPhone, cc.Step)

	retry := Advance(cc, "my number", IntentGeneral, nil)
	require.True(t, retry.Handled)
	assert.False(t, retry.SaveOrder)
	assert.Equal(t, StepCollectPhone, cc.Step)

	done := Advance(cc, "+94771234567", IntentGeneral, testProducts())
	require.True(t, done.Handled)
	assert.True(t, done.SaveOrder)
	assert.True(t, done.ClearContext)
	assert.Contains(t, done.Reply, "+94771234567")
	assert.Equal(t, StepNone, cc.Step)
}

func TestOrderSummary(t *testing.T) {
	assert.Equal(t, "", OrderSummary(nil, 2))

	summary := OrderSummary(testProducts(), 1)
	assert.Equal(t, "Wooden Clothes Rack - Rs. 4,500", summary)

	withQty := OrderSummary(testProducts(), 3)
	assert.Equal(t, "Wooden Clothes Rack - Rs. 4,500 (x3)", withQty)

	long := []models.Product{{Name: strings.Repeat("A", 60), Price: "Rs. 100"}}
	assert.Len(t, OrderSummary(long, 1), 50)
}

func TestDeliveryFee(t *testing.T) {
	assert.Equal(t, DeliveryFeeColombo, DeliveryFee("colombo"))
	assert.Equal(t, DeliveryFeeColombo, DeliveryFee("Mount Lavinia"))
	assert.Equal(t, DeliveryFeeOutstation, DeliveryFee("kandy"))
	assert.Equal(t, DeliveryFeeOutstation, DeliveryFee(""))
}
