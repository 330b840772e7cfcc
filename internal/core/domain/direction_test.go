package domain_test

import (
	"testing"

	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestDirection_ExchangeDifferenceDirection(t *testing.T) {
	tests := []struct {
		direction  domain.Direction
		customMore bool
		wantBooked domain.Direction
	}{
		{domain.Benefit, true, domain.Benefit},
		{domain.Benefit, false, domain.Loss},
		{domain.Loss, true, domain.Loss},
		{domain.Loss, false, domain.Benefit},
	}

	for _, tt := range tests {
		t.Run(tt.direction.String(), func(t *testing.T) {
			assert.Equal(t, tt.wantBooked, tt.direction.ExchangeDifferenceDirection(tt.customMore))
		})
	}
}

func TestDirection_Amounts(t *testing.T) {
	assert.Equal(t, "5", domain.Benefit.AppropriateMutationAmount(dec("-5")).String())
	assert.Equal(t, "-5", domain.Loss.AppropriateMutationAmount(dec("5")).String())

	assert.Equal(t, "15", domain.Benefit.AmountToSet(dec("10"), dec("5")).String())
	assert.Equal(t, "5", domain.Loss.AmountToSet(dec("10"), dec("5")).String())
}

func TestDirection_Parse(t *testing.T) {
	d, err := domain.ParseDirection("LOSS")
	assert.NoError(t, err)
	assert.Equal(t, domain.Loss, d)

	_, err = domain.ParseDirection("GAIN")
	assert.Error(t, err)
	assert.False(t, domain.Direction(0).Valid())
	assert.Equal(t, "Direction(0)", domain.Direction(0).String())
}

func TestPostponingReason_Pairs(t *testing.T) {
	r := domain.PostponingReason{Units: []domain.Unit{"EUR", "RUB", "USD"}}
	assert.Equal(t, []domain.Pair{
		{From: "EUR", To: "RUB"},
		{From: "EUR", To: "USD"},
		{From: "RUB", To: "USD"},
	}, r.Pairs())
}
