package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	"github.com/adiosmsu/budgeter/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitMutation books an income or expense into its account, converting it
// into the account's unit. A mutation that cannot be priced on its day is
// postponed rather than rejected.
func (s *ConversionService) SubmitMutation(ctx context.Context, req dto.MutationRequest) (*dto.SubmissionResult, error) {
	if !req.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %d", apperrors.ErrValidation, int(req.Direction))
	}
	event := req.Event
	if !event.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, direction carries the sign", apperrors.ErrValidation)
	}
	if _, err := domain.NewUnit(string(event.Unit)); err != nil {
		return nil, err
	}
	if event.Account.Unit == "" {
		return nil, fmt.Errorf("%w: account is required", apperrors.ErrValidation)
	}
	conversionUnit := req.ConversionUnit
	if conversionUnit == "" {
		conversionUnit = event.Account.Unit
	}
	if conversionUnit != event.Account.Unit {
		return nil, fmt.Errorf("%w: account %q holds %s, not %s", apperrors.ErrValidation, event.Account.Name, event.Account.Unit, conversionUnit)
	}
	if err := validateCustomRate(req.CustomRate); err != nil {
		return nil, err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if event.Quantity == 0 {
		event.Quantity = 1
	}

	if event.Unit == conversionUnit {
		booked, err := s.applyMutation(ctx, req.Direction, event, conversionUnit, nil, one)
		if err != nil {
			return nil, err
		}
		return &dto.SubmissionResult{Status: dto.StatusApplied, Mutations: booked}, nil
	}

	natural, ok, err := s.ConversionMultiplier(ctx, event.Day(), event.Unit, conversionUnit)
	if err != nil {
		s.LogError(ctx, err, "Failed to resolve conversion rate", slog.String("event_id", event.ID))
		return nil, err
	}
	if !ok {
		entry, err := s.accounter.RememberPostponedExchangeableEvent(ctx, event, req.Direction, conversionUnit, req.CustomRate)
		if err != nil {
			return nil, err
		}
		s.LogInfo(ctx, "Funds mutation postponed until its rate is known",
			slog.String("event_id", event.ID),
			slog.String("day", event.Day().String()),
			slog.String("pair", entry.Pair().String()))
		return &dto.SubmissionResult{Status: dto.StatusPostponed, PostponedID: entry.ID}, nil
	}

	booked, err := s.applyMutation(ctx, req.Direction, event, conversionUnit, req.CustomRate, natural)
	if err != nil {
		return nil, err
	}
	return &dto.SubmissionResult{Status: dto.StatusApplied, Mutations: booked}, nil
}

// SubmitExchange buys AmountToBuy into BuyAccount with funds of SellAccount.
func (s *ConversionService) SubmitExchange(ctx context.Context, req dto.ExchangeRequest) (*dto.SubmissionResult, error) {
	if !req.AmountToBuy.IsPositive() {
		return nil, fmt.Errorf("%w: amount to buy must be positive", apperrors.ErrValidation)
	}
	if req.BuyAccount.Unit == "" || req.SellAccount.Unit == "" {
		return nil, fmt.Errorf("%w: both accounts are required", apperrors.ErrValidation)
	}
	if req.BuyAccount.Unit == req.SellAccount.Unit {
		return nil, fmt.Errorf("%w: both accounts hold %s", apperrors.ErrValidation, req.BuyAccount.Unit)
	}
	if err := validateCustomRate(req.CustomRate); err != nil {
		return nil, err
	}
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	natural, ok, err := s.ConversionMultiplier(ctx, domain.DayOf(timestamp), req.BuyAccount.Unit, req.SellAccount.Unit)
	if err != nil {
		s.LogError(ctx, err, "Failed to resolve exchange rate")
		return nil, err
	}
	if !ok {
		entry, err := s.accounter.RememberPostponedExchange(ctx, req.AmountToBuy, req.BuyAccount, req.SellAccount, req.CustomRate, timestamp, req.Agent)
		if err != nil {
			return nil, err
		}
		s.LogInfo(ctx, "Currency exchange postponed until its rate is known",
			slog.Int64("postponed_id", entry.ID),
			slog.String("pair", entry.Pair().String()))
		return &dto.SubmissionResult{Status: dto.StatusPostponed, PostponedID: entry.ID}, nil
	}

	exchange, differences, err := s.applyExchange(ctx, uuid.NewString(), req.AmountToBuy, req.BuyAccount, req.SellAccount, req.CustomRate, timestamp, req.Agent, natural)
	if err != nil {
		return nil, err
	}
	return &dto.SubmissionResult{Status: dto.StatusApplied, Mutations: differences, Exchange: exchange}, nil
}

// applyMutation books event converted at natural. When the counterparty
// applied customRate instead, the gap is booked as a separate mutation so the
// account ends up moved by the custom amount.
func (s *ConversionService) applyMutation(ctx context.Context, direction domain.Direction, event domain.FundsMutationEvent, conversionUnit domain.Unit, customRate *decimal.Decimal, natural decimal.Decimal) ([]domain.FundsMutationEvent, error) {
	original := event.Amount.Abs()

	if event.Unit == conversionUnit {
		if err := s.record(ctx, direction, &event); err != nil {
			return nil, err
		}
		return []domain.FundsMutationEvent{event}, nil
	}

	originalAmount := direction.AppropriateMutationAmount(original)
	originalUnit := event.Unit
	rate := natural
	converted := event
	converted.Amount = conversionUnit.Round(original.Mul(natural))
	converted.Unit = conversionUnit
	converted.OriginalAmount = &originalAmount
	converted.OriginalUnit = &originalUnit
	converted.Rate = &rate
	if err := s.record(ctx, direction, &converted); err != nil {
		return nil, err
	}
	booked := []domain.FundsMutationEvent{converted}

	if customRate == nil || customRate.Equal(natural) {
		return booked, nil
	}
	customAmount := conversionUnit.Round(original.Mul(*customRate))
	gap := customAmount.Sub(converted.Amount.Abs()).Abs()
	if gap.IsZero() {
		return booked, nil
	}
	custom := *customRate
	difference := domain.FundsMutationEvent{
		ID:        derivedID("conversion-difference", event.ID),
		Amount:    gap,
		Unit:      conversionUnit,
		Account:   event.Account,
		Subject:   domain.ConversionDifferenceSubject,
		Quantity:  1,
		Timestamp: event.Timestamp,
		Agent:     event.Agent,
		Rate:      &custom,
	}
	if err := s.record(ctx, direction.ExchangeDifferenceDirection(customRate.GreaterThan(natural)), &difference); err != nil {
		return booked, err
	}
	return append(booked, difference), nil
}

// applyExchange books an exchange priced at natural. A custom rate moves the
// sold amount by a separate conversion difference on the sell account.
func (s *ConversionService) applyExchange(ctx context.Context, id string, amountToBuy decimal.Decimal, buy, sell domain.BalanceAccount, customRate *decimal.Decimal, timestamp time.Time, agent domain.Agent, natural decimal.Decimal) (*domain.CurrencyExchangeEvent, []domain.FundsMutationEvent, error) {
	bought := buy.Unit.Round(amountToBuy)
	exchange := domain.CurrencyExchangeEvent{
		ID:          id,
		Bought:      bought,
		BuyAccount:  buy,
		Sold:        sell.Unit.Round(bought.Mul(natural)),
		SellAccount: sell,
		Rate:        natural,
		Timestamp:   timestamp,
		Agent:       agent,
	}
	for _, account := range []domain.BalanceAccount{buy, sell} {
		if err := s.requireAccount(ctx, account); err != nil {
			return nil, nil, err
		}
	}
	if err := s.accounter.RegisterCurrencyExchange(ctx, exchange); err != nil {
		return nil, nil, err
	}
	if _, err := s.treasury.AddAmount(ctx, buy, domain.Benefit, exchange.Bought); err != nil {
		return nil, nil, err
	}
	if _, err := s.treasury.AddAmount(ctx, sell, domain.Loss, exchange.Sold); err != nil {
		return nil, nil, err
	}

	if customRate == nil || customRate.Equal(natural) {
		return &exchange, nil, nil
	}
	gap := sell.Unit.Round(bought.Mul(*customRate)).Sub(exchange.Sold).Abs()
	if gap.IsZero() {
		return &exchange, nil, nil
	}
	custom := *customRate
	difference := domain.FundsMutationEvent{
		ID:        derivedID("conversion-difference", id),
		Amount:    gap,
		Unit:      sell.Unit,
		Account:   sell,
		Subject:   domain.ConversionDifferenceSubject,
		Quantity:  1,
		Timestamp: timestamp,
		Agent:     agent,
		Rate:      &custom,
	}
	// the sell side of an exchange is an outgoing flow
	if err := s.record(ctx, domain.Loss.ExchangeDifferenceDirection(customRate.GreaterThan(natural)), &difference); err != nil {
		return &exchange, nil, err
	}
	return &exchange, []domain.FundsMutationEvent{difference}, nil
}

// record signs event.Amount for direction, registers it and moves the balance.
// Nothing is registered for an account the Treasury does not hold.
func (s *ConversionService) record(ctx context.Context, direction domain.Direction, event *domain.FundsMutationEvent) error {
	amount := event.Amount.Abs()
	event.Amount = direction.AppropriateMutationAmount(amount)
	if err := s.requireAccount(ctx, event.Account); err != nil {
		return err
	}
	if err := s.accounter.RegisterFundsMutation(ctx, *event); err != nil {
		return err
	}
	if _, err := s.treasury.AddAmount(ctx, event.Account, direction, amount); err != nil {
		return err
	}
	return nil
}

func (s *ConversionService) requireAccount(ctx context.Context, account domain.BalanceAccount) error {
	_, err := s.treasury.GetAmount(ctx, account)
	return err
}

func validateCustomRate(rate *decimal.Decimal) error {
	if rate != nil && !rate.IsPositive() {
		return fmt.Errorf("%w: custom rate must be positive", apperrors.ErrValidation)
	}
	return nil
}
