package pgsql

import (
	"context"
	"fmt"

	"github.com/adiosmsu/budgeter/internal/apperrors"
	"github.com/adiosmsu/budgeter/internal/core/domain"
	portsrepo "github.com/adiosmsu/budgeter/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Accounter persists the ledger in funds_mutations and currency_exchanges.
// Postponed entries stay in the postponement store it wraps; a reconciled
// entry is forgotten only once the batch that booked it has committed.
type Accounter struct {
	BaseRepository
	portsrepo.PostponedRepositoryFacade
}

// NewAccounter creates an Accounter on pool keeping postponed entries in postponed.
func NewAccounter(pool *pgxpool.Pool, postponed portsrepo.PostponedRepositoryFacade) *Accounter {
	return &Accounter{BaseRepository: BaseRepository{pool: pool}, PostponedRepositoryFacade: postponed}
}

var _ portsrepo.Accounter = (*Accounter)(nil)

// RegisterFundsMutation stores event. Registering the same event ID twice
// fails with apperrors.ErrDuplicate and leaves the transaction usable.
func (a *Accounter) RegisterFundsMutation(ctx context.Context, event domain.FundsMutationEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: funds mutation without id", apperrors.ErrValidation)
	}
	query := `
		INSERT INTO funds_mutations (
			event_id, day, account_id, amount, unit, subject, reserved, quantity,
			occurred_at, agent, original_amount, original_unit, rate
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING;
	`
	var originalUnit *string
	if event.OriginalUnit != nil {
		u := string(*event.OriginalUnit)
		originalUnit = &u
	}
	tag, err := a.db(ctx).Exec(ctx, query,
		event.ID,
		event.Day().Time(),
		event.Account.ID,
		event.Amount,
		string(event.Unit),
		event.Subject.Name,
		event.Subject.Reserved,
		event.Quantity,
		event.Timestamp,
		event.Agent.Name,
		event.OriginalAmount,
		originalUnit,
		event.Rate,
	)
	if err != nil {
		return fmt.Errorf("failed to save funds mutation %s: %w", event.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: funds mutation %s", apperrors.ErrDuplicate, event.ID)
	}
	return nil
}

// RegisterCurrencyExchange stores event, failing with apperrors.ErrDuplicate on a known ID.
func (a *Accounter) RegisterCurrencyExchange(ctx context.Context, event domain.CurrencyExchangeEvent) error {
	if event.ID == "" {
		return fmt.Errorf("%w: currency exchange without id", apperrors.ErrValidation)
	}
	query := `
		INSERT INTO currency_exchanges (
			event_id, day, buy_account_id, bought, sell_account_id, sold, rate, occurred_at, agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING;
	`
	tag, err := a.db(ctx).Exec(ctx, query,
		event.ID,
		domain.DayOf(event.Timestamp).Time(),
		event.BuyAccount.ID,
		event.Bought,
		event.SellAccount.ID,
		event.Sold,
		event.Rate,
		event.Timestamp,
		event.Agent.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to save currency exchange %s: %w", event.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: currency exchange %s", apperrors.ErrDuplicate, event.ID)
	}
	return nil
}

func (a *Accounter) ListFundsMutations(ctx context.Context, day domain.Day) ([]domain.FundsMutationEvent, error) {
	query := `
		SELECT m.event_id, m.amount, m.unit, m.account_id, b.name, b.unit, m.subject, m.reserved,
		       m.quantity, m.occurred_at, m.agent, m.original_amount, m.original_unit, m.rate
		FROM funds_mutations m
		JOIN balance_accounts b ON b.account_id = m.account_id
		WHERE m.day = $1
		ORDER BY m.seq;
	`
	rows, err := a.db(ctx).Query(ctx, query, day.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to list funds mutations of %s: %w", day, err)
	}
	defer rows.Close()

	var events []domain.FundsMutationEvent
	for rows.Next() {
		var (
			e                    domain.FundsMutationEvent
			unit, accountUnit    string
			originalAmount, rate decimal.NullDecimal
			originalUnit         *string
		)
		if err := rows.Scan(&e.ID, &e.Amount, &unit, &e.Account.ID, &e.Account.Name, &accountUnit,
			&e.Subject.Name, &e.Subject.Reserved, &e.Quantity, &e.Timestamp, &e.Agent.Name,
			&originalAmount, &originalUnit, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan funds mutation: %w", err)
		}
		e.Unit = domain.Unit(unit)
		e.Account.Unit = domain.Unit(accountUnit)
		if originalAmount.Valid {
			e.OriginalAmount = &originalAmount.Decimal
		}
		if originalUnit != nil {
			u := domain.Unit(*originalUnit)
			e.OriginalUnit = &u
		}
		if rate.Valid {
			e.Rate = &rate.Decimal
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (a *Accounter) ListCurrencyExchanges(ctx context.Context, day domain.Day) ([]domain.CurrencyExchangeEvent, error) {
	query := `
		SELECT x.event_id, x.bought, x.buy_account_id, bb.name, bb.unit,
		       x.sold, x.sell_account_id, sb.name, sb.unit, x.rate, x.occurred_at, x.agent
		FROM currency_exchanges x
		JOIN balance_accounts bb ON bb.account_id = x.buy_account_id
		JOIN balance_accounts sb ON sb.account_id = x.sell_account_id
		WHERE x.day = $1
		ORDER BY x.seq;
	`
	rows, err := a.db(ctx).Query(ctx, query, day.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to list currency exchanges of %s: %w", day, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CurrencyExchangeEvent, error) {
		var (
			e                 domain.CurrencyExchangeEvent
			buyUnit, sellUnit string
		)
		err := row.Scan(&e.ID, &e.Bought, &e.BuyAccount.ID, &e.BuyAccount.Name, &buyUnit,
			&e.Sold, &e.SellAccount.ID, &e.SellAccount.Name, &sellUnit, &e.Rate, &e.Timestamp, &e.Agent.Name)
		e.BuyAccount.Unit = domain.Unit(buyUnit)
		e.SellAccount.Unit = domain.Unit(sellUnit)
		return e, err
	})
}

// MarkReconciledMutation forgets entry once the running batch commits.
func (a *Accounter) MarkReconciledMutation(ctx context.Context, entry domain.PostponedMutationEvent) error {
	return AfterCommit(ctx, func(ctx context.Context) error {
		return a.ForgetMutation(ctx, entry)
	})
}

// MarkReconciledExchange forgets entry once the running batch commits.
func (a *Accounter) MarkReconciledExchange(ctx context.Context, entry domain.PostponedExchange) error {
	return AfterCommit(ctx, func(ctx context.Context) error {
		return a.ForgetExchange(ctx, entry)
	})
}
