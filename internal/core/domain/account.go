package domain

import "github.com/shopspring/decimal"

// BalanceAccount is a named account holding funds in one unit.
type BalanceAccount struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit Unit   `json:"unit"`
}

// Balance is a snapshot of an account's holdings.
type Balance struct {
	Account BalanceAccount  `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}
