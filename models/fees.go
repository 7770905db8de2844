package models

import "github.com/shopspring/decimal"

// FeeSchedule снимается на заявку в момент создания, поэтому изменение
// комиссий никогда не задевает уже открытые сделки.
type FeeSchedule struct {
	MarketplacePercent decimal.Decimal
	LoaderPercent      decimal.Decimal
	ReceiverPercent    decimal.Decimal
	CancelPenalty      decimal.Decimal
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		MarketplacePercent: decimal.NewFromInt(20),
		LoaderPercent:      decimal.NewFromInt(3),
		ReceiverPercent:    decimal.NewFromInt(2),
		CancelPenalty:      decimal.NewFromInt(5),
	}
}

// PercentOf возвращает p% от amount, округлённые до 8 знаков.
func PercentOf(amount, p decimal.Decimal) decimal.Decimal {
	return amount.Mul(p).Div(decimal.NewFromInt(100)).Round(8)
}
