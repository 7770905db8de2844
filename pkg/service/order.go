package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

// Quoter оценивает фиатную сумму в криптовалюте эскроу.
type Quoter interface {
	Quote(fiatAmount decimal.Decimal, fiatCurrency, crypto string) (decimal.Decimal, error)
}

type OrderService struct {
	orders      repository.Orders
	wallets     repository.Wallets
	users       repository.Authorization
	twofa       *TwoFAService
	rates       Quoter
	fees        models.FeeSchedule
	autoRelease time.Duration
	now         func() time.Time
}

func NewOrderService(orders repository.Orders, wallets repository.Wallets, users repository.Authorization,
	twofa *TwoFAService, rates Quoter, fees models.FeeSchedule, autoRelease time.Duration) *OrderService {
	return &OrderService{
		orders:      orders,
		wallets:     wallets,
		users:       users,
		twofa:       twofa,
		rates:       rates,
		fees:        fees,
		autoRelease: autoRelease,
		now:         time.Now,
	}
}

// Create открывает сделку по объявлению. По sell-объявлению средства
// покупателя уходят в эскроу сразу, по buy-объявлению — отдельным депозитом.
func (s *OrderService) Create(buyerID int64, input models.CreateOrderInput) (models.Order, error) {
	buyer, err := s.users.GetUser(buyerID)
	if err != nil {
		return models.Order{}, err
	}
	if buyer.Frozen {
		return models.Order{}, models.ErrAccountFrozen
	}
	if input.Intent != models.IntentSellAd && input.Intent != models.IntentBuyAd {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	fiatAmount, err := ParseAmount(input.FiatAmount)
	if err != nil {
		return models.Order{}, err
	}
	escrowAmount, err := s.rates.Quote(fiatAmount, input.FiatCurrency, input.Currency)
	if err != nil {
		return models.Order{}, err
	}

	fee := models.PercentOf(escrowAmount, s.fees.MarketplacePercent)
	o := models.Order{
		OfferID:        input.OfferID,
		BuyerID:        buyerID,
		VendorID:       input.VendorID,
		Intent:         input.Intent,
		Currency:       input.Currency,
		EscrowAmount:   escrowAmount,
		FiatAmount:     fiatAmount,
		FiatCurrency:   input.FiatCurrency,
		FeePercent:     s.fees.MarketplacePercent,
		PlatformFee:    fee,
		SellerReceives: escrowAmount.Sub(fee),
	}

	var moves []repository.LedgerMove
	if input.Intent == models.IntentSellAd {
		wallet, err := s.wallets.Ensure(buyerID, input.Currency)
		if err != nil {
			return models.Order{}, err
		}
		o.Status = models.OrderEscrowed
		o.EscrowHeld = true
		moves = []repository.LedgerMove{repository.MoveHold(wallet.ID, escrowAmount, input.Currency, nil)}
	} else {
		o.Status = models.OrderAwaitingDeposit
	}

	id, err := s.orders.Create(o, moves)
	if err != nil {
		return models.Order{}, err
	}
	return s.orders.Get(id)
}

func (s *OrderService) Get(actorID, orderID int64) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if !o.IsParty(actorID) {
		actor, err := s.users.GetUser(actorID)
		if err != nil || !actor.CanResolveDisputes {
			return models.Order{}, models.ErrNotOrderParty
		}
	}
	return o, nil
}

// Deposit: покупатель заводит эскроу по buy-объявлению.
func (s *OrderService) Deposit(actorID, orderID int64) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.BuyerID {
		return models.Order{}, models.ErrNotOrderParty
	}
	if o.Intent != models.IntentBuyAd || o.Status != models.OrderAwaitingDeposit {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	wallet, err := s.wallets.Ensure(o.BuyerID, o.Currency)
	if err != nil {
		return models.Order{}, err
	}
	ref := repository.OrderRef(models.OrderTypeMarketplace, o.ID)
	version := o.Version
	o.Status = models.OrderEscrowed
	o.EscrowHeld = true
	if err := s.orders.Update(o, version, []repository.LedgerMove{
		repository.MoveHold(wallet.ID, o.EscrowAmount, o.Currency, &ref),
	}); err != nil {
		return models.Order{}, err
	}
	return s.orders.Get(orderID)
}

// MarkPaid: покупатель сообщил, что фиат отправлен. С этого момента
// запускается срок автоотпуска и отмена больше невозможна.
func (s *OrderService) MarkPaid(actorID, orderID int64) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.BuyerID {
		return models.Order{}, models.ErrNotOrderParty
	}
	if o.Status != models.OrderCreated && o.Status != models.OrderEscrowed {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	now := s.now()
	release := now.Add(s.autoRelease)
	version := o.Version
	o.Status = models.OrderPaid
	o.PaidAt = &now
	o.AutoReleaseAt = &release
	if err := s.orders.Update(o, version, nil); err != nil {
		return models.Order{}, err
	}
	return s.orders.Get(orderID)
}

// Deliver: продавец подтвердил выполнение своей стороны сделки.
func (s *OrderService) Deliver(actorID, orderID int64) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.VendorID {
		return models.Order{}, models.ErrNotOrderParty
	}
	if o.Status != models.OrderPaid && o.Status != models.OrderEscrowed {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	now := s.now()
	version := o.Version
	o.Status = models.OrderConfirmed
	o.ConfirmedAt = &now
	if err := s.orders.Update(o, version, nil); err != nil {
		return models.Order{}, err
	}
	return s.orders.Get(orderID)
}

// Confirm завершает сделку: эскроу уходит продавцу за вычетом комиссии.
// Требует включённой 2FA и валидного кода.
func (s *OrderService) Confirm(actorID, orderID int64, totpCode string) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.BuyerID {
		return models.Order{}, models.ErrNotOrderParty
	}
	if o.Status != models.OrderConfirmed {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	buyer, err := s.users.GetUser(actorID)
	if err != nil {
		return models.Order{}, err
	}
	if err := s.twofa.Require(buyer, totpCode); err != nil {
		return models.Order{}, err
	}
	return s.complete(o)
}

// AutoRelease — принудительное завершение просроченной оплаченной заявки,
// как если бы покупатель подтвердил сам. Вызывается только свипом.
func (s *OrderService) AutoRelease(o models.Order) (models.Order, error) {
	if o.Status != models.OrderPaid || o.AutoReleaseAt == nil || o.AutoReleaseAt.After(s.now()) {
		return models.Order{}, models.ErrInvalidStateTransition
	}
	return s.complete(o)
}

func (s *OrderService) complete(o models.Order) (models.Order, error) {
	if !o.EscrowHeld {
		return models.Order{}, models.ErrInsufficientEscrow
	}
	buyerWallet, err := s.wallets.Ensure(o.BuyerID, o.Currency)
	if err != nil {
		return models.Order{}, err
	}
	vendorWallet, err := s.wallets.Ensure(o.VendorID, o.Currency)
	if err != nil {
		return models.Order{}, err
	}
	platformWallet, err := s.wallets.Ensure(models.PlatformUserID, o.Currency)
	if err != nil {
		return models.Order{}, err
	}

	ref := repository.OrderRef(models.OrderTypeMarketplace, o.ID)
	moves := []repository.LedgerMove{
		repository.MoveReleaseOut(buyerWallet.ID, o.EscrowAmount, o.Currency, &ref),
		repository.MoveReleaseIn(vendorWallet.ID, o.SellerReceives, o.Currency, &ref),
	}
	if o.PlatformFee.Sign() > 0 {
		moves = append(moves, repository.MoveFee(platformWallet.ID, o.PlatformFee, o.Currency, &ref))
	}

	now := s.now()
	version := o.Version
	o.Status = models.OrderCompleted
	o.EscrowHeld = false
	o.CompletedAt = &now
	if err := s.orders.Update(o, version, moves); err != nil {
		return models.Order{}, err
	}
	logrus.WithFields(logrus.Fields{
		"order":  o.ID,
		"vendor": o.VendorID,
		"amount": o.SellerReceives.String(),
		"fee":    o.PlatformFee.String(),
	}).Info("Эскроу по сделке выпущен продавцу")
	return s.orders.Get(o.ID)
}

// Cancel разрешена до отметки об оплате. Удержанный эскроу возвращается
// покупателю, после paid запрос отклоняется, а не игнорируется.
func (s *OrderService) Cancel(actorID, orderID int64, reason string) (models.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return o, err
	}
	if !o.IsParty(actorID) {
		return models.Order{}, models.ErrNotOrderParty
	}
	switch o.Status {
	case models.OrderCreated, models.OrderAwaitingDeposit, models.OrderEscrowed:
	default:
		return models.Order{}, models.ErrInvalidStateTransition
	}

	var moves []repository.LedgerMove
	if o.EscrowHeld {
		buyerWallet, err := s.wallets.Ensure(o.BuyerID, o.Currency)
		if err != nil {
			return models.Order{}, err
		}
		ref := repository.OrderRef(models.OrderTypeMarketplace, o.ID)
		moves = append(moves, repository.MoveRefundEscrow(buyerWallet.ID, o.EscrowAmount, o.Currency, &ref))
	}

	version := o.Version
	o.Status = models.OrderCancelled
	o.EscrowHeld = false
	o.CancelReason = &reason
	if err := s.orders.Update(o, version, moves); err != nil {
		return models.Order{}, err
	}
	return s.orders.Get(orderID)
}

func (s *OrderService) ListAutoReleasable(now time.Time, limit int) ([]models.Order, error) {
	return s.orders.ListAutoReleasable(now, limit)
}
