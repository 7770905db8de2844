package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

// Окно, в течение которого завершённый залив ещё можно оспорить.
const postCompletionDisputeWindow = 72 * time.Hour

type DisputeService struct {
	disputes repository.Disputes
	orders   repository.Orders
	loaders  repository.LoaderOrders
	wallets  repository.Wallets
	users    repository.Authorization
	twofa    *TwoFAService
	now      func() time.Time
}

func NewDisputeService(disputes repository.Disputes, orders repository.Orders, loaders repository.LoaderOrders,
	wallets repository.Wallets, users repository.Authorization, twofa *TwoFAService) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		orders:   orders,
		loaders:  loaders,
		wallets:  wallets,
		users:    users,
		twofa:    twofa,
		now:      time.Now,
	}
}

// OpenMarketplace переводит заявку в disputed и открывает спор. Дальше
// самообслуживание по заявке заморожено до решения персонала.
func (s *DisputeService) OpenMarketplace(actorID, orderID int64, reason string) (models.Dispute, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !o.IsParty(actorID) {
		return models.Dispute{}, models.ErrNotOrderParty
	}
	if o.Status == models.OrderDisputed {
		return models.Dispute{}, models.ErrDisputeAlreadyOpen
	}
	if o.IsTerminal() {
		return models.Dispute{}, models.ErrInvalidStateTransition
	}
	id, err := s.disputes.Open(models.Dispute{
		OrderType: models.OrderTypeMarketplace,
		OrderID:   orderID,
		OpenerID:  actorID,
		Reason:    reason,
	}, o.Version)
	if err != nil {
		return models.Dispute{}, err
	}
	return s.disputes.Get(id)
}

// OpenLoader: спор по заливу, в том числе в 72-часовом окне после
// завершения.
func (s *DisputeService) OpenLoader(actorID, orderID int64, reason string) (models.Dispute, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !o.IsParty(actorID) {
		return models.Dispute{}, models.ErrNotOrderParty
	}
	if o.Status == models.LoaderDisputed {
		return models.Dispute{}, models.ErrDisputeAlreadyOpen
	}
	if o.IsTerminal() {
		if o.Status != models.LoaderCompleted || o.CompletedAt == nil {
			return models.Dispute{}, models.ErrInvalidStateTransition
		}
		if s.now().After(o.CompletedAt.Add(postCompletionDisputeWindow)) {
			return models.Dispute{}, models.ErrDisputeWindowClosed
		}
	}
	id, err := s.disputes.Open(models.Dispute{
		OrderType: models.OrderTypeLoader,
		OrderID:   orderID,
		OpenerID:  actorID,
		Reason:    reason,
	}, o.Version)
	if err != nil {
		return models.Dispute{}, err
	}
	return s.disputes.Get(id)
}

func (s *DisputeService) List(staffID int64, status string) ([]models.Dispute, error) {
	if err := s.requireStaff(staffID); err != nil {
		return nil, err
	}
	return s.disputes.List(status)
}

// Detail: спор, переписка и кошельки обеих сторон для админки.
func (s *DisputeService) Detail(staffID, disputeID int64) (models.DisputeDetail, error) {
	if err := s.requireStaff(staffID); err != nil {
		return models.DisputeDetail{}, err
	}
	d, err := s.disputes.Get(disputeID)
	if err != nil {
		return models.DisputeDetail{}, err
	}
	messages, err := s.disputes.Messages(disputeID)
	if err != nil {
		return models.DisputeDetail{}, err
	}

	var partyA, partyB int64
	var currency string
	if d.OrderType == models.OrderTypeLoader {
		o, err := s.loaders.Get(d.OrderID)
		if err != nil {
			return models.DisputeDetail{}, err
		}
		partyA, partyB, currency = o.LoaderID, o.ReceiverID, o.Currency
	} else {
		o, err := s.orders.Get(d.OrderID)
		if err != nil {
			return models.DisputeDetail{}, err
		}
		partyA, partyB, currency = o.BuyerID, o.VendorID, o.Currency
	}
	var wallets []models.Wallet
	for _, userID := range []int64{partyA, partyB} {
		w, err := s.wallets.Get(userID, currency)
		if err != nil {
			if err == models.ErrNotFound {
				continue
			}
			return models.DisputeDetail{}, err
		}
		wallets = append(wallets, w)
	}
	return models.DisputeDetail{Dispute: d, Messages: messages, Wallets: wallets}, nil
}

// PostMessage: стороны спора и персонал. Замороженные аккаунты не пишут.
func (s *DisputeService) PostMessage(actorID, disputeID int64, body string) (models.DisputeMessage, error) {
	d, err := s.disputes.Get(disputeID)
	if err != nil {
		return models.DisputeMessage{}, err
	}
	actor, err := s.users.GetUser(actorID)
	if err != nil {
		return models.DisputeMessage{}, err
	}
	if actor.Frozen {
		return models.DisputeMessage{}, models.ErrAccountFrozen
	}
	if !actor.CanResolveDisputes {
		party, err := s.isOrderParty(d, actorID)
		if err != nil {
			return models.DisputeMessage{}, err
		}
		if !party {
			return models.DisputeMessage{}, models.ErrNotOrderParty
		}
	}
	id, err := s.disputes.AddMessage(models.DisputeMessage{
		DisputeID: disputeID,
		AuthorID:  actorID,
		Body:      body,
	})
	if err != nil {
		return models.DisputeMessage{}, err
	}
	messages, err := s.disputes.Messages(disputeID)
	if err != nil {
		return models.DisputeMessage{}, err
	}
	for _, m := range messages {
		if m.ID == id {
			return m, nil
		}
	}
	return models.DisputeMessage{}, models.ErrNotFound
}

func (s *DisputeService) isOrderParty(d models.Dispute, userID int64) (bool, error) {
	if d.OrderType == models.OrderTypeLoader {
		o, err := s.loaders.Get(d.OrderID)
		if err != nil {
			return false, err
		}
		return o.IsParty(userID), nil
	}
	o, err := s.orders.Get(d.OrderID)
	if err != nil {
		return false, err
	}
	return o.IsParty(userID), nil
}

// Resolve — необратимое решение спора. Требует права и валидного TOTP-кода;
// без них ни один баланс не меняется. Повтор с тем же request_id безопасен.
func (s *DisputeService) Resolve(staffID, disputeID int64, input models.ResolveDisputeInput) (models.Dispute, error) {
	staff, err := s.users.GetUser(staffID)
	if err != nil {
		return models.Dispute{}, err
	}
	if !staff.CanResolveDisputes {
		return models.Dispute{}, models.ErrNotAllowed
	}
	if err := s.twofa.Require(staff, input.TOTPCode); err != nil {
		return models.Dispute{}, err
	}
	requestID, err := uuid.Parse(input.RequestID)
	if err != nil {
		return models.Dispute{}, models.ErrBadRequestID
	}
	d, err := s.disputes.Get(disputeID)
	if err != nil {
		return models.Dispute{}, err
	}

	// Уже применённый request_id отсечёт репозиторий, повтор безопасен.
	// Новый request_id по решённому спору упадёт на CAS версии заявки.
	var apply repository.ResolutionApply
	res := models.DisputeResolution{
		RequestID:  requestID,
		DisputeID:  disputeID,
		ResolvedBy: staffID,
		Outcome:    input.Outcome,
		Rationale:  input.Resolution,
	}
	if d.OrderType == models.OrderTypeLoader {
		apply, err = s.loaderResolution(d, input, &res)
	} else {
		apply, err = s.marketplaceResolution(d, input, &res)
	}
	if err != nil {
		return models.Dispute{}, err
	}

	applied, err := s.disputes.Resolve(res, apply)
	if err != nil {
		return models.Dispute{}, err
	}
	if applied {
		logrus.WithFields(logrus.Fields{
			"dispute": disputeID,
			"admin":   staffID,
			"outcome": input.Outcome,
			"release": res.ReleaseAmount.String(),
			"refund":  res.RefundAmount.String(),
		}).Info("Спор решён")
	}
	return s.disputes.Get(disputeID)
}

// marketplaceResolution: release отдаёт продавцу указанную часть эскроу (по
// умолчанию весь), остаток возвращается покупателю; refund возвращает всё.
// Комиссия платформы при решении спора не удерживается.
func (s *DisputeService) marketplaceResolution(d models.Dispute, input models.ResolveDisputeInput, res *models.DisputeResolution) (repository.ResolutionApply, error) {
	o, err := s.orders.Get(d.OrderID)
	if err != nil {
		return repository.ResolutionApply{}, err
	}

	escrowed := decimal.Zero
	if o.EscrowHeld {
		escrowed = o.EscrowAmount
	}
	release := decimal.Zero
	status := models.OrderResolvedRefund
	switch input.Outcome {
	case models.ResolutionRelease:
		status = models.OrderResolvedRelease
		release = escrowed
		if input.PartialAmount != "" {
			release, err = ParseAmount(input.PartialAmount)
			if err != nil {
				return repository.ResolutionApply{}, err
			}
		}
		if release.GreaterThan(escrowed) {
			return repository.ResolutionApply{}, models.ErrInsufficientEscrow
		}
	case models.ResolutionRefund:
	default:
		return repository.ResolutionApply{}, models.ErrInvalidStateTransition
	}
	refund := escrowed.Sub(release)

	ref := repository.OrderRef(models.OrderTypeMarketplace, o.ID)
	var moves []repository.LedgerMove
	if escrowed.Sign() > 0 {
		buyerWallet, err := s.wallets.Ensure(o.BuyerID, o.Currency)
		if err != nil {
			return repository.ResolutionApply{}, err
		}
		if release.Sign() > 0 {
			vendorWallet, err := s.wallets.Ensure(o.VendorID, o.Currency)
			if err != nil {
				return repository.ResolutionApply{}, err
			}
			moves = append(moves,
				repository.MoveReleaseOut(buyerWallet.ID, release, o.Currency, &ref),
				repository.MoveReleaseIn(vendorWallet.ID, release, o.Currency, &ref),
			)
		}
		if refund.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(buyerWallet.ID, refund, o.Currency, &ref))
		}
	}

	res.ReleaseAmount = release
	res.RefundAmount = refund
	return repository.ResolutionApply{
		OrderType:            models.OrderTypeMarketplace,
		OrderID:              o.ID,
		OrderStatus:          status,
		ExpectedOrderVersion: o.Version,
		CompletedAt:          s.now(),
		Moves:                moves,
	}, nil
}

// loaderResolution: победитель получает заморозку проигравшего за вычетом
// 5% штрафа, резервы возвращаются. Обоюдное решение — полный возврат всем.
// По спору после завершения заморозок уже нет, решение только фиксируется.
func (s *DisputeService) loaderResolution(d models.Dispute, input models.ResolveDisputeInput, res *models.DisputeResolution) (repository.ResolutionApply, error) {
	o, err := s.loaders.Get(d.OrderID)
	if err != nil {
		return repository.ResolutionApply{}, err
	}

	loaderWallet, err := s.wallets.Ensure(o.LoaderID, o.Currency)
	if err != nil {
		return repository.ResolutionApply{}, err
	}
	receiverWallet, err := s.wallets.Ensure(o.ReceiverID, o.Currency)
	if err != nil {
		return repository.ResolutionApply{}, err
	}
	platformWallet, err := s.wallets.Ensure(models.PlatformUserID, o.Currency)
	if err != nil {
		return repository.ResolutionApply{}, err
	}

	ref := repository.OrderRef(models.OrderTypeLoader, o.ID)
	apply := repository.ResolutionApply{
		OrderType:            models.OrderTypeLoader,
		OrderID:              o.ID,
		ExpectedOrderVersion: o.Version,
		CompletedAt:          s.now(),
	}

	var winnerWallet, loserWallet models.Wallet
	var loserFrozen decimal.Decimal
	var loserID int64
	switch input.Outcome {
	case models.ResolutionLoaderWins:
		apply.OrderStatus = models.LoaderResolvedLoaderWins
		winnerWallet, loserWallet = loaderWallet, receiverWallet
		loserFrozen, loserID = o.ReceiverFrozen, o.ReceiverID
	case models.ResolutionReceiverWins:
		apply.OrderStatus = models.LoaderResolvedReceiverWins
		winnerWallet, loserWallet = receiverWallet, loaderWallet
		loserFrozen, loserID = o.LoaderFrozen, o.LoaderID
	case models.ResolutionMutual:
		apply.OrderStatus = models.LoaderResolvedMutual
	default:
		return repository.ResolutionApply{}, models.ErrInvalidStateTransition
	}

	var moves []repository.LedgerMove
	if input.Outcome == models.ResolutionMutual {
		if total := o.LoaderFrozen.Add(o.LoaderFeeReserve); total.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(loaderWallet.ID, total, o.Currency, &ref))
		}
		if total := o.ReceiverFrozen.Add(o.ReceiverFeeReserve); total.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(receiverWallet.ID, total, o.Currency, &ref))
		}
		res.RefundAmount = o.LoaderFrozen.Add(o.ReceiverFrozen)
	} else if loserFrozen.Sign() > 0 {
		penalty := models.PercentOf(o.DealAmount, o.PenaltyPercent)
		if penalty.GreaterThan(loserFrozen) {
			penalty = loserFrozen
		}
		award := loserFrozen.Sub(penalty)
		// Частичное решение: персонал может присудить победителю меньше,
		// остаток вернётся проигравшему.
		if input.PartialAmount != "" {
			award, err = ParseAmount(input.PartialAmount)
			if err != nil {
				return repository.ResolutionApply{}, err
			}
			if award.GreaterThan(loserFrozen.Sub(penalty)) {
				return repository.ResolutionApply{}, models.ErrInsufficientEscrow
			}
		}
		if penalty.Sign() > 0 {
			moves = append(moves,
				repository.MoveReleaseOut(loserWallet.ID, penalty, o.Currency, &ref),
				repository.MoveFee(platformWallet.ID, penalty, o.Currency, &ref),
			)
		}
		if award.Sign() > 0 {
			moves = append(moves,
				repository.MoveReleaseOut(loserWallet.ID, award, o.Currency, &ref),
				repository.MoveReleaseIn(winnerWallet.ID, award, o.Currency, &ref),
			)
		}
		if rest := loserFrozen.Sub(penalty).Sub(award); rest.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(loserWallet.ID, rest, o.Currency, &ref))
		}
		// Заморозка и резерв победителя, резерв проигравшего — возвращаются.
		winnerFrozen, winnerReserve := o.LoaderFrozen, o.LoaderFeeReserve
		loserReserve := o.ReceiverFeeReserve
		if input.Outcome == models.ResolutionReceiverWins {
			winnerFrozen, winnerReserve = o.ReceiverFrozen, o.ReceiverFeeReserve
			loserReserve = o.LoaderFeeReserve
		}
		if total := winnerFrozen.Add(winnerReserve); total.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(winnerWallet.ID, total, o.Currency, &ref))
		}
		if loserReserve.Sign() > 0 {
			moves = append(moves, repository.MoveRefundEscrow(loserWallet.ID, loserReserve, o.Currency, &ref))
		}
		apply.PenaltyAmount = penalty
		apply.PenaltyPayerID = &loserID
		res.ReleaseAmount = award
		res.RefundAmount = loserFrozen.Sub(penalty).Sub(award)
	}

	apply.Moves = moves
	return apply, nil
}

// Freeze блокирует аккаунту новые заявки, сообщения и выводы. Средства не
// двигаются.
func (s *DisputeService) Freeze(staffID, userID int64) error {
	if err := s.requireStaff(staffID); err != nil {
		return err
	}
	if err := s.users.SetFrozen(userID, true); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"admin": staffID, "user": userID}).Info("Аккаунт заморожен")
	return nil
}

func (s *DisputeService) Unfreeze(staffID, userID int64) error {
	if err := s.requireStaff(staffID); err != nil {
		return err
	}
	if err := s.users.SetFrozen(userID, false); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"admin": staffID, "user": userID}).Info("Аккаунт разморожен")
	return nil
}

func (s *DisputeService) requireStaff(staffID int64) error {
	staff, err := s.users.GetUser(staffID)
	if err != nil {
		return err
	}
	if !staff.CanResolveDisputes {
		return models.ErrNotAllowed
	}
	return nil
}
