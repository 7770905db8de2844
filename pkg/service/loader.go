package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type LoaderService struct {
	loaders repository.LoaderOrders
	wallets repository.Wallets
	users   repository.Authorization
	twofa   *TwoFAService
	fees    models.FeeSchedule
	now     func() time.Time
}

func NewLoaderService(loaders repository.LoaderOrders, wallets repository.Wallets, users repository.Authorization,
	twofa *TwoFAService, fees models.FeeSchedule) *LoaderService {
	return &LoaderService{
		loaders: loaders,
		wallets: wallets,
		users:   users,
		twofa:   twofa,
		fees:    fees,
		now:     time.Now,
	}
}

// Create: получатель открывает сделку по объявлению залива. Средства ещё не
// замораживаются — сначала стороны договариваются об ответственности.
func (s *LoaderService) Create(receiverID int64, input models.CreateLoaderOrderInput) (models.LoaderOrder, error) {
	receiver, err := s.users.GetUser(receiverID)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	if receiver.Frozen {
		return models.LoaderOrder{}, models.ErrAccountFrozen
	}
	if !models.CountdownChoices[input.CountdownMinutes] {
		return models.LoaderOrder{}, models.ErrInvalidAmount
	}
	dealAmount, err := ParseAmount(input.DealAmount)
	if err != nil {
		return models.LoaderOrder{}, err
	}

	o := models.LoaderOrder{
		AdID:               input.AdID,
		LoaderID:           input.LoaderID,
		ReceiverID:         receiverID,
		Currency:           input.Currency,
		DealAmount:         dealAmount,
		LoaderFeePercent:   s.fees.LoaderPercent,
		ReceiverFeePercent: s.fees.ReceiverPercent,
		PenaltyPercent:     s.fees.CancelPenalty,
		Status:             models.LoaderCreated,
		CountdownMinutes:   input.CountdownMinutes,
	}
	id, err := s.loaders.Create(o)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	return s.loaders.Get(id)
}

func (s *LoaderService) Get(actorID, orderID int64) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if !o.IsParty(actorID) {
		actor, err := s.users.GetUser(actorID)
		if err != nil || !actor.CanResolveDisputes {
			return models.LoaderOrder{}, models.ErrNotOrderParty
		}
	}
	return o, nil
}

// SelectLiability: получатель выбирает, как сделка переживёт заморозку
// актива. Пока никто не подтвердил — выбор можно поменять.
func (s *LoaderService) SelectLiability(actorID, orderID int64, input models.SelectLiabilityInput) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.ReceiverID {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}
	if o.Status != models.LoaderCreated && o.Status != models.LoaderAwaitingLiability {
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}
	if o.LoaderConfirmed || o.ReceiverConfirmed {
		return models.LoaderOrder{}, models.ErrLiabilityAlreadyLocked
	}

	partial := decimal.Zero
	tolerance := 0
	switch input.LiabilityType {
	case models.LiabilityFullPayment:
	case models.LiabilityPartial10:
		partial = decimal.NewFromInt(10)
	case models.LiabilityPartial25:
		partial = decimal.NewFromInt(25)
	case models.LiabilityPartial50:
		partial = decimal.NewFromInt(50)
	case models.LiabilityTolerance:
		minutes, ok := models.ToleranceWindows[input.ToleranceWindow]
		if !ok {
			return models.LoaderOrder{}, models.ErrLiabilityNotSelected
		}
		tolerance = minutes
	default:
		return models.LoaderOrder{}, models.ErrLiabilityNotSelected
	}

	version := o.Version
	liability := input.LiabilityType
	o.Status = models.LoaderAwaitingLiability
	o.LiabilityType = &liability
	o.PartialPercent = partial
	o.ToleranceMinutes = tolerance
	if err := s.loaders.Update(o, version, nil); err != nil {
		return models.LoaderOrder{}, err
	}
	return s.loaders.Get(orderID)
}

// ConfirmLiability фиксирует выбранный тип за подтвердившей стороной.
// Когда подтвердили обе — тип необратим, обе стороны замораживают сумму
// сделки и резерв комиссии, стартует обратный отсчёт. Проигрыш версии при
// одновременном подтверждении перечитывается и повторяется.
func (s *LoaderService) ConfirmLiability(actorID, orderID int64) (models.LoaderOrder, error) {
	for attempt := 0; attempt < 3; attempt++ {
		o, err := s.loaders.Get(orderID)
		if err != nil {
			return o, err
		}
		if !o.IsParty(actorID) {
			return models.LoaderOrder{}, models.ErrNotOrderParty
		}
		if o.Status != models.LoaderAwaitingLiability {
			return models.LoaderOrder{}, models.ErrInvalidStateTransition
		}
		if o.LiabilityType == nil {
			return models.LoaderOrder{}, models.ErrLiabilityNotSelected
		}
		if (actorID == o.LoaderID && o.LoaderConfirmed) || (actorID == o.ReceiverID && o.ReceiverConfirmed) {
			return models.LoaderOrder{}, models.ErrLiabilityAlreadyLocked
		}

		version := o.Version
		if actorID == o.LoaderID {
			o.LoaderConfirmed = true
		} else {
			o.ReceiverConfirmed = true
		}

		var moves []repository.LedgerMove
		if o.LoaderConfirmed && o.ReceiverConfirmed {
			moves, err = s.lockLiability(&o)
			if err != nil {
				return models.LoaderOrder{}, err
			}
		}

		err = s.loaders.Update(o, version, moves)
		if err == nil {
			return s.loaders.Get(orderID)
		}
		if err != models.ErrInvalidStateTransition {
			return models.LoaderOrder{}, err
		}
		// Версию перехватило встречное подтверждение — пробуем ещё раз.
	}
	return models.LoaderOrder{}, models.ErrInvalidStateTransition
}

func (s *LoaderService) lockLiability(o *models.LoaderOrder) ([]repository.LedgerMove, error) {
	loaderWallet, err := s.wallets.Ensure(o.LoaderID, o.Currency)
	if err != nil {
		return nil, err
	}
	receiverWallet, err := s.wallets.Ensure(o.ReceiverID, o.Currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := now.Add(time.Duration(o.CountdownMinutes) * time.Minute)
	o.Status = models.LoaderAwaitingDetails
	o.LiabilityLockedAt = &now
	o.CountdownExpiresAt = &expires
	o.LoaderFrozen = o.DealAmount
	o.ReceiverFrozen = o.DealAmount
	o.LoaderFeeReserve = models.PercentOf(o.DealAmount, o.LoaderFeePercent)
	o.ReceiverFeeReserve = models.PercentOf(o.DealAmount, o.ReceiverFeePercent)

	ref := repository.OrderRef(models.OrderTypeLoader, o.ID)
	return []repository.LedgerMove{
		repository.MoveHold(loaderWallet.ID, o.LoaderFrozen.Add(o.LoaderFeeReserve), o.Currency, &ref),
		repository.MoveHold(receiverWallet.ID, o.ReceiverFrozen.Add(o.ReceiverFeeReserve), o.Currency, &ref),
	}, nil
}

// SendPaymentDetails останавливает обратный отсчёт. После дедлайна реквизиты
// не принимаются — заявку снимет свип.
func (s *LoaderService) SendPaymentDetails(actorID, orderID int64) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.ReceiverID {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}
	if o.Status != models.LoaderAwaitingDetails {
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}
	if o.CountdownExpiresAt != nil && !s.now().Before(*o.CountdownExpiresAt) {
		return models.LoaderOrder{}, models.ErrCountdownExpired
	}

	version := o.Version
	o.Status = models.LoaderDetailsSent
	o.CountdownStopped = true
	if err := s.loaders.Update(o, version, nil); err != nil {
		return models.LoaderOrder{}, err
	}
	return s.loaders.Get(orderID)
}

// MarkPaymentSent: заливщик сообщил, что перевёл средства по реквизитам.
func (s *LoaderService) MarkPaymentSent(actorID, orderID int64) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.LoaderID {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}
	if o.Status != models.LoaderDetailsSent {
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}
	now := s.now()
	version := o.Version
	o.Status = models.LoaderPaymentSent
	o.PaymentSentAt = &now
	if err := s.loaders.Update(o, version, nil); err != nil {
		return models.LoaderOrder{}, err
	}
	return s.loaders.Get(orderID)
}

// MarkAssetFrozen: любая из сторон сообщает о заморозке залитого актива.
// Дальше судьбу сделки решает зафиксированный тип ответственности.
func (s *LoaderService) MarkAssetFrozen(actorID, orderID int64) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if !o.IsParty(actorID) {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}
	if o.Status != models.LoaderDetailsSent && o.Status != models.LoaderPaymentSent {
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}
	now := s.now()
	version := o.Version
	o.Status = models.LoaderAssetFrozenWaiting
	o.AssetFrozenAt = &now
	if err := s.loaders.Update(o, version, nil); err != nil {
		return models.LoaderOrder{}, err
	}
	return s.loaders.Get(orderID)
}

// Complete: получатель подтверждает получение залива. Из payment_sent платится
// полная сумма, из asset_frozen_waiting — по типу ответственности (полная или
// частичная). 2FA обязательна, если включена у подтверждающего.
func (s *LoaderService) Complete(actorID, orderID int64, totpCode string) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if actorID != o.ReceiverID {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}

	payPercent := decimal.NewFromInt(100)
	switch o.Status {
	case models.LoaderPaymentSent:
	case models.LoaderAssetFrozenWaiting:
		if o.LiabilityType == nil {
			return models.LoaderOrder{}, models.ErrLiabilityNotSelected
		}
		switch *o.LiabilityType {
		case models.LiabilityFullPayment:
		case models.LiabilityPartial10, models.LiabilityPartial25, models.LiabilityPartial50:
			payPercent = o.PartialPercent
		default:
			// Толерантное окно закрывает сделку без оплаты, подтверждать нечего.
			return models.LoaderOrder{}, models.ErrInvalidStateTransition
		}
	default:
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}

	receiver, err := s.users.GetUser(actorID)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	if err := s.twofa.RequireIfEnabled(receiver, totpCode); err != nil {
		return models.LoaderOrder{}, err
	}

	loaderWallet, err := s.wallets.Ensure(o.LoaderID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	receiverWallet, err := s.wallets.Ensure(o.ReceiverID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	platformWallet, err := s.wallets.Ensure(models.PlatformUserID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}

	ref := repository.OrderRef(models.OrderTypeLoader, o.ID)
	released := models.PercentOf(o.DealAmount, payPercent)
	loaderFee := models.PercentOf(released, o.LoaderFeePercent)
	receiverFee := models.PercentOf(released, o.ReceiverFeePercent)

	var moves []repository.LedgerMove
	// Оплата сделки: эскроу получателя уходит заливщику.
	if released.Sign() > 0 {
		moves = append(moves,
			repository.MoveReleaseOut(receiverWallet.ID, released, o.Currency, &ref),
			repository.MoveReleaseIn(loaderWallet.ID, released, o.Currency, &ref),
		)
	}
	// Невыплаченный остаток замороженной суммы возвращается получателю.
	if rest := o.ReceiverFrozen.Sub(released); rest.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(receiverWallet.ID, rest, o.Currency, &ref))
	}
	// Своя заморозка заливщика возвращается ему.
	if o.LoaderFrozen.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(loaderWallet.ID, o.LoaderFrozen, o.Currency, &ref))
	}
	// Комиссии списываются из резервов пропорционально выплаченному,
	// остатки резервов возвращаются.
	moves = append(moves, reserveMoves(loaderWallet.ID, platformWallet.ID, o.LoaderFeeReserve, loaderFee, o.Currency, &ref)...)
	moves = append(moves, reserveMoves(receiverWallet.ID, platformWallet.ID, o.ReceiverFeeReserve, receiverFee, o.Currency, &ref)...)

	now := s.now()
	version := o.Version
	o.Status = models.LoaderCompleted
	o.CompletedAt = &now
	o.LoaderFrozen = decimal.Zero
	o.ReceiverFrozen = decimal.Zero
	o.LoaderFeeReserve = decimal.Zero
	o.ReceiverFeeReserve = decimal.Zero
	if err := s.loaders.Update(o, version, moves); err != nil {
		return models.LoaderOrder{}, err
	}
	logrus.WithFields(logrus.Fields{
		"loader_order": o.ID,
		"released":     released.String(),
		"loader_fee":   loaderFee.String(),
		"receiver_fee": receiverFee.String(),
	}).Info("Залив завершён, средства выпущены")
	return s.loaders.Get(orderID)
}

// reserveMoves списывает fee из эскроу-резерва в пользу платформы и
// возвращает владельцу остаток резерва.
func reserveMoves(ownerWalletID, platformWalletID int64, reserve, fee decimal.Decimal, currency string, ref *string) []repository.LedgerMove {
	var moves []repository.LedgerMove
	if fee.GreaterThan(reserve) {
		fee = reserve
	}
	if fee.Sign() > 0 {
		moves = append(moves,
			repository.MoveReleaseOut(ownerWalletID, fee, currency, ref),
			repository.MoveFee(platformWalletID, fee, currency, ref),
		)
	}
	if rest := reserve.Sub(fee); rest.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(ownerWalletID, rest, currency, ref))
	}
	return moves
}

// Cancel. До фиксации ответственности — свободный выход. После фиксации и до
// отметки об отправке платежа отменяющий платит 5% от суммы сделки: штраф
// платформе, остаток его заморозки — контрагенту. После payment_sent отмена
// отклоняется.
func (s *LoaderService) Cancel(actorID, orderID int64, reason string) (models.LoaderOrder, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return o, err
	}
	if !o.IsParty(actorID) {
		return models.LoaderOrder{}, models.ErrNotOrderParty
	}

	status := models.LoaderCancelledByReceiver
	if actorID == o.LoaderID {
		status = models.LoaderCancelledByLoader
	}

	switch o.Status {
	case models.LoaderCreated, models.LoaderAwaitingLiability:
		version := o.Version
		o.Status = status
		o.CancelReason = &reason
		if err := s.loaders.Update(o, version, nil); err != nil {
			return models.LoaderOrder{}, err
		}
		return s.loaders.Get(orderID)
	case models.LoaderAwaitingDetails, models.LoaderDetailsSent:
	default:
		return models.LoaderOrder{}, models.ErrInvalidStateTransition
	}

	loaderWallet, err := s.wallets.Ensure(o.LoaderID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	receiverWallet, err := s.wallets.Ensure(o.ReceiverID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}
	platformWallet, err := s.wallets.Ensure(models.PlatformUserID, o.Currency)
	if err != nil {
		return models.LoaderOrder{}, err
	}

	penalty := models.PercentOf(o.DealAmount, o.PenaltyPercent)
	ref := repository.OrderRef(models.OrderTypeLoader, o.ID)

	cancellerWallet, counterpartWallet := receiverWallet, loaderWallet
	cancellerFrozen, counterpartFrozen := o.ReceiverFrozen, o.LoaderFrozen
	cancellerReserve, counterpartReserve := o.ReceiverFeeReserve, o.LoaderFeeReserve
	if actorID == o.LoaderID {
		cancellerWallet, counterpartWallet = loaderWallet, receiverWallet
		cancellerFrozen, counterpartFrozen = o.LoaderFrozen, o.ReceiverFrozen
		cancellerReserve, counterpartReserve = o.LoaderFeeReserve, o.ReceiverFeeReserve
	}

	var moves []repository.LedgerMove
	remainder := cancellerFrozen.Sub(penalty)
	if penalty.Sign() > 0 {
		moves = append(moves,
			repository.MoveReleaseOut(cancellerWallet.ID, penalty, o.Currency, &ref),
			repository.MoveFee(platformWallet.ID, penalty, o.Currency, &ref),
		)
	}
	if remainder.Sign() > 0 {
		moves = append(moves,
			repository.MoveReleaseOut(cancellerWallet.ID, remainder, o.Currency, &ref),
			repository.MoveReleaseIn(counterpartWallet.ID, remainder, o.Currency, &ref),
		)
	}
	if cancellerReserve.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(cancellerWallet.ID, cancellerReserve, o.Currency, &ref))
	}
	if counterpartFrozen.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(counterpartWallet.ID, counterpartFrozen, o.Currency, &ref))
	}
	if counterpartReserve.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(counterpartWallet.ID, counterpartReserve, o.Currency, &ref))
	}

	version := o.Version
	o.Status = status
	o.CancelReason = &reason
	o.PenaltyAmount = penalty
	o.PenaltyPayerID = &actorID
	o.LoaderFrozen = decimal.Zero
	o.ReceiverFrozen = decimal.Zero
	o.LoaderFeeReserve = decimal.Zero
	o.ReceiverFeeReserve = decimal.Zero
	if err := s.loaders.Update(o, version, moves); err != nil {
		return models.LoaderOrder{}, err
	}
	logrus.WithFields(logrus.Fields{
		"loader_order": o.ID,
		"cancelled_by": actorID,
		"penalty":      penalty.String(),
	}).Info("Залив отменён со штрафом")
	return s.loaders.Get(orderID)
}

// ExpireCountdown снимает заявку, не дождавшуюся реквизитов: без штрафа,
// обе заморозки возвращаются. Вызывается только свипом.
func (s *LoaderService) ExpireCountdown(o models.LoaderOrder) error {
	if o.Status != models.LoaderAwaitingDetails || o.CountdownStopped ||
		o.CountdownExpiresAt == nil || o.CountdownExpiresAt.After(s.now()) {
		return models.ErrInvalidStateTransition
	}
	reason := "countdown expired"
	return s.closeWithFullRefund(o, models.LoaderCancelledAuto, &reason)
}

// ExpireTolerance закрывает сделку без оплаты: окно толерантности вышло,
// актив так и остался замороженным.
func (s *LoaderService) ExpireTolerance(o models.LoaderOrder) error {
	if o.Status != models.LoaderAssetFrozenWaiting || o.LiabilityType == nil ||
		*o.LiabilityType != models.LiabilityTolerance || o.AssetFrozenAt == nil {
		return models.ErrInvalidStateTransition
	}
	deadline := o.AssetFrozenAt.Add(time.Duration(o.ToleranceMinutes) * time.Minute)
	if deadline.After(s.now()) {
		return models.ErrInvalidStateTransition
	}
	return s.closeWithFullRefund(o, models.LoaderClosedNoPayment, nil)
}

func (s *LoaderService) closeWithFullRefund(o models.LoaderOrder, status string, reason *string) error {
	loaderWallet, err := s.wallets.Ensure(o.LoaderID, o.Currency)
	if err != nil {
		return err
	}
	receiverWallet, err := s.wallets.Ensure(o.ReceiverID, o.Currency)
	if err != nil {
		return err
	}

	ref := repository.OrderRef(models.OrderTypeLoader, o.ID)
	var moves []repository.LedgerMove
	if total := o.LoaderFrozen.Add(o.LoaderFeeReserve); total.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(loaderWallet.ID, total, o.Currency, &ref))
	}
	if total := o.ReceiverFrozen.Add(o.ReceiverFeeReserve); total.Sign() > 0 {
		moves = append(moves, repository.MoveRefundEscrow(receiverWallet.ID, total, o.Currency, &ref))
	}

	version := o.Version
	o.Status = status
	o.CancelReason = reason
	o.LoaderFrozen = decimal.Zero
	o.ReceiverFrozen = decimal.Zero
	o.LoaderFeeReserve = decimal.Zero
	o.ReceiverFeeReserve = decimal.Zero
	return s.loaders.Update(o, version, moves)
}

// Feedback: на обычном завершении и обоюдном решении — обе стороны, после
// спора — только победитель.
func (s *LoaderService) Feedback(actorID, orderID int64, input models.LoaderFeedbackInput) (models.LoaderFeedback, error) {
	o, err := s.loaders.Get(orderID)
	if err != nil {
		return models.LoaderFeedback{}, err
	}
	if !o.IsParty(actorID) {
		return models.LoaderFeedback{}, models.ErrNotOrderParty
	}

	allowed := false
	switch o.Status {
	case models.LoaderCompleted, models.LoaderResolvedMutual:
		allowed = true
	case models.LoaderResolvedLoaderWins:
		allowed = actorID == o.LoaderID
	case models.LoaderResolvedReceiverWins:
		allowed = actorID == o.ReceiverID
	}
	if !allowed {
		return models.LoaderFeedback{}, models.ErrFeedbackNotAllowed
	}

	id, err := s.loaders.AddFeedback(models.LoaderFeedback{
		OrderID:  orderID,
		AuthorID: actorID,
		Positive: input.Positive,
		Comment:  input.Comment,
	})
	if err != nil {
		return models.LoaderFeedback{}, err
	}
	list, err := s.loaders.Feedback(orderID)
	if err != nil {
		return models.LoaderFeedback{}, err
	}
	for _, f := range list {
		if f.ID == id {
			return f, nil
		}
	}
	return models.LoaderFeedback{}, models.ErrNotFound
}

func (s *LoaderService) ListCountdownExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	return s.loaders.ListCountdownExpired(now, limit)
}

func (s *LoaderService) ListToleranceExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	return s.loaders.ListToleranceExpired(now, limit)
}
