package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p_escrow_back/models"
)

// lockedLoaderOrder доводит залив до зафиксированной ответственности: обе
// стороны профинансированы и подтвердили условия.
func lockedLoaderOrder(t *testing.T, env *testEnv, svc *LoaderService, liability, window string) (models.LoaderOrder, int64, int64) {
	t.Helper()
	loader := env.newUser("loader")
	receiver := env.newUser("receiver")
	env.wallets.fund(loader, "usdt", "1030")
	env.wallets.fund(receiver, "usdt", "1020")

	o, err := svc.Create(receiver, models.CreateLoaderOrderInput{
		AdID: 1, LoaderID: loader, Currency: "usdt", DealAmount: "1000", CountdownMinutes: 30,
	})
	require.NoError(t, err)

	o, err = svc.SelectLiability(receiver, o.ID, models.SelectLiabilityInput{
		LiabilityType: liability, ToleranceWindow: window,
	})
	require.NoError(t, err)

	_, err = svc.ConfirmLiability(loader, o.ID)
	require.NoError(t, err)
	o, err = svc.ConfirmLiability(receiver, o.ID)
	require.NoError(t, err)
	require.Equal(t, models.LoaderAwaitingDetails, o.Status)
	return o, loader, receiver
}

func TestLoaderLiabilityLockFreezesBothSides(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityPartial25, "")

	assert.True(t, o.LoaderFrozen.Equal(decimal.NewFromInt(1000)))
	assert.True(t, o.ReceiverFrozen.Equal(decimal.NewFromInt(1000)))
	assert.True(t, o.LoaderFeeReserve.Equal(decimal.NewFromInt(30)), "резерв 3% заливщика")
	assert.True(t, o.ReceiverFeeReserve.Equal(decimal.NewFromInt(20)), "резерв 2% получателя")
	require.NotNil(t, o.CountdownExpiresAt)

	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	assert.True(t, loaderWallet.Available.IsZero())
	assert.True(t, loaderWallet.Escrow.Equal(decimal.NewFromInt(1030)))
	assert.True(t, receiverWallet.Escrow.Equal(decimal.NewFromInt(1020)))
}

func TestLoaderLiabilityImmutableAfterLock(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, _, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")

	_, err := svc.SelectLiability(receiver, o.ID, models.SelectLiabilityInput{
		LiabilityType: models.LiabilityPartial10,
	})
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
}

func TestLoaderSelectLiabilityValidation(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	loader := env.newUser("loader")
	receiver := env.newUser("receiver")

	o, err := svc.Create(receiver, models.CreateLoaderOrderInput{
		AdID: 1, LoaderID: loader, Currency: "usdt", DealAmount: "1000", CountdownMinutes: 15,
	})
	require.NoError(t, err)

	_, err = svc.SelectLiability(receiver, o.ID, models.SelectLiabilityInput{LiabilityType: "partial_33"})
	assert.ErrorIs(t, err, models.ErrLiabilityNotSelected)

	_, err = svc.SelectLiability(receiver, o.ID, models.SelectLiabilityInput{
		LiabilityType: models.LiabilityTolerance, ToleranceWindow: "36h",
	})
	assert.ErrorIs(t, err, models.ErrLiabilityNotSelected)

	_, err = svc.ConfirmLiability(loader, o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition, "подтверждать нечего до выбора")
}

func TestLoaderCreateRejectsBadCountdown(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	loader := env.newUser("loader")
	receiver := env.newUser("receiver")

	_, err := svc.Create(receiver, models.CreateLoaderOrderInput{
		AdID: 1, LoaderID: loader, Currency: "usdt", DealAmount: "1000", CountdownMinutes: 45,
	})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestLoaderPaymentDetailsStopCountdown(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, _, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityPartial25, "")

	o, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoaderDetailsSent, o.Status)
	assert.True(t, o.CountdownStopped)
}

func TestLoaderPaymentDetailsAfterDeadline(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, _, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityPartial25, "")

	svc.now = func() time.Time { return o.CountdownExpiresAt.Add(time.Second) }
	_, err := svc.SendPaymentDetails(receiver, o.ID)
	assert.ErrorIs(t, err, models.ErrCountdownExpired)
}

func TestLoaderCompleteFullPayment(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")
	totalBefore := env.wallets.total("usdt")

	_, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)

	o, err = svc.Complete(receiver, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoaderCompleted, o.Status)

	// Заливщик: своя заморозка вернулась, сделка пришла, комиссия 3% ушла.
	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	assert.True(t, loaderWallet.Available.Equal(decimal.NewFromInt(2000)), "1030-30 своих + 1000 сделки")
	assert.True(t, loaderWallet.Escrow.IsZero())

	// Получатель: отдал 1000, комиссия 2% ушла из резерва.
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	assert.True(t, receiverWallet.Available.IsZero())
	assert.True(t, receiverWallet.Escrow.IsZero())

	platformWallet, _ := env.wallets.Get(models.PlatformUserID, "usdt")
	assert.True(t, platformWallet.Available.Equal(decimal.NewFromInt(50)), "30 + 20 комиссий")
	assert.True(t, env.wallets.total("usdt").Equal(totalBefore))
}

func TestLoaderPartialCompletionAfterFreeze(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityPartial25, "")

	_, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkAssetFrozen(loader, o.ID)
	require.NoError(t, err)

	o, err = svc.Complete(receiver, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoaderCompleted, o.Status)

	// Выплачено 25% от 1000, комиссии считаются от выплаченного.
	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	platformWallet, _ := env.wallets.Get(models.PlatformUserID, "usdt")
	assert.True(t, loaderWallet.Available.Equal(decimal.RequireFromString("1272.5")), "1030 - 7.5 комиссии + 250 выплаты")
	assert.True(t, receiverWallet.Available.Equal(decimal.RequireFromString("765")), "1020 - 250 выплаты - 5 комиссии")
	assert.True(t, platformWallet.Available.Equal(decimal.RequireFromString("12.5")))
}

func TestLoaderToleranceClosesWithoutPayment(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityTolerance, "24h")

	_, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)
	o, err = svc.MarkAssetFrozen(receiver, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoaderAssetFrozenWaiting, o.Status)

	// Толерантное окно не подразумевает выплату при заморозке.
	_, err = svc.Complete(receiver, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)

	svc.now = func() time.Time { return o.AssetFrozenAt.Add(25 * time.Hour) }
	due, err := svc.ListToleranceExpired(svc.now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, svc.ExpireTolerance(due[0]))

	o, _ = svc.loaders.Get(o.ID)
	assert.Equal(t, models.LoaderClosedNoPayment, o.Status)
	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	assert.True(t, loaderWallet.Available.Equal(decimal.NewFromInt(1030)), "полный возврат")
	assert.True(t, receiverWallet.Available.Equal(decimal.NewFromInt(1020)))
}

func TestLoaderCancelPenalty(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")
	totalBefore := env.wallets.total("usdt")

	o, err := svc.Cancel(receiver, o.ID, "не могу принять")
	require.NoError(t, err)
	assert.Equal(t, models.LoaderCancelledByReceiver, o.Status)
	assert.True(t, o.PenaltyAmount.Equal(decimal.NewFromInt(50)), "5% от 1000")
	require.NotNil(t, o.PenaltyPayerID)
	assert.Equal(t, receiver, *o.PenaltyPayerID)

	// Отменившему вернулся только резерв, контрагенту — его заморозка
	// плюс 950 компенсации.
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	platformWallet, _ := env.wallets.Get(models.PlatformUserID, "usdt")
	assert.True(t, receiverWallet.Available.Equal(decimal.NewFromInt(20)))
	assert.True(t, loaderWallet.Available.Equal(decimal.NewFromInt(1980)), "1030 своих + 950 компенсации")
	assert.True(t, platformWallet.Available.Equal(decimal.NewFromInt(50)))
	assert.True(t, env.wallets.total("usdt").Equal(totalBefore))
}

func TestLoaderCancelFreeBeforeLock(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	loader := env.newUser("loader")
	receiver := env.newUser("receiver")

	o, err := svc.Create(receiver, models.CreateLoaderOrderInput{
		AdID: 1, LoaderID: loader, Currency: "usdt", DealAmount: "1000", CountdownMinutes: 60,
	})
	require.NoError(t, err)

	o, err = svc.Cancel(loader, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.LoaderCancelledByLoader, o.Status)
	assert.True(t, o.PenaltyAmount.IsZero())
}

func TestLoaderCancelAfterPaymentSentRejected(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")

	_, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(receiver, o.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
}

func TestLoaderCountdownExpirySweep(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityPartial50, "")

	svc.now = func() time.Time { return o.CountdownExpiresAt.Add(time.Minute) }
	due, err := svc.ListCountdownExpired(svc.now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NoError(t, svc.ExpireCountdown(due[0]))

	o, _ = svc.loaders.Get(o.ID)
	assert.Equal(t, models.LoaderCancelledAuto, o.Status)
	loaderWallet, _ := env.wallets.Get(loader, "usdt")
	receiverWallet, _ := env.wallets.Get(receiver, "usdt")
	assert.True(t, loaderWallet.Available.Equal(decimal.NewFromInt(1030)))
	assert.True(t, receiverWallet.Available.Equal(decimal.NewFromInt(1020)))
	assert.True(t, loaderWallet.Escrow.IsZero())
	assert.True(t, receiverWallet.Escrow.IsZero())

	// Повторный запуск свипа уже не находит заявку и не трогает её.
	require.ErrorIs(t, svc.ExpireCountdown(due[0]), models.ErrInvalidStateTransition)
}

func TestLoaderCompleteWith2FAEnabled(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")

	_, err := svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)

	secret := env.enableTwoFA(receiver)
	_, err = svc.Complete(receiver, o.ID, "000000")
	assert.ErrorIs(t, err, models.ErrRequires2FA)

	o, err = svc.Complete(receiver, o.ID, totpCode(t, secret))
	require.NoError(t, err)
	assert.Equal(t, models.LoaderCompleted, o.Status)
}

func TestLoaderFeedbackEligibility(t *testing.T) {
	env := newTestEnv()
	svc := env.loaderService()
	o, loader, receiver := lockedLoaderOrder(t, env, svc, models.LiabilityFullPayment, "")

	// До завершения отзывы закрыты.
	_, err := svc.Feedback(loader, o.ID, models.LoaderFeedbackInput{Positive: true})
	assert.ErrorIs(t, err, models.ErrFeedbackNotAllowed)

	_, err = svc.SendPaymentDetails(receiver, o.ID)
	require.NoError(t, err)
	_, err = svc.MarkPaymentSent(loader, o.ID)
	require.NoError(t, err)
	_, err = svc.Complete(receiver, o.ID, "")
	require.NoError(t, err)

	_, err = svc.Feedback(loader, o.ID, models.LoaderFeedbackInput{Positive: true, Comment: "быстро"})
	require.NoError(t, err)
	_, err = svc.Feedback(receiver, o.ID, models.LoaderFeedbackInput{Positive: true})
	require.NoError(t, err)

	// Повторный отзыв той же стороны отклоняется.
	_, err = svc.Feedback(loader, o.ID, models.LoaderFeedbackInput{Positive: false})
	assert.ErrorIs(t, err, models.ErrFeedbackNotAllowed)
}
