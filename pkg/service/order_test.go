package service

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p_escrow_back/models"
)

func totpCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func TestOrderSellAdLifecycle(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")
	totalBefore := env.wallets.total("usdt")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 7, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderEscrowed, o.Status)
	assert.True(t, o.EscrowHeld)
	assert.True(t, o.PlatformFee.Equal(decimal.NewFromInt(20)), "комиссия 20% от 100")
	assert.True(t, o.SellerReceives.Equal(decimal.NewFromInt(80)))

	buyerWallet, _ := env.wallets.Get(buyer, "usdt")
	assert.True(t, buyerWallet.Available.IsZero())
	assert.True(t, buyerWallet.Escrow.Equal(decimal.NewFromInt(100)))

	o, err = svc.MarkPaid(buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
	require.NotNil(t, o.AutoReleaseAt)

	o, err = svc.Deliver(vendor, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, o.Status)

	secret := env.enableTwoFA(buyer)
	o, err = svc.Confirm(buyer, o.ID, totpCode(t, secret))
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)
	assert.False(t, o.EscrowHeld)

	vendorWallet, _ := env.wallets.Get(vendor, "usdt")
	platformWallet, _ := env.wallets.Get(models.PlatformUserID, "usdt")
	buyerWallet, _ = env.wallets.Get(buyer, "usdt")
	assert.True(t, vendorWallet.Available.Equal(decimal.NewFromInt(80)))
	assert.True(t, platformWallet.Available.Equal(decimal.NewFromInt(20)))
	assert.True(t, buyerWallet.Available.IsZero())
	assert.True(t, buyerWallet.Escrow.IsZero())
	assert.True(t, env.wallets.total("usdt").Equal(totalBefore), "сумма остатков не меняется")
}

func TestOrderConfirmTwoFAGate(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 1, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)
	_, err = svc.MarkPaid(buyer, o.ID)
	require.NoError(t, err)
	_, err = svc.Deliver(vendor, o.ID)
	require.NoError(t, err)

	// Без настроенной 2FA подтверждение невозможно в принципе.
	_, err = svc.Confirm(buyer, o.ID, "")
	assert.ErrorIs(t, err, models.ErrRequires2FASetup)

	env.enableTwoFA(buyer)
	_, err = svc.Confirm(buyer, o.ID, "000000")
	assert.ErrorIs(t, err, models.ErrRequires2FA)

	// Неудачные попытки не тронули эскроу.
	buyerWallet, _ := env.wallets.Get(buyer, "usdt")
	assert.True(t, buyerWallet.Escrow.Equal(decimal.NewFromInt(100)))
}

func TestOrderBuyAdDepositFlow(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "50")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 2, VendorID: vendor, Intent: models.IntentBuyAd,
		Currency: "usdt", FiatAmount: "50", FiatCurrency: "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderAwaitingDeposit, o.Status)
	assert.False(t, o.EscrowHeld)

	// Депозит доступен только покупателю.
	_, err = svc.Deposit(vendor, o.ID)
	assert.ErrorIs(t, err, models.ErrNotOrderParty)

	o, err = svc.Deposit(buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderEscrowed, o.Status)
	assert.True(t, o.EscrowHeld)

	buyerWallet, _ := env.wallets.Get(buyer, "usdt")
	assert.True(t, buyerWallet.Escrow.Equal(decimal.NewFromInt(50)))
}

func TestOrderCreateInsufficientFunds(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "10")

	_, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 3, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
}

func TestOrderCancelRefundsEscrow(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 4, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)

	o, err = svc.Cancel(vendor, o.ID, "передумал")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, o.Status)

	buyerWallet, _ := env.wallets.Get(buyer, "usdt")
	assert.True(t, buyerWallet.Available.Equal(decimal.NewFromInt(100)))
	assert.True(t, buyerWallet.Escrow.IsZero())
}

func TestOrderCancelAfterPaidRejected(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 5, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)
	_, err = svc.MarkPaid(buyer, o.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(buyer, o.ID, "поздно")
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)
}

func TestOrderAutoRelease(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 6, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)
	o, err = svc.MarkPaid(buyer, o.ID)
	require.NoError(t, err)

	// До дедлайна принудительный выпуск отклоняется.
	_, err = svc.AutoRelease(o)
	assert.ErrorIs(t, err, models.ErrInvalidStateTransition)

	svc.now = func() time.Time { return o.AutoReleaseAt.Add(time.Minute) }
	due, err := svc.ListAutoReleasable(svc.now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	released, err := svc.AutoRelease(due[0])
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, released.Status)

	vendorWallet, _ := env.wallets.Get(vendor, "usdt")
	assert.True(t, vendorWallet.Available.Equal(decimal.NewFromInt(80)))
}

func TestOrderGetVisibility(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	stranger := env.newUser("stranger")
	arbiter := env.staff("arbiter")
	env.wallets.fund(buyer, "usdt", "100")

	o, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 8, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	require.NoError(t, err)

	_, err = svc.Get(stranger, o.ID)
	assert.ErrorIs(t, err, models.ErrNotOrderParty)
	_, err = svc.Get(arbiter, o.ID)
	assert.NoError(t, err)
}

func TestFrozenAccountCannotOpenOrders(t *testing.T) {
	env := newTestEnv()
	svc := env.orderService()
	buyer := env.newUser("buyer")
	vendor := env.newUser("vendor")
	env.wallets.fund(buyer, "usdt", "100")
	require.NoError(t, env.users.SetFrozen(buyer, true))

	_, err := svc.Create(buyer, models.CreateOrderInput{
		OfferID: 9, VendorID: vendor, Intent: models.IntentSellAd,
		Currency: "usdt", FiatAmount: "100", FiatCurrency: "usd",
	})
	assert.ErrorIs(t, err, models.ErrAccountFrozen)
}
