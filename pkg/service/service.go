package service

import (
	"context"
	"time"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

type Authorization interface {
	Login(username string) (models.User, error)
	GetUser(id int64) (models.User, error)
}

type TwoFA interface {
	Setup(userID int64) (secret, url string, err error)
	VerifySetup(userID int64, code string) error
	Require(user models.User, code string) error
	RequireIfEnabled(user models.User, code string) error
}

type Wallets interface {
	Wallets(userID int64) ([]models.Wallet, error)
	Transactions(userID int64, currency string) ([]models.Transaction, error)
	Deposit(userID int64, input models.DepositInput) (models.Wallet, error)
}

type Orders interface {
	Create(buyerID int64, input models.CreateOrderInput) (models.Order, error)
	Get(actorID, orderID int64) (models.Order, error)
	Deposit(actorID, orderID int64) (models.Order, error)
	MarkPaid(actorID, orderID int64) (models.Order, error)
	Deliver(actorID, orderID int64) (models.Order, error)
	Confirm(actorID, orderID int64, totpCode string) (models.Order, error)
	Cancel(actorID, orderID int64, reason string) (models.Order, error)
}

type Loaders interface {
	Create(receiverID int64, input models.CreateLoaderOrderInput) (models.LoaderOrder, error)
	Get(actorID, orderID int64) (models.LoaderOrder, error)
	SelectLiability(actorID, orderID int64, input models.SelectLiabilityInput) (models.LoaderOrder, error)
	ConfirmLiability(actorID, orderID int64) (models.LoaderOrder, error)
	SendPaymentDetails(actorID, orderID int64) (models.LoaderOrder, error)
	MarkPaymentSent(actorID, orderID int64) (models.LoaderOrder, error)
	MarkAssetFrozen(actorID, orderID int64) (models.LoaderOrder, error)
	Complete(actorID, orderID int64, totpCode string) (models.LoaderOrder, error)
	Cancel(actorID, orderID int64, reason string) (models.LoaderOrder, error)
	Feedback(actorID, orderID int64, input models.LoaderFeedbackInput) (models.LoaderFeedback, error)
}

type DisputeEngine interface {
	OpenMarketplace(actorID, orderID int64, reason string) (models.Dispute, error)
	OpenLoader(actorID, orderID int64, reason string) (models.Dispute, error)
	List(staffID int64, status string) ([]models.Dispute, error)
	Detail(staffID, disputeID int64) (models.DisputeDetail, error)
	PostMessage(actorID, disputeID int64, body string) (models.DisputeMessage, error)
	Resolve(staffID, disputeID int64, input models.ResolveDisputeInput) (models.Dispute, error)
	Freeze(staffID, userID int64) error
	Unfreeze(staffID, userID int64) error
}

type WithdrawalFlow interface {
	Request(userID int64, input models.WithdrawInput) (models.WithdrawalRequest, error)
	Get(actorID, id int64) (models.WithdrawalRequest, error)
	ListPending(staffID int64) ([]models.WithdrawalRequest, error)
	Approve(staffID, id int64) (models.WithdrawalRequest, error)
	Reject(staffID, id int64, reason string) (models.WithdrawalRequest, error)
}

type TreasuryDesk interface {
	Get(staffID int64) (models.TreasuryControls, error)
	Patch(staffID int64, patch models.TreasuryPatch) (models.TreasuryControls, error)
	Unlock(staffID int64, totpCode string) (models.TreasuryControls, error)
	Lock(staffID int64) (models.TreasuryControls, error)
	AdminActions(staffID int64, limit int) ([]models.AdminAction, error)
}

type DeadlineSweeper interface {
	Run(ctx context.Context)
}

// Config — настройки ядра, собираются из viper в main.
type Config struct {
	Fees              models.FeeSchedule
	AutoReleaseWindow time.Duration
	SweepInterval     time.Duration
	TOTPIssuer        string
	CoingeckoAPIKey   string
}

type Service struct {
	Authorization
	TwoFA
	Wallets
	Orders
	Loaders
	DisputeEngine
	WithdrawalFlow
	TreasuryDesk
	DeadlineSweeper
}

func NewService(repos *repository.Repository, cfg Config) *Service {
	twofa := NewTwoFAService(repos.Authorization, cfg.TOTPIssuer)
	rates := NewRateService(cfg.CoingeckoAPIKey)
	orders := NewOrderService(repos.Orders, repos.Wallets, repos.Authorization, twofa, rates, cfg.Fees, cfg.AutoReleaseWindow)
	loaders := NewLoaderService(repos.LoaderOrders, repos.Wallets, repos.Authorization, twofa, cfg.Fees)
	return &Service{
		Authorization:   NewAuthService(repos.Authorization),
		TwoFA:           twofa,
		Wallets:         NewWalletService(repos.Wallets, repos.Authorization, repos.Treasury),
		Orders:          orders,
		Loaders:         loaders,
		DisputeEngine:   NewDisputeService(repos.Disputes, repos.Orders, repos.LoaderOrders, repos.Wallets, repos.Authorization, twofa),
		WithdrawalFlow:  NewWithdrawalService(repos.Withdrawals, repos.Wallets, repos.Authorization, repos.Treasury),
		TreasuryDesk:    NewTreasuryService(repos.Treasury, repos.Authorization, twofa),
		DeadlineSweeper: NewSweeper(orders, loaders, cfg.SweepInterval),
	}
}

// DefaultConfig — значения по умолчанию на случай пустого конфига.
func DefaultConfig() Config {
	return Config{
		Fees:              models.DefaultFeeSchedule(),
		AutoReleaseWindow: 24 * time.Hour,
		SweepInterval:     time.Minute,
		TOTPIssuer:        "p2p-escrow",
	}
}
