package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
)

type Authorization interface {
	CreateUser(username string) (int64, error)
	GetUser(id int64) (models.User, error)
	GetUserByUsername(username string) (models.User, error)
	SetFrozen(userID int64, frozen bool) error
	SaveTOTPSecret(userID int64, secret string) error
	EnableTwoFA(userID int64) error
}

type Wallets interface {
	Create(userID int64, currency string) (int64, error)
	Ensure(userID int64, currency string) (models.Wallet, error)
	Get(userID int64, currency string) (models.Wallet, error)
	GetByID(id int64) (models.Wallet, error)
	ForUser(userID int64) ([]models.Wallet, error)
	Apply(moves []LedgerMove) error
	Transactions(walletID int64) ([]models.Transaction, error)
}

type Orders interface {
	Create(o models.Order, moves []LedgerMove) (int64, error)
	Get(id int64) (models.Order, error)
	Update(o models.Order, expectedVersion int64, moves []LedgerMove) error
	ListAutoReleasable(now time.Time, limit int) ([]models.Order, error)
}

type LoaderOrders interface {
	Create(o models.LoaderOrder) (int64, error)
	Get(id int64) (models.LoaderOrder, error)
	Update(o models.LoaderOrder, expectedVersion int64, moves []LedgerMove) error
	ListCountdownExpired(now time.Time, limit int) ([]models.LoaderOrder, error)
	ListToleranceExpired(now time.Time, limit int) ([]models.LoaderOrder, error)
	AddFeedback(f models.LoaderFeedback) (int64, error)
	Feedback(orderID int64) ([]models.LoaderFeedback, error)
}

type Disputes interface {
	Open(d models.Dispute, expectedOrderVersion int64) (int64, error)
	Get(id int64) (models.Dispute, error)
	GetByOrder(orderType string, orderID int64) (models.Dispute, error)
	List(status string) ([]models.Dispute, error)
	MarkInReview(id int64) error
	AddMessage(m models.DisputeMessage) (int64, error)
	Messages(disputeID int64) ([]models.DisputeMessage, error)
	Resolve(res models.DisputeResolution, apply ResolutionApply) (bool, error)
}

type Withdrawals interface {
	Create(req models.WithdrawalRequest) (int64, error)
	Get(id int64) (models.WithdrawalRequest, error)
	ListByStatus(status string) ([]models.WithdrawalRequest, error)
	Approve(id, reviewerID int64) error
	Reject(id, reviewerID int64, reason string) error
	SumSince(userID int64, since time.Time) (decimal.Decimal, error)
	CountForUser(userID int64) (int, error)
}

type Treasury interface {
	Get() (models.TreasuryControls, error)
	Save(c models.TreasuryControls) error
	SetMasterUnlock(unlocked bool, byUserID int64) error
	LogAdminAction(a models.AdminAction) error
	AdminActions(limit int) ([]models.AdminAction, error)
}

type Repository struct {
	Authorization
	Wallets
	Orders
	LoaderOrders
	Disputes
	Withdrawals
	Treasury
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Authorization: NewAuthPostgres(db),
		Wallets:       NewWalletPostgres(db),
		Orders:        NewOrderPostgres(db),
		LoaderOrders:  NewLoaderOrderPostgres(db),
		Disputes:      NewDisputePostgres(db),
		Withdrawals:   NewWithdrawalPostgres(db),
		Treasury:      NewTreasuryPostgres(db),
	}
}
