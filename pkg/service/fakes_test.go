package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"p2p_escrow_back/models"
	"p2p_escrow_back/pkg/repository"
)

// Фейки повторяют контракт postgres-слоя в памяти: CAS по версии, отказ
// движения при отрицательном остатке, идемпотентность решений споров.

type fakeUsers struct {
	byID   map[int64]models.User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[int64]models.User{}, nextID: 1}
}

func (f *fakeUsers) CreateUser(username string) (int64, error) {
	id := f.nextID
	f.nextID++
	f.byID[id] = models.User{ID: id, Username: username, CreatedAt: time.Now()}
	return id, nil
}

func (f *fakeUsers) GetUser(id int64) (models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUserByUsername(username string) (models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (f *fakeUsers) SetFrozen(userID int64, frozen bool) error {
	u, ok := f.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.Frozen = frozen
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) SaveTOTPSecret(userID int64, secret string) error {
	u, ok := f.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.TOTPSecret = secret
	u.TwoFAEnabled = false
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) EnableTwoFA(userID int64) error {
	u, ok := f.byID[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.TwoFAEnabled = true
	f.byID[userID] = u
	return nil
}

type fakeWallets struct {
	byID   map[int64]models.Wallet
	txs    map[int64][]models.Transaction
	nextID int64
}

func newFakeWallets() *fakeWallets {
	return &fakeWallets{byID: map[int64]models.Wallet{}, txs: map[int64][]models.Transaction{}, nextID: 1}
}

func (f *fakeWallets) Create(userID int64, currency string) (int64, error) {
	id := f.nextID
	f.nextID++
	f.byID[id] = models.Wallet{ID: id, UserID: userID, Currency: currency}
	return id, nil
}

func (f *fakeWallets) Ensure(userID int64, currency string) (models.Wallet, error) {
	if w, err := f.Get(userID, currency); err == nil {
		return w, nil
	}
	id, _ := f.Create(userID, currency)
	return f.byID[id], nil
}

func (f *fakeWallets) Get(userID int64, currency string) (models.Wallet, error) {
	for _, w := range f.byID {
		if w.UserID == userID && w.Currency == currency {
			return w, nil
		}
	}
	return models.Wallet{}, models.ErrNotFound
}

func (f *fakeWallets) GetByID(id int64) (models.Wallet, error) {
	w, ok := f.byID[id]
	if !ok {
		return models.Wallet{}, models.ErrNotFound
	}
	return w, nil
}

func (f *fakeWallets) ForUser(userID int64) ([]models.Wallet, error) {
	var list []models.Wallet
	for _, w := range f.byID {
		if w.UserID == userID {
			list = append(list, w)
		}
	}
	return list, nil
}

// Apply — атомарный аналог applyMoves: либо проходят все движения, либо ни
// одно не меняет остатков.
func (f *fakeWallets) Apply(moves []repository.LedgerMove) error {
	staged := map[int64]models.Wallet{}
	for _, m := range moves {
		if m.Amount.Sign() <= 0 {
			return models.ErrInvalidAmount
		}
		w, ok := staged[m.WalletID]
		if !ok {
			w, ok = f.byID[m.WalletID]
			if !ok {
				return models.ErrNotFound
			}
		}
		w.Available = w.Available.Add(m.AvailableDelta)
		w.Escrow = w.Escrow.Add(m.EscrowDelta)
		if w.Available.Sign() < 0 {
			return models.ErrInsufficientFunds
		}
		if w.Escrow.Sign() < 0 {
			return models.ErrInsufficientEscrow
		}
		staged[m.WalletID] = w
	}
	for id, w := range staged {
		f.byID[id] = w
	}
	for _, m := range moves {
		f.txs[m.WalletID] = append(f.txs[m.WalletID], models.Transaction{
			ID:             int64(len(f.txs[m.WalletID]) + 1),
			WalletID:       m.WalletID,
			Type:           m.Type,
			Amount:         m.Amount,
			AvailableDelta: m.AvailableDelta,
			EscrowDelta:    m.EscrowDelta,
			Currency:       m.Currency,
			OrderRef:       m.OrderRef,
		})
	}
	return nil
}

func (f *fakeWallets) Transactions(walletID int64) ([]models.Transaction, error) {
	return f.txs[walletID], nil
}

// fund выставляет стартовый доступный остаток через обычный депозит.
func (f *fakeWallets) fund(userID int64, currency, amount string) models.Wallet {
	w, _ := f.Ensure(userID, currency)
	_ = f.Apply([]repository.LedgerMove{
		repository.MoveDeposit(w.ID, decimal.RequireFromString(amount), currency, nil),
	})
	w, _ = f.GetByID(w.ID)
	return w
}

// total возвращает available+escrow по всем кошелькам: сумма инвариантна
// для любых операций, кроме депозита и вывода.
func (f *fakeWallets) total(currency string) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range f.byID {
		if w.Currency == currency {
			sum = sum.Add(w.Available).Add(w.Escrow)
		}
	}
	return sum
}

type fakeOrders struct {
	wallets *fakeWallets
	byID    map[int64]models.Order
	nextID  int64
}

func newFakeOrders(wallets *fakeWallets) *fakeOrders {
	return &fakeOrders{wallets: wallets, byID: map[int64]models.Order{}, nextID: 1}
}

func (f *fakeOrders) Create(o models.Order, moves []repository.LedgerMove) (int64, error) {
	if err := f.wallets.Apply(stampRef(moves, models.OrderTypeMarketplace, f.nextID)); err != nil {
		return 0, err
	}
	o.ID = f.nextID
	o.Version = 1
	f.nextID++
	f.byID[o.ID] = o
	return o.ID, nil
}

func (f *fakeOrders) Get(id int64) (models.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return models.Order{}, models.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) Update(o models.Order, expectedVersion int64, moves []repository.LedgerMove) error {
	stored, ok := f.byID[o.ID]
	if !ok || stored.Version != expectedVersion {
		return models.ErrInvalidStateTransition
	}
	if err := f.wallets.Apply(moves); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) ListAutoReleasable(now time.Time, limit int) ([]models.Order, error) {
	var list []models.Order
	for _, o := range f.byID {
		if o.Status == models.OrderPaid && o.AutoReleaseAt != nil && !o.AutoReleaseAt.After(now) {
			list = append(list, o)
		}
		if len(list) == limit {
			break
		}
	}
	return list, nil
}

type fakeLoaders struct {
	wallets  *fakeWallets
	byID     map[int64]models.LoaderOrder
	feedback []models.LoaderFeedback
	nextID   int64
}

func newFakeLoaders(wallets *fakeWallets) *fakeLoaders {
	return &fakeLoaders{wallets: wallets, byID: map[int64]models.LoaderOrder{}, nextID: 1}
}

func (f *fakeLoaders) Create(o models.LoaderOrder) (int64, error) {
	o.ID = f.nextID
	o.Version = 1
	f.nextID++
	f.byID[o.ID] = o
	return o.ID, nil
}

func (f *fakeLoaders) Get(id int64) (models.LoaderOrder, error) {
	o, ok := f.byID[id]
	if !ok {
		return models.LoaderOrder{}, models.ErrNotFound
	}
	return o, nil
}

func (f *fakeLoaders) Update(o models.LoaderOrder, expectedVersion int64, moves []repository.LedgerMove) error {
	stored, ok := f.byID[o.ID]
	if !ok || stored.Version != expectedVersion {
		return models.ErrInvalidStateTransition
	}
	if err := f.wallets.Apply(moves); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	f.byID[o.ID] = o
	return nil
}

func (f *fakeLoaders) ListCountdownExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	var list []models.LoaderOrder
	for _, o := range f.byID {
		if o.Status == models.LoaderAwaitingDetails && !o.CountdownStopped &&
			o.CountdownExpiresAt != nil && !o.CountdownExpiresAt.After(now) {
			list = append(list, o)
		}
		if len(list) == limit {
			break
		}
	}
	return list, nil
}

func (f *fakeLoaders) ListToleranceExpired(now time.Time, limit int) ([]models.LoaderOrder, error) {
	var list []models.LoaderOrder
	for _, o := range f.byID {
		if o.Status != models.LoaderAssetFrozenWaiting || o.AssetFrozenAt == nil || o.ToleranceMinutes == 0 {
			continue
		}
		if !o.AssetFrozenAt.Add(time.Duration(o.ToleranceMinutes) * time.Minute).After(now) {
			list = append(list, o)
		}
		if len(list) == limit {
			break
		}
	}
	return list, nil
}

func (f *fakeLoaders) AddFeedback(fb models.LoaderFeedback) (int64, error) {
	for _, existing := range f.feedback {
		if existing.OrderID == fb.OrderID && existing.AuthorID == fb.AuthorID {
			return 0, models.ErrFeedbackNotAllowed
		}
	}
	fb.ID = int64(len(f.feedback) + 1)
	f.feedback = append(f.feedback, fb)
	return fb.ID, nil
}

func (f *fakeLoaders) Feedback(orderID int64) ([]models.LoaderFeedback, error) {
	var list []models.LoaderFeedback
	for _, fb := range f.feedback {
		if fb.OrderID == orderID {
			list = append(list, fb)
		}
	}
	return list, nil
}

type fakeDisputes struct {
	wallets  *fakeWallets
	orders   *fakeOrders
	loaders  *fakeLoaders
	byID     map[int64]models.Dispute
	messages map[int64][]models.DisputeMessage
	applied  map[string]bool
	nextID   int64
}

func newFakeDisputes(wallets *fakeWallets, orders *fakeOrders, loaders *fakeLoaders) *fakeDisputes {
	return &fakeDisputes{
		wallets:  wallets,
		orders:   orders,
		loaders:  loaders,
		byID:     map[int64]models.Dispute{},
		messages: map[int64][]models.DisputeMessage{},
		applied:  map[string]bool{},
		nextID:   1,
	}
}

func (f *fakeDisputes) Open(d models.Dispute, expectedOrderVersion int64) (int64, error) {
	for _, existing := range f.byID {
		if existing.OrderType == d.OrderType && existing.OrderID == d.OrderID &&
			existing.Status != models.DisputeResolved {
			return 0, models.ErrDisputeAlreadyOpen
		}
	}
	if d.OrderType == models.OrderTypeLoader {
		o, err := f.loaders.Get(d.OrderID)
		if err != nil {
			return 0, err
		}
		o.Status = models.LoaderDisputed
		if err := f.loaders.Update(o, expectedOrderVersion, nil); err != nil {
			return 0, err
		}
	} else {
		o, err := f.orders.Get(d.OrderID)
		if err != nil {
			return 0, err
		}
		o.Status = models.OrderDisputed
		if err := f.orders.Update(o, expectedOrderVersion, nil); err != nil {
			return 0, err
		}
	}
	d.ID = f.nextID
	d.Status = models.DisputeOpen
	d.CreatedAt = time.Now()
	f.nextID++
	f.byID[d.ID] = d
	return d.ID, nil
}

func (f *fakeDisputes) Get(id int64) (models.Dispute, error) {
	d, ok := f.byID[id]
	if !ok {
		return models.Dispute{}, models.ErrNotFound
	}
	return d, nil
}

func (f *fakeDisputes) GetByOrder(orderType string, orderID int64) (models.Dispute, error) {
	for _, d := range f.byID {
		if d.OrderType == orderType && d.OrderID == orderID {
			return d, nil
		}
	}
	return models.Dispute{}, models.ErrNotFound
}

func (f *fakeDisputes) List(status string) ([]models.Dispute, error) {
	var list []models.Dispute
	for _, d := range f.byID {
		if status == "" || d.Status == status {
			list = append(list, d)
		}
	}
	return list, nil
}

func (f *fakeDisputes) MarkInReview(id int64) error {
	d, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	d.Status = models.DisputeInReview
	f.byID[id] = d
	return nil
}

func (f *fakeDisputes) AddMessage(m models.DisputeMessage) (int64, error) {
	m.ID = int64(len(f.messages[m.DisputeID]) + 1)
	m.CreatedAt = time.Now()
	f.messages[m.DisputeID] = append(f.messages[m.DisputeID], m)
	return m.ID, nil
}

func (f *fakeDisputes) Messages(disputeID int64) ([]models.DisputeMessage, error) {
	return f.messages[disputeID], nil
}

func (f *fakeDisputes) Resolve(res models.DisputeResolution, apply repository.ResolutionApply) (bool, error) {
	if f.applied[res.RequestID.String()] {
		return false, nil
	}
	if apply.OrderType == models.OrderTypeLoader {
		o, err := f.loaders.Get(apply.OrderID)
		if err != nil {
			return false, err
		}
		o.Status = apply.OrderStatus
		o.CompletedAt = &apply.CompletedAt
		o.PenaltyAmount = apply.PenaltyAmount
		o.PenaltyPayerID = apply.PenaltyPayerID
		o.LoaderFrozen = decimal.Zero
		o.ReceiverFrozen = decimal.Zero
		o.LoaderFeeReserve = decimal.Zero
		o.ReceiverFeeReserve = decimal.Zero
		if err := f.loaders.Update(o, apply.ExpectedOrderVersion, apply.Moves); err != nil {
			return false, err
		}
	} else {
		o, err := f.orders.Get(apply.OrderID)
		if err != nil {
			return false, err
		}
		o.Status = apply.OrderStatus
		o.CompletedAt = &apply.CompletedAt
		o.EscrowHeld = false
		if err := f.orders.Update(o, apply.ExpectedOrderVersion, apply.Moves); err != nil {
			return false, err
		}
	}
	f.applied[res.RequestID.String()] = true

	d := f.byID[res.DisputeID]
	d.Status = models.DisputeResolved
	d.Resolution = &res.Outcome
	d.ResolvedBy = &res.ResolvedBy
	now := time.Now()
	d.ResolvedAt = &now
	f.byID[res.DisputeID] = d
	return true, nil
}

type fakeWithdrawals struct {
	wallets *fakeWallets
	byID    map[int64]models.WithdrawalRequest
	nextID  int64
}

func newFakeWithdrawals(wallets *fakeWallets) *fakeWithdrawals {
	return &fakeWithdrawals{wallets: wallets, byID: map[int64]models.WithdrawalRequest{}, nextID: 1}
}

func (f *fakeWithdrawals) Create(req models.WithdrawalRequest) (int64, error) {
	ref := fmt.Sprintf("withdrawal:%d", f.nextID)
	if err := f.wallets.Apply([]repository.LedgerMove{
		repository.MoveWithdraw(req.WalletID, req.Amount, req.Currency, &ref),
	}); err != nil {
		return 0, err
	}
	req.ID = f.nextID
	req.Status = models.WithdrawalPending
	req.CreatedAt = time.Now()
	f.nextID++
	f.byID[req.ID] = req
	return req.ID, nil
}

func (f *fakeWithdrawals) Get(id int64) (models.WithdrawalRequest, error) {
	req, ok := f.byID[id]
	if !ok {
		return models.WithdrawalRequest{}, models.ErrNotFound
	}
	return req, nil
}

func (f *fakeWithdrawals) ListByStatus(status string) ([]models.WithdrawalRequest, error) {
	var list []models.WithdrawalRequest
	for _, req := range f.byID {
		if req.Status == status {
			list = append(list, req)
		}
	}
	return list, nil
}

func (f *fakeWithdrawals) Approve(id, reviewerID int64) error {
	req, ok := f.byID[id]
	if !ok || req.Status != models.WithdrawalPending {
		return models.ErrInvalidStateTransition
	}
	req.Status = models.WithdrawalApproved
	req.ReviewerID = &reviewerID
	f.byID[id] = req
	return nil
}

func (f *fakeWithdrawals) Reject(id, reviewerID int64, reason string) error {
	req, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}
	if req.Status != models.WithdrawalPending {
		return models.ErrInvalidStateTransition
	}
	ref := fmt.Sprintf("withdrawal:%d", id)
	if err := f.wallets.Apply([]repository.LedgerMove{
		repository.MoveRefundAvailable(req.WalletID, req.Amount, req.Currency, &ref),
	}); err != nil {
		return err
	}
	req.Status = models.WithdrawalRejected
	req.ReviewerID = &reviewerID
	req.RejectReason = &reason
	f.byID[id] = req
	return nil
}

func (f *fakeWithdrawals) SumSince(userID int64, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, req := range f.byID {
		if req.Status == models.WithdrawalRejected || req.CreatedAt.Before(since) {
			continue
		}
		if userID != 0 && req.UserID != userID {
			continue
		}
		sum = sum.Add(req.Amount)
	}
	return sum, nil
}

func (f *fakeWithdrawals) CountForUser(userID int64) (int, error) {
	n := 0
	for _, req := range f.byID {
		if req.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeTreasury struct {
	controls models.TreasuryControls
	actions  []models.AdminAction
}

func newFakeTreasury() *fakeTreasury {
	return &fakeTreasury{controls: models.TreasuryControls{
		ID:                  1,
		DepositsEnabled:     true,
		WithdrawalsEnabled:  true,
		SweepsEnabled:       true,
		MinWithdrawalAmount: decimal.NewFromInt(1),
	}}
}

func (f *fakeTreasury) Get() (models.TreasuryControls, error) {
	return f.controls, nil
}

func (f *fakeTreasury) Save(c models.TreasuryControls) error {
	c.ID = 1
	f.controls = c
	return nil
}

func (f *fakeTreasury) SetMasterUnlock(unlocked bool, byUserID int64) error {
	f.controls.MasterWalletUnlocked = unlocked
	if unlocked {
		f.controls.MasterUnlockedBy = &byUserID
	} else {
		f.controls.MasterUnlockedBy = nil
	}
	return nil
}

func (f *fakeTreasury) LogAdminAction(a models.AdminAction) error {
	a.ID = int64(len(f.actions) + 1)
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeTreasury) AdminActions(limit int) ([]models.AdminAction, error) {
	if len(f.actions) > limit {
		return f.actions[len(f.actions)-limit:], nil
	}
	return f.actions, nil
}

func stampRef(moves []repository.LedgerMove, orderType string, id int64) []repository.LedgerMove {
	ref := repository.OrderRef(orderType, id)
	stamped := make([]repository.LedgerMove, len(moves))
	for i, m := range moves {
		if m.OrderRef == nil {
			m.OrderRef = &ref
		}
		stamped[i] = m
	}
	return stamped
}

// fixedQuoter подменяет CoinGecko детерминированным курсом.
type fixedQuoter struct {
	rate decimal.Decimal
}

func (q fixedQuoter) Quote(fiatAmount decimal.Decimal, fiatCurrency, crypto string) (decimal.Decimal, error) {
	return fiatAmount.Div(q.rate).Round(8), nil
}

// testEnv собирает фейковые репозитории и сервисы поверх них.
type testEnv struct {
	users       *fakeUsers
	wallets     *fakeWallets
	orders      *fakeOrders
	loaders     *fakeLoaders
	disputes    *fakeDisputes
	withdrawals *fakeWithdrawals
	treasury    *fakeTreasury
	twofa       *TwoFAService
}

func newTestEnv() *testEnv {
	users := newFakeUsers()
	users.CreateUser("platform")
	wallets := newFakeWallets()
	orders := newFakeOrders(wallets)
	loaders := newFakeLoaders(wallets)
	return &testEnv{
		users:       users,
		wallets:     wallets,
		orders:      orders,
		loaders:     loaders,
		disputes:    newFakeDisputes(wallets, orders, loaders),
		withdrawals: newFakeWithdrawals(wallets),
		treasury:    newFakeTreasury(),
		twofa:       NewTwoFAService(users, "test"),
	}
}

func (e *testEnv) newUser(username string) int64 {
	id, _ := e.users.CreateUser(username)
	return id
}

func (e *testEnv) staff(username string) int64 {
	id := e.newUser(username)
	u := e.users.byID[id]
	u.CanResolveDisputes = true
	u.CanApproveWithdrawal = true
	u.CanManageTreasury = true
	e.users.byID[id] = u
	return id
}

// enableTwoFA включает 2FA и возвращает секрет для генерации кодов в тесте.
func (e *testEnv) enableTwoFA(userID int64) string {
	secret, _, err := e.twofa.Setup(userID)
	if err != nil {
		panic(err)
	}
	if err := e.users.EnableTwoFA(userID); err != nil {
		panic(err)
	}
	return secret
}

func (e *testEnv) orderService() *OrderService {
	return NewOrderService(e.orders, e.wallets, e.users, e.twofa,
		fixedQuoter{rate: decimal.NewFromInt(1)}, models.DefaultFeeSchedule(), 24*time.Hour)
}

func (e *testEnv) loaderService() *LoaderService {
	return NewLoaderService(e.loaders, e.wallets, e.users, e.twofa, models.DefaultFeeSchedule())
}

func (e *testEnv) disputeService() *DisputeService {
	return NewDisputeService(e.disputes, e.orders, e.loaders, e.wallets, e.users, e.twofa)
}

func (e *testEnv) withdrawalService() *WithdrawalService {
	return NewWithdrawalService(e.withdrawals, e.wallets, e.users, e.treasury)
}

func (e *testEnv) treasuryService() *TreasuryService {
	return NewTreasuryService(e.treasury, e.users, e.twofa)
}
