package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/watersub/internal/audit"
	"github.com/mmeshcher/watersub/internal/ledger"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/pricing"
	"github.com/mmeshcher/watersub/internal/repository"
	"github.com/mmeshcher/watersub/internal/validation"
)

// stubRepo хранит данные в памяти и пересчитывает долг так же, как хранилище.
type stubRepo struct {
	mu sync.Mutex

	users       []model.User
	createUserErr error

	subscribers map[int64]*model.Subscriber
	orders      []model.Order
	payments    []model.Payment
	nextID      int64

	catalog    []model.PriceEntry
	catalogErr error
	promo      model.PromotionSetting
	promoErr   error

	orderFilter  *repository.OrderFilter
	priceUpdates []model.PriceUpdate
	savedPromo   *model.PromotionSetting
	actions      []model.ActionRecord
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		subscribers: map[int64]*model.Subscriber{},
		catalog:     pricing.DefaultEntries(),
		promo:       model.PromotionSetting{Active: false},
	}
}

func (s *stubRepo) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	if s.createUserErr != nil {
		return 0, s.createUserErr
	}
	for _, u := range s.users {
		if u.Login == login {
			return 0, repository.ErrUserExists
		}
	}
	u := model.User{ID: s.id(), Login: login, PasswordHash: passwordHash, Role: role}
	s.users = append(s.users, u)
	return u.ID, nil
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	for _, u := range s.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) CountUsers(ctx context.Context) (int, error) {
	return len(s.users), nil
}

func (s *stubRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *stubRepo) UpdateUser(ctx context.Context, id int64, login string, role model.Role, passwordHash []byte) error {
	for _, u := range s.users {
		if u.Login == login && u.ID != id {
			return repository.ErrUserExists
		}
	}
	for i := range s.users {
		if s.users[i].ID != id {
			continue
		}
		s.users[i].Login = login
		s.users[i].Role = role
		if len(passwordHash) > 0 {
			s.users[i].PasswordHash = passwordHash
		}
		return nil
	}
	return repository.ErrUserNotFound
}

func (s *stubRepo) DeleteUser(ctx context.Context, id int64) error {
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (s *stubRepo) CreateSubscriber(ctx context.Context, sub *model.Subscriber) (int64, error) {
	sub.ID = s.id()
	cp := *sub
	s.subscribers[sub.ID] = &cp
	return sub.ID, nil
}

func (s *stubRepo) UpdateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if _, ok := s.subscribers[sub.ID]; !ok {
		return repository.ErrSubscriberNotFound
	}
	cp := *sub
	s.subscribers[sub.ID] = &cp
	return nil
}

func (s *stubRepo) DeleteSubscriber(ctx context.Context, id int64) (int64, int64, error) {
	if _, ok := s.subscribers[id]; !ok {
		return 0, 0, repository.ErrSubscriberNotFound
	}
	delete(s.subscribers, id)

	var orders, payments int64
	keptOrders := s.orders[:0]
	for _, o := range s.orders {
		if o.SubscriberID == id {
			orders++
			continue
		}
		keptOrders = append(keptOrders, o)
	}
	s.orders = keptOrders

	keptPayments := s.payments[:0]
	for _, p := range s.payments {
		if p.SubscriberID == id {
			payments++
			continue
		}
		keptPayments = append(keptPayments, p)
	}
	s.payments = keptPayments

	return orders, payments, nil
}

func (s *stubRepo) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	sub, ok := s.subscribers[id]
	if !ok {
		return nil, repository.ErrSubscriberNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *stubRepo) ListSubscribers(ctx context.Context, search string, searchType repository.SearchType) ([]model.Subscriber, error) {
	res := make([]model.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		res = append(res, *sub)
	}
	return res, nil
}

func (s *stubRepo) reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error) {
	if _, ok := s.subscribers[subscriberID]; !ok {
		return decimal.Zero, repository.ErrSubscriberNotFound
	}
	return ledger.Reconcile(ctx, s, subscriberID)
}

func (s *stubRepo) UpdateSubscriberDebt(ctx context.Context, subscriberID int64, debt decimal.Decimal) error {
	s.subscribers[subscriberID].Debt = debt
	return nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) (int64, decimal.Decimal, error) {
	if _, ok := s.subscribers[o.SubscriberID]; !ok {
		return 0, decimal.Zero, repository.ErrSubscriberNotFound
	}
	o.ID = s.id()
	s.orders = append(s.orders, *o)
	debt, err := s.reconcile(ctx, o.SubscriberID)
	return o.ID, debt, err
}

func (s *stubRepo) DeleteOrder(ctx context.Context, id int64) (*model.Order, decimal.Decimal, error) {
	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			debt, err := s.reconcile(ctx, o.SubscriberID)
			return &o, debt, err
		}
	}
	return nil, decimal.Zero, repository.ErrOrderNotFound
}

func (s *stubRepo) ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error) {
	var res []model.Order
	for _, o := range s.orders {
		if o.SubscriberID == subscriberID {
			res = append(res, o)
		}
	}
	return res, nil
}

func (s *stubRepo) SearchOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error) {
	s.orderFilter = &f
	res := make([]model.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		res = append(res, s.orders[i])
	}
	return res, nil
}

func (s *stubRepo) CountOrders(ctx context.Context, subscriberID int64, since *time.Time) (int, error) {
	n := 0
	for _, o := range s.orders {
		if o.SubscriberID != subscriberID {
			continue
		}
		if since != nil && o.CreatedAt.Before(*since) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *stubRepo) CreatePayment(ctx context.Context, p *model.Payment) (int64, decimal.Decimal, error) {
	if _, ok := s.subscribers[p.SubscriberID]; !ok {
		return 0, decimal.Zero, repository.ErrSubscriberNotFound
	}
	p.ID = s.id()
	s.payments = append(s.payments, *p)
	debt, err := s.reconcile(ctx, p.SubscriberID)
	return p.ID, debt, err
}

func (s *stubRepo) ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error) {
	var res []model.Payment
	for _, p := range s.payments {
		if p.SubscriberID == subscriberID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *stubRepo) Reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error) {
	return s.reconcile(ctx, subscriberID)
}

func (s *stubRepo) GetCatalog(ctx context.Context) ([]model.PriceEntry, error) {
	return s.catalog, s.catalogErr
}

func (s *stubRepo) UpdatePrice(ctx context.Context, op model.OperationType, upd model.PriceUpdate, fallback decimal.Decimal) (model.PriceEntry, error) {
	s.priceUpdates = append(s.priceUpdates, upd)
	entry := model.PriceEntry{OperationType: op, LegalPrice: fallback, IndividualPrice: fallback}
	if upd.LegalPrice != nil {
		entry.LegalPrice = *upd.LegalPrice
	}
	if upd.IndividualPrice != nil {
		entry.IndividualPrice = *upd.IndividualPrice
	}
	return entry, nil
}

func (s *stubRepo) GetPromoSettings(ctx context.Context) (model.PromotionSetting, error) {
	return s.promo, s.promoErr
}

func (s *stubRepo) UpdatePromoSettings(ctx context.Context, settings model.PromotionSetting) error {
	s.savedPromo = &settings
	return nil
}

func (s *stubRepo) AppendAction(ctx context.Context, rec model.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, rec)
	return nil
}

func (s *stubRepo) ListActions(ctx context.Context, limit, offset int) ([]model.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.actions) {
		return nil, nil
	}
	end := min(offset+limit, len(s.actions))
	return s.actions[offset:end], nil
}

func newTestService(repo *stubRepo) *Service {
	svc := NewService(repo, audit.NewRecorder(repo, nil, time.Second), nil)
	svc.now = func() time.Time { return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func addSubscriber(t *testing.T, repo *stubRepo, class model.ClientClass) int64 {
	t.Helper()
	id, err := repo.CreateSubscriber(context.Background(), &model.Subscriber{ClientClass: class})
	require.NoError(t, err)
	return id
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func isValidation(err error) bool {
	_, ok := validation.AsError(err)
	return ok
}

func TestRegisterUser_FirstUserIsAdmin(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.RegisterUser(ctx, "boss", "secret")
	require.NoError(t, err)
	second, err := svc.RegisterUser(ctx, "clerk", "secret")
	require.NoError(t, err)

	u1, _ := repo.GetUser(ctx, first)
	u2, _ := repo.GetUser(ctx, second)
	assert.Equal(t, model.RoleAdmin, u1.Role)
	assert.Equal(t, model.RoleUser, u2.Role)
	assert.NotEqual(t, []byte("secret"), u1.PasswordHash)
}

func TestRegisterUser_PropagatesDuplicateError(t *testing.T) {
	repo := newStubRepo()
	repo.createUserErr = repository.ErrUserExists
	svc := newTestService(repo)

	_, err := svc.RegisterUser(context.Background(), "login", "pass")
	assert.ErrorIs(t, err, repository.ErrUserExists)
}

func TestAuthenticateUser(t *testing.T) {
	repo := newStubRepo()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users = append(repo.users, model.User{ID: 1, Login: "user", PasswordHash: hashed, Role: model.RoleUser})
	svc := newTestService(repo)
	ctx := context.Background()

	id, err := svc.AuthenticateUser(ctx, "user", "correct")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = svc.AuthenticateUser(ctx, "user", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.AuthenticateUser(ctx, "ghost", "correct")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUser_RecordsLogin(t *testing.T) {
	repo := newStubRepo()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users = append(repo.users, model.User{ID: 7, Login: "user", PasswordHash: hashed, Role: model.RoleUser})
	svc := newTestService(repo)
	ctx := context.Background()

	_, err = svc.AuthenticateUser(ctx, "user", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	svc.audit.Wait()
	assert.Empty(t, repo.actions)

	_, err = svc.AuthenticateUser(ctx, "user", "correct")
	require.NoError(t, err)
	svc.audit.Wait()

	require.Len(t, repo.actions, 1)
	rec := repo.actions[0]
	assert.Equal(t, model.ActionLogin, rec.Action)
	assert.Equal(t, model.EntityUser, rec.EntityType)
	assert.Equal(t, int64(7), rec.UserID)
	require.NotNil(t, rec.EntityID)
	assert.Equal(t, int64(7), *rec.EntityID)
}

func auditedActions(svc *Service, repo *stubRepo, entity string) []string {
	svc.audit.Wait()
	repo.mu.Lock()
	defer repo.mu.Unlock()

	var res []string
	for _, rec := range repo.actions {
		if rec.EntityType == entity {
			res = append(res, rec.Action)
		}
	}
	return res
}

func TestUserManagement(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	admin, err := svc.RegisterUser(ctx, "admin", "pw")
	require.NoError(t, err)
	clerk, err := svc.RegisterUser(ctx, "clerk", "pw")
	require.NoError(t, err)

	_, err = svc.ListUsers(ctx, clerk)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateUser(ctx, clerk, UserInput{Login: "x", Password: "pw", Role: model.RoleAdmin})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(ctx, clerk, admin), ErrForbidden)

	acc, err := svc.CreateUser(ctx, admin, UserInput{Login: "books", Password: "ledger", Role: model.RoleAccountant})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAccountant, acc.Role)

	plain, err := svc.CreateUser(ctx, admin, UserInput{Login: "driver", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, plain.Role)

	_, err = svc.CreateUser(ctx, admin, UserInput{Login: "books", Password: "pw", Role: model.RoleUser})
	assert.ErrorIs(t, err, repository.ErrUserExists)

	_, err = svc.CreateUser(ctx, admin, UserInput{Login: "ghost", Role: "root"})
	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []validation.FieldError{
		{Field: "password", Rule: "required"},
		{Field: "role", Rule: "oneof"},
	}, verr.Fields)

	users, err := svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	before, _ := repo.GetUser(ctx, acc.ID)
	updated, err := svc.UpdateUser(ctx, admin, acc.ID, UserUpdate{Login: "bookkeeper", Role: model.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "bookkeeper", updated.Login)
	assert.Equal(t, model.RoleUser, updated.Role)
	assert.Equal(t, before.PasswordHash, updated.PasswordHash)

	_, err = svc.UpdateUser(ctx, admin, acc.ID, UserUpdate{Login: "bookkeeper", Role: model.RoleAccountant, Password: "fresh"})
	require.NoError(t, err)
	id, err := svc.AuthenticateUser(ctx, "bookkeeper", "fresh")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)

	_, err = svc.UpdateUser(ctx, admin, 404, UserUpdate{Login: "nobody", Role: model.RoleUser})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, admin), ErrSelfDelete)
	require.NoError(t, svc.DeleteUser(ctx, admin, plain.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, plain.ID), repository.ErrUserNotFound)

	_, err = repo.GetUser(ctx, admin)
	require.NoError(t, err)

	actions := auditedActions(svc, repo, model.EntityUser)
	assert.Contains(t, actions, model.ActionCreate)
	assert.Contains(t, actions, model.ActionUpdate)
	assert.Contains(t, actions, model.ActionDelete)
	assert.Contains(t, actions, model.ActionLogin)
}

func TestSearchOrders(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	subID := addSubscriber(t, repo, model.ClientIndividual)

	for range 2 {
		_, err := svc.CreateOrder(ctx, 1, OrderRequest{SubscriberID: subID, Fields: pricing.RawOrderFields{WaterOnly: 1}})
		require.NoError(t, err)
	}

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 7, 0, 0, 0, 0, time.UTC)
	orders, err := svc.SearchOrders(ctx, OrderQuery{Search: "Magtymguly", DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Greater(t, orders[0].ID, orders[1].ID)

	require.NotNil(t, repo.orderFilter)
	assert.Equal(t, repository.OrderSearchAll, repo.orderFilter.Type)
	assert.Equal(t, "Magtymguly", repo.orderFilter.Search)
	assert.Equal(t, &from, repo.orderFilter.From)
	require.NotNil(t, repo.orderFilter.Before)
	assert.Equal(t, time.Date(2026, time.March, 8, 0, 0, 0, 0, time.UTC), *repo.orderFilter.Before)

	_, err = svc.SearchOrders(ctx, OrderQuery{Search: "1", Type: repository.OrderSearchID})
	require.NoError(t, err)
	assert.Equal(t, repository.OrderSearchID, repo.orderFilter.Type)
	assert.Nil(t, repo.orderFilter.Before)

	_, err = svc.SearchOrders(ctx, OrderQuery{Search: "1", Type: "phone"})
	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []validation.FieldError{{Field: "type", Rule: "oneof"}}, verr.Fields)
}

func TestCreateOrder_StandardFullyPaid(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientIndividual)

	res, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{NewBottles: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, pricing.ModeStandard, res.Mode)
	assert.Equal(t, "525.00", res.Order.TotalAmount.StringFixed(2))
	assert.Equal(t, "525.00", res.Order.PaidAmount.StringFixed(2))
	assert.True(t, res.Debt.IsZero())
}

func TestCreateOrder_CreditWithPromo(t *testing.T) {
	repo := newStubRepo()
	repo.promo = model.PromotionSetting{Active: true, WaterPromoPrice: dec("10"), OrderLimit: 10}
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientIndividual)

	res, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{GapBilen: 1, DineSuw: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, pricing.ModeCredit, res.Mode)
	assert.True(t, res.PromoApplied)
	assert.Equal(t, "120.00", res.Order.TotalAmount.StringFixed(2))
	assert.True(t, res.Order.PaidAmount.IsZero())
	assert.Equal(t, "120.00", res.Debt.StringFixed(2))
	assert.Equal(t, 1, res.Order.NewBottles)
	assert.Equal(t, 2, res.Order.WaterOnly)
}

func TestCreateOrder_FreeOverridesTotals(t *testing.T) {
	repo := newStubRepo()
	repo.promo = model.PromotionSetting{Active: true, WaterPromoPrice: dec("10"), OrderLimit: 10}
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientLegal)
	paid := dec("50")

	for _, fields := range []pricing.RawOrderFields{
		{NewBottles: 3, WaterOnly: 2, PaidAmount: &paid},
		{GapBilen: 4, DineSuw: 1},
	} {
		res, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
			SubscriberID: subID,
			Fields:       fields,
			IsFree:       true,
		})
		require.NoError(t, err)
		assert.True(t, res.Order.IsFree)
		assert.True(t, res.Order.TotalAmount.IsZero())
		assert.True(t, res.Order.PaidAmount.IsZero())
	}
}

func TestCreateOrder_PromoStopsAfterLimit(t *testing.T) {
	repo := newStubRepo()
	repo.promo = model.PromotionSetting{Active: true, WaterPromoPrice: dec("10"), OrderLimit: 2}
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientIndividual)

	base := svc.now()
	var applied []bool
	for i := range 3 {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }

		res, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
			SubscriberID: subID,
			Fields:       pricing.RawOrderFields{WaterOnly: 1},
		})
		require.NoError(t, err)
		applied = append(applied, res.PromoApplied)
	}

	assert.Equal(t, []bool{true, true, false}, applied)
}

func TestCreateOrder_DegradedCatalogUsesDefaults(t *testing.T) {
	repo := newStubRepo()
	repo.catalogErr = errors.New("connection reset")
	repo.promoErr = errors.New("connection reset")
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientLegal)

	res, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{ExchangeBottles: 2, WaterOnly: 1},
	})
	require.NoError(t, err)

	assert.False(t, res.PromoApplied)
	assert.Equal(t, "115.00", res.Order.TotalAmount.StringFixed(2))
}

func TestCreateOrder_UnknownSubscriber(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
		SubscriberID: 404,
		Fields:       pricing.RawOrderFields{NewBottles: 1},
	})
	assert.ErrorIs(t, err, repository.ErrSubscriberNotFound)
	assert.Empty(t, repo.orders)
}

func TestCreateOrder_RejectsNegativeInput(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	subID := addSubscriber(t, repo, model.ClientIndividual)
	paid := dec("-1")

	_, err := svc.CreateOrder(context.Background(), 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{NewBottles: -2, PaidAmount: &paid, Mode: "barter"},
	})
	require.Error(t, err)

	verr, ok := validation.AsError(err)
	require.True(t, ok)
	assert.Equal(t, []validation.FieldError{
		{Field: "mode", Rule: "oneof"},
		{Field: "new_bottles", Rule: "gte"},
		{Field: "paid_amount", Rule: "decimal_gte0"},
	}, verr.Fields)
	assert.Empty(t, repo.orders)
}

func TestDeleteOrder_FullyPaidLeavesDebt(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	subID := addSubscriber(t, repo, model.ClientIndividual)

	first, err := svc.CreateOrder(ctx, 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{WaterOnly: 20},
	})
	require.NoError(t, err)
	require.True(t, first.Debt.IsZero())

	zero := decimal.Zero
	second, err := svc.CreateOrder(ctx, 1, OrderRequest{
		SubscriberID: subID,
		Fields:       pricing.RawOrderFields{WaterOnly: 2, PaidAmount: &zero},
	})
	require.NoError(t, err)
	require.Equal(t, "30.00", second.Debt.StringFixed(2))

	debt, err := svc.DeleteOrder(ctx, 1, first.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", debt.StringFixed(2))

	_, err = svc.DeleteOrder(ctx, 1, first.Order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestCreatePayment(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	subID := addSubscriber(t, repo, model.ClientIndividual)

	_, _, err := svc.CreatePayment(ctx, 1, PaymentRequest{SubscriberID: subID, Amount: decimal.Zero})
	assert.True(t, isValidation(err))

	p, debt, err := svc.CreatePayment(ctx, 1, PaymentRequest{SubscriberID: subID, Amount: dec("300")})
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "-300.00", debt.StringFixed(2))

	_, _, err = svc.CreatePayment(ctx, 1, PaymentRequest{SubscriberID: 404, Amount: dec("1")})
	assert.ErrorIs(t, err, repository.ErrSubscriberNotFound)
}

func TestLedgerInvariantThroughService(t *testing.T) {
	repo := newStubRepo()
	repo.promo = model.PromotionSetting{Active: true, WaterPromoPrice: dec("10"), OrderLimit: 5}
	svc := newTestService(repo)
	ctx := context.Background()
	subID := addSubscriber(t, repo, model.ClientLegal)

	rnd := rand.New(rand.NewSource(7))
	var orderIDs []int64

	for range 200 {
		switch rnd.Intn(4) {
		case 0, 1:
			paid := decimal.New(int64(rnd.Intn(50000)), -2)
			fields := pricing.RawOrderFields{
				NewBottles:      rnd.Intn(3),
				ExchangeBottles: rnd.Intn(3),
				WaterOnly:       rnd.Intn(4),
				FreeBottles:     rnd.Intn(2),
			}
			if rnd.Intn(2) == 0 {
				fields.PaidAmount = &paid
			}
			if rnd.Intn(4) == 0 {
				fields = pricing.RawOrderFields{GapBilen: rnd.Intn(3), DineSuw: rnd.Intn(3)}
			}
			res, err := svc.CreateOrder(ctx, 1, OrderRequest{SubscriberID: subID, Fields: fields, IsFree: rnd.Intn(10) == 0})
			require.NoError(t, err)
			orderIDs = append(orderIDs, res.Order.ID)
		case 2:
			_, _, err := svc.CreatePayment(ctx, 1, PaymentRequest{SubscriberID: subID, Amount: decimal.New(int64(rnd.Intn(30000)+1), -2)})
			require.NoError(t, err)
		case 3:
			if len(orderIDs) == 0 {
				continue
			}
			i := rnd.Intn(len(orderIDs))
			_, err := svc.DeleteOrder(ctx, 1, orderIDs[i])
			require.NoError(t, err)
			orderIDs = append(orderIDs[:i], orderIDs[i+1:]...)
		}
	}

	want := decimal.Zero
	for _, o := range repo.orders {
		want = want.Add(o.TotalAmount).Sub(o.PaidAmount)
	}
	for _, p := range repo.payments {
		want = want.Sub(p.Amount)
	}

	first, err := svc.Reconcile(ctx, subID)
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, subID)
	require.NoError(t, err)

	assert.True(t, want.Equal(first), "debt %s, want %s", first, want)
	assert.True(t, first.Equal(second))
}

func TestSubscriberLifecycle(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateSubscriber(ctx, 1, SubscriberInput{ClientClass: "company"})
	assert.True(t, isValidation(err))

	sub, err := svc.CreateSubscriber(ctx, 1, SubscriberInput{
		ClientClass: "individual",
		Address:     "Ashgabat, Magtymguly 12",
		Phones:      []string{"+99365000000"},
	})
	require.NoError(t, err)
	require.NotZero(t, sub.ID)

	limit := 3
	updated, err := svc.UpdateSubscriber(ctx, 1, sub.ID, SubscriberInput{ClientClass: "legal", PromoCustomLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, model.ClientLegal, updated.ClientClass)

	_, err = svc.CreateOrder(ctx, 1, OrderRequest{SubscriberID: sub.ID, Fields: pricing.RawOrderFields{NewBottles: 2, ExchangeBottles: 1, WaterOnly: 4}})
	require.NoError(t, err)

	details, err := svc.GetSubscriber(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, details.Bottles)

	require.NoError(t, svc.DeleteSubscriber(ctx, 1, sub.ID))
	assert.Empty(t, repo.orders)

	_, err = svc.GetSubscriber(ctx, sub.ID)
	assert.ErrorIs(t, err, repository.ErrSubscriberNotFound)

	_, err = svc.ListSubscribers(ctx, "x", "zip")
	assert.True(t, isValidation(err))
}

func TestAdminOnlyOperations(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	admin, err := svc.RegisterUser(ctx, "admin", "pw")
	require.NoError(t, err)
	clerk, err := svc.RegisterUser(ctx, "clerk", "pw")
	require.NoError(t, err)

	price := dec("120")
	_, err = svc.UpdatePrice(ctx, clerk, model.OpNewBottle, model.PriceUpdate{LegalPrice: &price})
	assert.ErrorIs(t, err, ErrForbidden)
	err = svc.UpdatePromoSettings(ctx, clerk, model.DefaultPromotionSetting())
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListActions(ctx, clerk, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	entry, err := svc.UpdatePrice(ctx, admin, model.OpNewBottle, model.PriceUpdate{LegalPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "120.00", entry.LegalPrice.StringFixed(2))
	assert.Equal(t, "105.00", entry.IndividualPrice.StringFixed(2))

	_, err = svc.UpdatePrice(ctx, admin, "delivery", model.PriceUpdate{LegalPrice: &price})
	assert.True(t, isValidation(err))

	bad := model.PromotionSetting{Active: true, WaterPromoPrice: dec("-1"), OrderLimit: -1}
	assert.True(t, isValidation(svc.UpdatePromoSettings(ctx, admin, bad)))

	good := model.PromotionSetting{Active: true, WaterPromoPrice: dec("12.499"), OrderLimit: 4}
	require.NoError(t, svc.UpdatePromoSettings(ctx, admin, good))
	require.NotNil(t, repo.savedPromo)
	assert.Equal(t, "12.50", repo.savedPromo.WaterPromoPrice.StringFixed(2))

	svc.audit.Wait()
	actions, err := svc.ListActions(ctx, admin, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, actions)
}

func TestGetPrices_FallsBackToDefaults(t *testing.T) {
	repo := newStubRepo()
	repo.catalogErr = errors.New("timeout")
	svc := newTestService(repo)

	entries := svc.GetPrices(context.Background())
	require.Len(t, entries, len(model.OperationTypes))
	assert.Equal(t, pricing.DefaultEntries(), entries)
}
