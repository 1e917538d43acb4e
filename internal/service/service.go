// Package service реализует бизнес-логику учёта подписчиков: заказы, платежи, цены и акцию.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/watersub/internal/audit"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/pricing"
	"github.com/mmeshcher/watersub/internal/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается, если роли оператора недостаточно для операции.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfDelete возвращается при попытке администратора удалить собственную учётную запись.
	ErrSelfDelete = errors.New("cannot delete own account")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, login string, role model.Role, passwordHash []byte) error
	DeleteUser(ctx context.Context, id int64) error

	CreateSubscriber(ctx context.Context, s *model.Subscriber) (int64, error)
	UpdateSubscriber(ctx context.Context, s *model.Subscriber) error
	DeleteSubscriber(ctx context.Context, id int64) (int64, int64, error)
	GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context, search string, searchType repository.SearchType) ([]model.Subscriber, error)

	CreateOrder(ctx context.Context, o *model.Order) (int64, decimal.Decimal, error)
	DeleteOrder(ctx context.Context, id int64) (*model.Order, decimal.Decimal, error)
	ListOrders(ctx context.Context, subscriberID int64) ([]model.Order, error)
	SearchOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error)
	CountOrders(ctx context.Context, subscriberID int64, since *time.Time) (int, error)

	CreatePayment(ctx context.Context, p *model.Payment) (int64, decimal.Decimal, error)
	ListPayments(ctx context.Context, subscriberID int64) ([]model.Payment, error)

	Reconcile(ctx context.Context, subscriberID int64) (decimal.Decimal, error)

	GetCatalog(ctx context.Context) ([]model.PriceEntry, error)
	UpdatePrice(ctx context.Context, op model.OperationType, upd model.PriceUpdate, fallback decimal.Decimal) (model.PriceEntry, error)
	GetPromoSettings(ctx context.Context) (model.PromotionSetting, error)
	UpdatePromoSettings(ctx context.Context, s model.PromotionSetting) error

	AppendAction(ctx context.Context, rec model.ActionRecord) error
	ListActions(ctx context.Context, limit, offset int) ([]model.ActionRecord, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo      Repository
	evaluator *pricing.Evaluator
	audit     *audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewService создаёт сервис поверх репозитория и журнала действий.
func NewService(repo Repository, recorder *audit.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		evaluator: pricing.NewEvaluator(repo, logger),
		audit:     recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Close дожидается записи журнала и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.audit.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового оператора. Первый зарегистрированный оператор становится администратором.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleUser
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		role = model.RoleAdmin
	}

	id, err := s.repo.CreateUser(ctx, login, hashed, role)
	if err != nil {
		return 0, err
	}

	s.audit.Record(id, model.ActionCreate, model.EntityUser, audit.ID(id), map[string]any{
		"login": login,
		"role":  role,
	})
	return id, nil
}

// AuthenticateUser проверяет логин и пароль оператора и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	s.audit.Record(u.ID, model.ActionLogin, model.EntityUser, audit.ID(u.ID), nil)
	return u.ID, nil
}

func (s *Service) requireRole(ctx context.Context, actorID int64, roles ...model.Role) error {
	u, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrForbidden
		}
		return err
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return ErrForbidden
}

// ListActions возвращает страницу журнала действий. Доступно только администратору.
func (s *Service) ListActions(ctx context.Context, actorID int64, page int) ([]model.ActionRecord, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return nil, err
	}

	const perPage = 50
	if page < 1 {
		page = 1
	}
	return s.repo.ListActions(ctx, perPage, (page-1)*perPage)
}
