package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/watersub/internal/audit"
	"github.com/mmeshcher/watersub/internal/model"
	"github.com/mmeshcher/watersub/internal/validation"
)

// UserInput описывает оператора, заводимого администратором.
type UserInput struct {
	Login    string     `json:"login" validate:"required,max=64"`
	Password string     `json:"password" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=admin accountant user"`
}

// UserUpdate описывает изменение оператора. Пустой пароль не меняется.
type UserUpdate struct {
	Login    string     `json:"login" validate:"required,max=64"`
	Password string     `json:"password"`
	Role     model.Role `json:"role" validate:"required,oneof=admin accountant user"`
}

// ListUsers возвращает всех операторов. Доступно только администратору.
func (s *Service) ListUsers(ctx context.Context, actorID int64) ([]model.User, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// CreateUser заводит оператора с заданной ролью. Доступно только администратору.
func (s *Service) CreateUser(ctx context.Context, actorID int64, in UserInput) (*model.User, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, in.Login, hashed, in.Role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(actorID, model.ActionCreate, model.EntityUser, audit.ID(id), map[string]any{
		"login": in.Login,
		"role":  in.Role,
	})
	return &model.User{ID: id, Login: in.Login, Role: in.Role, CreatedAt: s.now()}, nil
}

// UpdateUser меняет логин, роль и, если задан, пароль оператора. Доступно только администратору.
func (s *Service) UpdateUser(ctx context.Context, actorID, id int64, in UserUpdate) (*model.User, error) {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var hashed []byte
	if in.Password != "" {
		var err error
		hashed, err = bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	if err := s.repo.UpdateUser(ctx, id, in.Login, in.Role, hashed); err != nil {
		return nil, err
	}

	s.audit.Record(actorID, model.ActionUpdate, model.EntityUser, audit.ID(id), map[string]any{
		"login":            in.Login,
		"role":             in.Role,
		"password_changed": hashed != nil,
	})
	return s.repo.GetUser(ctx, id)
}

// DeleteUser удаляет оператора. Администратор не может удалить сам себя.
func (s *Service) DeleteUser(ctx context.Context, actorID, id int64) error {
	if err := s.requireRole(ctx, actorID, model.RoleAdmin); err != nil {
		return err
	}
	if id == actorID {
		return ErrSelfDelete
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.audit.Record(actorID, model.ActionDelete, model.EntityUser, audit.ID(id), nil)
	return nil
}
