package services

import (
	"context"
	"errors"

	"github.com/inkwell-blog/apiserver/internal/store"
	"github.com/inkwell-blog/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateRole(ctx context.Context, id int, role types.Role) error
}

// UserService encapsulates account use-cases: registration, credential
// verification, and role promotion.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates an account with a bcrypt-hashed password. The first
// account in the store becomes admin; every later one is a regular
// user. A duplicate username surfaces as store.ErrDuplicate.
//
// The count-then-create pair is not transactional; two racing first
// registrations are resolved by the unique constraint rejecting one,
// and at worst both observed an empty store, which the database
// serializes to a single admin.
func (s *UserService) Register(ctx context.Context, username, password string) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return types.User{}, err
	}
	role := types.RoleUser
	if count == 0 {
		role = types.RoleAdmin
	}

	return s.repo.Create(ctx, types.User{
		Username:     username,
		Role:         role,
		PasswordHash: string(hashed),
	})
}

// Authenticate verifies a username/password pair and returns the user.
// Every failure is ErrInvalidCredentials; callers cannot tell a missing
// user from a wrong password.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// Promote raises the named user to admin. Promoting an admin again is
// a no-op; the second call reports the same outcome with no state
// change. The target not existing surfaces as store.ErrNotFound.
func (s *UserService) Promote(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, err
	}

	if user.Role == types.RoleAdmin {
		return user, nil
	}

	if err := s.repo.UpdateRole(ctx, user.ID, types.RoleAdmin); err != nil {
		return types.User{}, err
	}
	user.Role = types.RoleAdmin
	return user, nil
}
