package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/pumpwatch/internal/domain"
)

type UserRepo struct {
	db DB
}

func NewUserRepo(db DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := querierFromCtx(ctx, r.db).Exec(ctx,
		`INSERT INTO users (id, username, full_name, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, nilIfEmpty(u.FullName), u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.get(ctx, "userRepo.GetByID",
		`SELECT id, username, full_name, password_hash, role, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.get(ctx, "userRepo.GetByUsername",
		`SELECT id, username, full_name, password_hash, role, created_at FROM users WHERE username = $1`, username)
}

func (r *UserRepo) get(ctx context.Context, caller, query string, arg any) (*domain.User, error) {
	var u domain.User
	var fullName *string
	var role string

	err := querierFromCtx(ctx, r.db).QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Username, &fullName, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	u.FullName = derefStr(fullName)
	u.Role = domain.Role(role)
	return &u, nil
}

// --- Helpers ---

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
