package store

import (
	"context"
	"errors"
	"time"

	"DipHunter/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists users, hunters and per-user analysis settings.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	User(ctx context.Context, id int64) (*model.User, error)
	Users(ctx context.Context) ([]*model.User, error)

	CreateHunter(ctx context.Context, h *model.Hunter) (int64, error)
	UpdateHunter(ctx context.Context, h *model.Hunter) error
	DeleteHunter(ctx context.Context, id int64) error
	Hunter(ctx context.Context, id int64) (*model.Hunter, error)
	HuntersByInterval(ctx context.Context, interval string) ([]*model.Hunter, error)
	HuntersByUser(ctx context.Context, userID int64) ([]*model.Hunter, error)
	SaveHunterKlines(ctx context.Context, id int64, klines []model.RawKline, fetchedAt time.Time) error

	AnalysisSettings(ctx context.Context, userID int64) (*model.AnalysisSettings, error)
	AllAnalysisSettings(ctx context.Context) ([]*model.AnalysisSettings, error)
	SaveAnalysisKlines(ctx context.Context, userID int64, klines []model.RawKline, fetchedAt time.Time) error

	Close() error
}
