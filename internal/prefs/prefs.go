// Package prefs stores user preferences as key/value rows and exposes
// them as a typed snapshot with a live stream.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"bucks/internal/storage"
	"bucks/internal/watch"
)

// Preference keys.
const (
	KeyOnboardingDone = "onboardingDone"
	KeyCurrency       = "currency"
	KeyDateFormat     = "dateFormat"
	KeyReportFilter   = "reportFilter"
	KeyBackupCreation = "backupCreation"
	KeyBackupRecover  = "backupRecover"
)

// Preferences is the full user preference snapshot. Index fields refer
// to the fixed preset lists in the format package.
type Preferences struct {
	OnboardingDone bool  `json:"onboardingDone"`
	Currency       int   `json:"currency"`
	DateFormat     int   `json:"dateFormat"`
	ReportFilter   int   `json:"reportFilter"`
	BackupCreation int64 `json:"backupCreation"`
	BackupRecover  int64 `json:"backupRecover"`
}

type Store struct {
	repo *storage.Repository
}

func NewStore(repo *storage.Repository) *Store {
	return &Store{repo: repo}
}

// Load reads the current snapshot; unset keys keep their zero value.
func (s *Store) Load(ctx context.Context) (Preferences, error) {
	var p Preferences
	var err error

	if p.OnboardingDone, err = s.boolValue(ctx, KeyOnboardingDone); err != nil {
		return Preferences{}, err
	}
	if p.Currency, err = s.intValue(ctx, KeyCurrency); err != nil {
		return Preferences{}, err
	}
	if p.DateFormat, err = s.intValue(ctx, KeyDateFormat); err != nil {
		return Preferences{}, err
	}
	if p.ReportFilter, err = s.intValue(ctx, KeyReportFilter); err != nil {
		return Preferences{}, err
	}
	if p.BackupCreation, err = s.int64Value(ctx, KeyBackupCreation); err != nil {
		return Preferences{}, err
	}
	if p.BackupRecover, err = s.int64Value(ctx, KeyBackupRecover); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// Watch emits the current snapshot and re-emits after every write.
func (s *Store) Watch(ctx context.Context) *watch.Stream[Preferences] {
	return watch.Subscribe(ctx, s.repo.Hub(), func(ctx context.Context) (Preferences, error) {
		return s.Load(ctx)
	})
}

func (s *Store) SetOnboardingDone(ctx context.Context, done bool) error {
	return s.repo.SetPreference(ctx, KeyOnboardingDone, strconv.FormatBool(done))
}

func (s *Store) SetCurrency(ctx context.Context, index int) error {
	return s.repo.SetPreference(ctx, KeyCurrency, strconv.Itoa(index))
}

func (s *Store) SetDateFormat(ctx context.Context, index int) error {
	return s.repo.SetPreference(ctx, KeyDateFormat, strconv.Itoa(index))
}

func (s *Store) SetReportFilter(ctx context.Context, index int) error {
	return s.repo.SetPreference(ctx, KeyReportFilter, strconv.Itoa(index))
}

func (s *Store) SetBackupCreation(ctx context.Context, ms int64) error {
	return s.repo.SetPreference(ctx, KeyBackupCreation, strconv.FormatInt(ms, 10))
}

func (s *Store) SetBackupRecover(ctx context.Context, ms int64) error {
	return s.repo.SetPreference(ctx, KeyBackupRecover, strconv.FormatInt(ms, 10))
}

func (s *Store) boolValue(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.repo.GetPreference(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("preference %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) intValue(ctx context.Context, key string) (int, error) {
	raw, ok, err := s.repo.GetPreference(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("preference %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) int64Value(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.repo.GetPreference(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("preference %q: %w", key, err)
	}
	return v, nil
}
