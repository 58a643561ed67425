package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/weiawesome/tweet-graph/internal/domain"
	"github.com/weiawesome/tweet-graph/internal/kv"
)

// User hash fields.
const (
	FieldUID              = "uid"
	FieldUsername         = "username"
	FieldPassword         = "password"
	FieldRegistrationDate = "registration_date"
	FieldModificationDate = "modification_date"
)

// UserRecordStore maps user ids to their attributes.
type UserRecordStore interface {
	AllocateID(ctx context.Context) (int64, error)
	LastID(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id int64, fields map[string]any, at time.Time) error
	Read(ctx context.Context, id int64) (*domain.User, bool, error)
	ReadMany(ctx context.Context, ids []int64) ([]domain.User, error)
}

// KVUserStore implements UserRecordStore with one hash per user.
type KVUserStore struct {
	kv   kv.Store
	keys Keyspace
}

// NewUserStore creates a hash-backed user record store.
func NewUserStore(store kv.Store, keys Keyspace) *KVUserStore {
	return &KVUserStore{kv: store, keys: keys}
}

// AllocateID takes the next id from the user sequence. The first id is 1.
func (s *KVUserStore) AllocateID(ctx context.Context) (int64, error) {
	id, err := s.kv.IncrementCounter(ctx, s.keys.NextUserID())
	if err != nil {
		return 0, fmt.Errorf("allocate user id: %w", err)
	}
	return id, nil
}

// LastID returns the highest id handed out so far, 0 when none.
func (s *KVUserStore) LastID(ctx context.Context) (int64, error) {
	id, err := s.kv.GetCounter(ctx, s.keys.NextUserID())
	if err != nil {
		return 0, fmt.Errorf("read user sequence: %w", err)
	}
	return id, nil
}

// Create writes the full attribute set. Uniqueness is the identity index's job.
func (s *KVUserStore) Create(ctx context.Context, user *domain.User) error {
	fields := map[string]any{
		FieldUID:              user.ID,
		FieldUsername:         user.Username,
		FieldPassword:         user.PasswordHash,
		FieldRegistrationDate: user.RegistrationDate.Unix(),
		FieldModificationDate: user.ModificationDate.Unix(),
	}
	if err := s.kv.HashSet(ctx, s.keys.User(user.ID), fields); err != nil {
		return fmt.Errorf("create user %d: %w", user.ID, err)
	}
	return nil
}

// Update merges fields into the record and always overwrites the
// modification date with at.
func (s *KVUserStore) Update(ctx context.Context, id int64, fields map[string]any, at time.Time) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[FieldModificationDate] = at.Unix()

	if err := s.kv.HashSet(ctx, s.keys.User(id), merged); err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	return nil
}

func (s *KVUserStore) Read(ctx context.Context, id int64) (*domain.User, bool, error) {
	vals, err := s.kv.HashGetAll(ctx, s.keys.User(id))
	if err != nil {
		return nil, false, fmt.Errorf("read user %d: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, false, nil
	}

	user, err := decodeUser(id, vals)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// ReadMany hydrates ids in order, skipping ids without a record.
func (s *KVUserStore) ReadMany(ctx context.Context, ids []int64) ([]domain.User, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.User(id)
	}

	rows, err := s.kv.HashGetAllBatch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for i, vals := range rows {
		if len(vals) == 0 {
			continue
		}
		user, err := decodeUser(ids[i], vals)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func decodeUser(id int64, vals map[string]string) (*domain.User, error) {
	registered, err := parseUnix(vals[FieldRegistrationDate])
	if err != nil {
		return nil, fmt.Errorf("user %d registration_date: %w", id, err)
	}
	modified, err := parseUnix(vals[FieldModificationDate])
	if err != nil {
		return nil, fmt.Errorf("user %d modification_date: %w", id, err)
	}

	return &domain.User{
		ID:               id,
		Username:         vals[FieldUsername],
		PasswordHash:     vals[FieldPassword],
		RegistrationDate: registered,
		ModificationDate: modified,
	}, nil
}

// parseUnix reads a unix-seconds field. A missing field is the zero time.
func parseUnix(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

// Ensure interface is satisfied at compile time.
var _ UserRecordStore = (*KVUserStore)(nil)
