// Package session holds the identity of the one user signed in to a client, such as the admin CLI.
// The identity survives restarts through the "session" collection of a core.Store.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/user"
)

// Users is the part of user.Service a session needs.
type Users interface {
	Authenticate(ctx context.Context, email, pwd string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	SetPassword(ctx context.Context, id string, cp user.ChangePassword) (user.User, error)
}

var _ Users = (*user.Service)(nil)

var nowFunc = func() time.Time { return time.Now().UTC() }

type record struct {
	User       user.User `json:"user"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

type Store struct {
	store core.Store
	users Users

	mu  sync.RWMutex
	cur *record
}

// Open restores the persisted session. A session whose user no longer exists is cleared.
func Open(ctx context.Context, store core.Store, users Users) (*Store, error) {
	s := &Store{store: store, users: users}

	data, err := store.Get(ctx, core.CollectionSession)
	if err != nil {
		return nil, asStorageError(core.CollectionSession, "get", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.User.ID == "" {
		// unreadable sessions are dropped, the user signs in again
		return s, s.clear(ctx)
	}

	usr, err := users.GetByID(ctx, rec.User.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return s, s.clear(ctx)
		}
		return nil, errors.Wrap(err, "restoring session")
	}
	rec.User = usr
	s.cur = &rec
	return s, nil
}

// Login checks the credentials and replaces the current session, if any.
func (s *Store) Login(ctx context.Context, email, pwd string) (user.User, error) {
	usr, err := s.users.Authenticate(ctx, email, pwd)
	if err != nil {
		return user.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &record{User: usr, LoggedInAt: nowFunc()}
	if err := s.persist(ctx, rec); err != nil {
		return user.User{}, err
	}
	s.cur = rec
	return usr, nil
}

func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) Current() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cur == nil {
		return user.User{}, false
	}
	return s.cur.User, true
}

// IsFirstLogin reports whether the signed in user must still change the default password.
func (s *Store) IsFirstLogin() bool {
	usr, ok := s.Current()
	return ok && usr.IsFirstLogin
}

// ChangePassword sets the password of the signed in user and clears IsFirstLogin.
func (s *Store) ChangePassword(ctx context.Context, pwd, confirm string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return user.User{}, core.ErrUnauthenticated
	}

	usr, err := s.users.SetPassword(ctx, s.cur.User.ID, user.ChangePassword{Password: pwd, PasswordConfirm: confirm})
	if err != nil {
		return user.User{}, err
	}

	rec := &record{User: usr, LoggedInAt: s.cur.LoggedInAt}
	if err := s.persist(ctx, rec); err != nil {
		return user.User{}, err
	}
	s.cur = rec
	return usr, nil
}

func (s *Store) persist(ctx context.Context, rec *record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return core.NewStorageError("encode", core.CollectionSession, err)
	}
	if err := s.store.Set(ctx, core.CollectionSession, data); err != nil {
		return asStorageError(core.CollectionSession, "set", err)
	}
	return nil
}

func (s *Store) clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.cur = nil
	if err := s.store.Delete(ctx, core.CollectionSession); err != nil {
		return asStorageError(core.CollectionSession, "delete", err)
	}
	return nil
}

func asStorageError(collection, op string, err error) error {
	if core.IsStorage(err) {
		return err
	}
	return core.NewStorageError(op, collection, err)
}
