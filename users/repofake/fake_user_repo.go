package fakeuserrepo

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-attendance-console/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users     map[string]*users.Account
	usernames map[string]string // directory/username to user id
	lock      sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:     make(map[string]*users.Account),
		usernames: make(map[string]string),
	}
}

func usernameKey(directory users.Directory, username string) string {
	return string(directory) + "/" + username
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	if account.Username == "" {
		return errors.New("username is required")
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	ur.users[account.ID] = account
	ur.usernames[usernameKey(account.Directory, account.Username)] = account.ID
	return nil
}

func (ur *FakeUserRepo) Delete(username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	found := false
	for key, id := range ur.usernames {
		account, ok := ur.users[id]
		if !ok || account.Username != username {
			continue
		}
		delete(ur.usernames, key)
		delete(ur.users, id)
		found = true
	}
	if !found {
		return errors.New("not found")
	}
	return nil
}

func (ur *FakeUserRepo) GetByUsername(directory users.Directory, username string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernames[usernameKey(directory, username)]
	if !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, errors.New("not found")
	}
	return ur.users[id], nil
}
