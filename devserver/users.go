package devserver

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// User is a development account the token server can authenticate.
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string
	PasswordHash string
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UserRepo manages the dev server's user accounts.
type UserRepo interface {
	Upsert(user *User) error
	GetByUsername(username string) (*User, error)
	GetByID(id string) (*User, error)
}

var _ UserRepo = (*inMemoryUserRepo)(nil)

type inMemoryUserRepo struct {
	users map[string]*User
	lock  sync.RWMutex
}

func NewInMemoryUserRepo() UserRepo {
	return &inMemoryUserRepo{users: make(map[string]*User)}
}

func (r *inMemoryUserRepo) Upsert(user *User) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.users[user.Username] = user
	return nil
}

func (r *inMemoryUserRepo) GetByUsername(username string) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, ok := r.users[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (r *inMemoryUserRepo) GetByID(id string) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, errors.New("user not found")
}
