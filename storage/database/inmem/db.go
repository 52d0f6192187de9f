// Package inmemdb holds mutex guarded, map backed repositories used in tests and
// when the API runs without postgres.
package inmemdb

import (
	"sync"

	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
)

type (
	DB struct {
		user    *userTable
		profile *profileTable
	}

	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	profileTable struct {
		table map[string]*profile.Profile
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		profile: &profileTable{table: make(map[string]*profile.Profile)},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.profile.mutex.Lock()
	db.profile.table = make(map[string]*profile.Profile)
	db.profile.mutex.Unlock()
}
