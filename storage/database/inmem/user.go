package inmemdb

import (
	"context"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, usr := range repo.db.users {
		if usr.Email == email && !excluded[usr.ID] {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrUserExists
		}
	}
	usr.ID = newID()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]user.User, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var roles map[string]bool
	if filter != nil && len(filter.Roles) > 0 {
		roles = make(map[string]bool, len(filter.Roles))
		for _, r := range filter.Roles {
			roles[r] = true
		}
	}

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil {
			if filter.Search != "" && !containsFold(usr.Name, filter.Search) && !containsFold(usr.Email, filter.Search) {
				continue
			}
			if roles != nil && !roles[usr.Role] {
				continue
			}
		}
		users = append(users, *usr)
	}

	sortBy(users, ordering, func(a, b user.User, field string) int {
		switch field {
		case "name":
			return compareStrings(a.Name, b.Name)
		case "email":
			return compareStrings(a.Email, b.Email)
		case "role":
			return compareStrings(a.Role, b.Role)
		case "createdAt":
			return compareTimes(a.CreatedAt, b.CreatedAt)
		case "lastLogin":
			return compareTimes(a.LastLogin, b.LastLogin)
		}
		return 0
	})
	return paginate(users, page), len(users), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.Email == usr.Email && u.ID != usr.ID {
			return user.User{}, user.ErrUserExists
		}
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}
