package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	return repo.db.read(func(t *tables) error {
		for _, usr := range t.users {
			if excluded[usr.ID] {
				continue
			}
			if username != "" && usr.Username == username {
				return user.ErrUsernameExists
			}
			if email != "" && usr.Email == email {
				return user.ErrEmailExists
			}
		}
		return nil
	})
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.db.write(exec, func(t *tables) error {
		for _, u := range t.users {
			if (usr.Username != "" && u.Username == usr.Username) || (usr.Email != "" && u.Email == usr.Email) {
				return user.ErrUserExists
			}
		}
		usr.ID = uuid.New().String()
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	var users []user.User
	_ = repo.db.read(func(t *tables) error {
		users = make([]user.User, 0, len(t.users))
		for _, usr := range t.users {
			if filter == nil || matchesUserFilter(usr, filter) {
				users = append(users, usr)
			}
		}
		return nil
	})

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := userSortKey(users[i], ord.Field), userSortKey(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
	return users, nil
}

func matchesUserFilter(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), kw) &&
			!strings.Contains(strings.ToLower(usr.Username), kw) &&
			!strings.Contains(strings.ToLower(usr.Email), kw) {
			return false
		}
	}
	if len(filter.Roles) > 0 {
		var hasRole bool
		for _, role := range filter.Roles {
			if usr.RoleStartsWith(role) {
				hasRole = true
				break
			}
		}
		if !hasRole {
			return false
		}
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func userSortKey(usr user.User, field string) string {
	switch field {
	case "name":
		return strings.ToLower(usr.Name)
	case "username":
		return usr.Username
	case "email":
		return usr.Email
	case "last_login":
		return usr.LastLogin.Format(sortableTime)
	default:
		return usr.CreatedAt.Format(sortableTime)
	}
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	var found user.User
	err := repo.db.read(func(t *tables) error {
		if filter.ID != "" {
			usr, ok := t.users[filter.ID]
			if !ok {
				return user.ErrNotFound
			}
			found = usr
			return nil
		}

		var uname, email string
		switch {
		case filter.Username != "":
			uname = filter.Username
		case filter.Email != "":
			email = filter.Email
		case len(filter.UsernameOrEmail) > 0:
			uname = filter.UsernameOrEmail[0]
			email = uname
			if len(filter.UsernameOrEmail) == 2 && filter.UsernameOrEmail[1] != "" {
				email = filter.UsernameOrEmail[1]
			}
		}
		for _, usr := range t.users {
			if (uname != "" && usr.Username == uname) || (email != "" && usr.Email == email) {
				found = usr
				return nil
			}
		}
		return user.ErrNotFound
	})
	return found, err
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.db.write(exec, func(t *tables) error {
		if _, ok := t.users[usr.ID]; !ok {
			return user.ErrNotFound
		}
		t.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}
