package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
)

const userColumns = `id, name, email, password_hash, role, phone, avatar, bio, created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
	"lastLogin": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	PasswordHash []byte      `db:"password_hash"`
	Role         string      `db:"role"`
	Phone        null.String `db:"phone"`
	Avatar       null.String `db:"avatar"`
	Bio          null.String `db:"bio"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
		Role:         usr.Role,
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		Avatar:       null.NewString(usr.Avatar, usr.Avatar != ""),
		Bio:          null.NewString(usr.Bio, usr.Bio != ""),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		Phone:        r.Phone.String,
		Avatar:       r.Avatar.String,
		Bio:          r.Bio.String,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	var w whereClause
	w.add("email = ?", email)
	if len(excludedIDs) > 0 {
		w.add("id::text NOT IN (?)", excludedIDs)
	}
	q, args, err := sqlx.In("SELECT EXISTS (SELECT 1 FROM users"+w.String()+")", w.args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var exists bool
	if err = repo.db.GetContext(ctx, &exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :password_hash, :role, :phone, :avatar, :bio, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]user.User, int, error) {
	var w whereClause
	if filter != nil {
		if filter.Search != "" {
			val := likePattern(filter.Search)
			w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("role IN (?)", filter.Roles)
		}
	}

	countQ, args, err := sqlx.In("SELECT COUNT(*) FROM users"+w.String(), w.args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building users query")
	}
	var total int
	if err = repo.db.GetContext(ctx, &total, repo.db.Rebind(countQ), args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	q, args, err := sqlx.In(
		"SELECT "+userColumns+" FROM users"+w.String()+orderBy(ordering, userOrderings)+limitOffset(page),
		w.args...,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building users query")
	}
	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, total, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !validID(id) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE id = $1", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE email = $1", email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	q := `UPDATE users SET name = :name, email = :email, password_hash = :password_hash, role = :role,
		phone = :phone, avatar = :avatar, bio = :bio, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}
