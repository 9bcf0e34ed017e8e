package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/user-api/internal/core/user"
	pgdb "github.com/ogurasousui/user-api/internal/platform/db/postgres"
)

const (
	uniqueViolationCode = "23505"

	usernameUniqueConstraint = "ux_users_username"
	emailUniqueConstraint    = "ux_users_email"
)

const userColumns = `id, username, email, first_name, last_name, role, active, created_at, updated_at`

// UserRepository は PostgreSQL を利用したユーザー永続化の実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create はユーザーを新規作成します。
func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO users (id, username, email, first_name, last_name, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+userColumns+`
    `, u.ID, u.Username, u.Email, nullableString(u.FirstName), nullableString(u.LastName), string(u.Role), u.Active, u.CreatedAt, u.UpdatedAt)

	created, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return created, nil
}

// Update は username と created_at 以外のユーザー情報を更新します。
func (r *UserRepository) Update(ctx context.Context, u *user.User) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE users
           SET email = $1,
               first_name = $2,
               last_name = $3,
               role = $4,
               active = $5,
               updated_at = $6
         WHERE id = $7
        RETURNING `+userColumns+`
    `, u.Email, nullableString(u.FirstName), nullableString(u.LastName), string(u.Role), u.Active, u.UpdatedAt, u.ID)

	updated, err := scanUser(row)
	if err != nil {
		return nil, translatePgError(err)
	}
	return updated, nil
}

// FindByID は ID でユーザーを取得します。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE id = $1
         LIMIT 1
    `, id)
}

// FindByIDForUpdate は行ロックを取得してユーザーを取得します。トランザクション内で呼び出してください。
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id string) (*user.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE id = $1
         FOR UPDATE
    `, id)
}

// FindByUsername はユーザー名でユーザーを取得します。
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE username = $1
         LIMIT 1
    `, username)
}

// FindByEmail はメールアドレスでユーザーを取得します。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, `
        SELECT `+userColumns+`
          FROM users
         WHERE email = $1
         LIMIT 1
    `, email)
}

func (r *UserRepository) findOne(ctx context.Context, query string, args ...any) (*user.User, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := scanUser(exec.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translatePgError(err)
	}
	return found, nil
}

// List はユーザーの一覧を created_at, id の降順で取得します。
func (r *UserRepository) List(ctx context.Context, filter user.ListUsersFilter) ([]*user.User, error) {
	filter = filter.Clamp()

	args := make([]any, 0, 3)
	whereClause := ""

	if filter.Active != nil {
		args = append(args, *filter.Active)
		whereClause = " WHERE active = $" + strconv.Itoa(len(args))
	}

	args = append(args, filter.Limit)
	limitPlaceholder := "$" + strconv.Itoa(len(args))
	args = append(args, filter.Offset)
	offsetPlaceholder := "$" + strconv.Itoa(len(args))

	query := `
        SELECT ` + userColumns + `
          FROM users` + whereClause + `
         ORDER BY created_at DESC, id DESC
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder + `
    `

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	users := make([]*user.User, 0, filter.Limit)
	for rows.Next() {
		found, err := scanUser(rows)
		if err != nil {
			return nil, translatePgError(err)
		}
		users = append(users, found)
	}

	if err := rows.Err(); err != nil {
		return nil, translatePgError(err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		id, username, email  string
		firstName, lastName  sql.NullString
		role                 string
		active               bool
		createdAt, updatedAt time.Time
	)

	if err := row.Scan(&id, &username, &email, &firstName, &lastName, &role, &active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}

	return &user.User{
		ID:        id,
		Username:  username,
		Email:     email,
		FirstName: stringPtr(firstName),
		LastName:  stringPtr(lastName),
		Role:      user.Role(role),
		Active:    active,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

// translatePgError は一意制約違反を制約名から重複理由へ変換します。
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		switch pgErr.ConstraintName {
		case usernameUniqueConstraint:
			return user.ErrUsernameAlreadyExists
		case emailUniqueConstraint:
			return user.ErrEmailAlreadyExists
		default:
			return user.ErrDuplicateUser
		}
	}
	return err
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
