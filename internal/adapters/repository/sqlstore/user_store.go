package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/user-api/internal/core/user"
	"gorm.io/gorm"
)

type userModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Username  string    `gorm:"size:50;not null;uniqueIndex:ux_users_username"`
	Email     string    `gorm:"size:254;not null;uniqueIndex:ux_users_email"`
	FirstName *string   `gorm:"size:100"`
	LastName  *string   `gorm:"size:100"`
	Role      string    `gorm:"size:16;not null"`
	Active    bool      `gorm:"not null;index:ix_users_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false;index:ix_users_created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (userModel) TableName() string { return "users" }

func toModel(u *user.User) *userModel {
	return &userModel{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt.UTC(),
		UpdatedAt: u.UpdatedAt.UTC(),
	}
}

func (m *userModel) toEntity() *user.User {
	return &user.User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Role:      user.Role(m.Role),
		Active:    m.Active,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// UserStore は GORM を利用したユーザー永続化の実装です。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore は UserStore を生成します。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create はユーザーを新規作成します。
func (s *UserStore) Create(ctx context.Context, u *user.User) (*user.User, error) {
	model := toModel(u)
	if err := dbFromContext(ctx, s.db).Create(model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.toEntity(), nil
}

// Update は username と created_at 以外のユーザー情報を更新します。
func (s *UserStore) Update(ctx context.Context, u *user.User) (*user.User, error) {
	db := dbFromContext(ctx, s.db)
	result := db.Model(&userModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"role":       string(u.Role),
			"active":     u.Active,
			"updated_at": u.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, user.ErrUserNotFound
	}
	return s.first(db, "id = ?", u.ID)
}

// FindByID は ID でユーザーを取得します。
func (s *UserStore) FindByID(ctx context.Context, id string) (*user.User, error) {
	return s.first(dbFromContext(ctx, s.db), "id = ?", id)
}

// FindByIDForUpdate は ID でユーザーを取得します。
// SQLite は書き込みトランザクションがデータベース全体をロックするため行ロックは不要です。
func (s *UserStore) FindByIDForUpdate(ctx context.Context, id string) (*user.User, error) {
	return s.FindByID(ctx, id)
}

// FindByUsername はユーザー名でユーザーを取得します。
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.first(dbFromContext(ctx, s.db), "username = ?", username)
}

// FindByEmail はメールアドレスでユーザーを取得します。
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.first(dbFromContext(ctx, s.db), "email = ?", email)
}

// List はユーザーの一覧を created_at, id の降順で取得します。
func (s *UserStore) List(ctx context.Context, filter user.ListUsersFilter) ([]*user.User, error) {
	filter = filter.Clamp()

	query := dbFromContext(ctx, s.db).Model(&userModel{})
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	var models []userModel
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list users: %w", err)
	}

	users := make([]*user.User, 0, len(models))
	for i := range models {
		users = append(users, models[i].toEntity())
	}
	return users, nil
}

func (s *UserStore) first(db *gorm.DB, cond string, arg any) (*user.User, error) {
	var model userModel
	if err := db.Where(cond, arg).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("sqlstore: find user: %w", err)
	}
	return model.toEntity(), nil
}

// translateError は SQLite の一意制約違反メッセージから重複理由を判定します。
// 例: "UNIQUE constraint failed: users.username"
func translateError(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("sqlstore: %w", err)
	}
	switch {
	case strings.Contains(msg, "users.username"):
		return user.ErrUsernameAlreadyExists
	case strings.Contains(msg, "users.email"):
		return user.ErrEmailAlreadyExists
	default:
		return user.ErrDuplicateUser
	}
}
