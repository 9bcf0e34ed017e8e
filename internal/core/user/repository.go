package user

import "context"

// Repository はユーザーエンティティの永続化を行うインターフェースです。
//
// 実装は username / email の一意性をストレージの一意制約で保証し、
// 違反時は ErrUsernameAlreadyExists / ErrEmailAlreadyExists / ErrDuplicateUser を返却します。
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByIDForUpdate(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]*User, error)
}

// ListUsersFilter は一覧取得時の検索条件を表します。
type ListUsersFilter struct {
	Active *bool
	Limit  int
	Offset int
}

const (
	// MinListLimit は一覧取得の最小件数です。
	MinListLimit = 1
	// MaxListLimit は一覧取得の最大件数です。
	MaxListLimit = 200
	// DefaultListLimit は limit 未指定時の件数です。
	DefaultListLimit = 50
)

// Clamp はストア実装向けに limit を [1, 200]、offset を 0 以上へ丸めます。
func (f ListUsersFilter) Clamp() ListUsersFilter {
	if f.Limit < MinListLimit {
		f.Limit = MinListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
