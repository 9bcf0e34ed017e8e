package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// NoGeneration は世代を取得できなかったことを表します。Set はこの世代では何も保存しません。
const NoGeneration int64 = -1

// Cache は GetUser の読み取りキャッシュです。障害時もユースケースは継続します。
//
// Get はミス時にその ID の現在の世代を返します。Invalidate は世代を進め、
// Set は渡された世代が現在の世代と一致する場合のみ保存します。
// これにより Get 以降に確定した更新を、読み取り済みの古いスナップショットで上書きしません。
type Cache interface {
	Get(ctx context.Context, id string) (user *User, generation int64, ok bool)
	Set(ctx context.Context, user *User, generation int64)
	Invalidate(ctx context.Context, id string)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*User, int64, bool) { return nil, NoGeneration, false }
func (noopCache) Set(context.Context, *User, int64)                {}
func (noopCache) Invalidate(context.Context, string)               {}

// Recorder はユースケースの結果をメトリクスへ記録します。
type Recorder interface {
	UserCreated()
	Conflict(reason ConflictReason)
	UserSoftDeleted()
}

type noopRecorder struct{}

func (noopRecorder) UserCreated()            {}
func (noopRecorder) Conflict(ConflictReason) {}
func (noopRecorder) UserSoftDeleted()        {}

// Option は Service の任意設定です。
type Option func(*Service)

// WithCache は読み取りキャッシュを設定します。
func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithRecorder はメトリクス記録先を設定します。
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithIDGenerator は ID 採番関数を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Service はユーザーに関するユースケースをまとめます。
type Service struct {
	repo     Repository
	clock    Clock
	tx       TransactionManager
	cache    Cache
	recorder Recorder
	newID    func() string
}

// UseCase はユーザーユースケースの公開インターフェースです。
type UseCase interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*User, error)
	GetUser(ctx context.Context, in GetUserInput) (*User, error)
	ListUsers(ctx context.Context, in ListUsersInput) ([]*User, error)
	UpdateUser(ctx context.Context, in UpdateUserInput) (*User, error)
	SoftDeleteUser(ctx context.Context, in SoftDeleteUserInput) error
}

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:     repo,
		clock:    clock,
		tx:       tx,
		cache:    noopCache{},
		recorder: noopRecorder{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserInput はユーザー作成時の入力です。
// Role が空の場合は RoleUser、Active が nil の場合は true になります。
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName *string
	LastName  *string
	Role      Role
	Active    *bool
}

// UpdateUserInput はユーザー更新時の入力です。username は更新できません。
type UpdateUserInput struct {
	ID        string
	Email     Optional[string]
	FirstName Optional[string]
	LastName  Optional[string]
	Role      Optional[Role]
	Active    Optional[bool]
}

// GetUserInput はユーザー取得時の入力です。
type GetUserInput struct {
	ID string
}

// SoftDeleteUserInput は論理削除時の入力です。
type SoftDeleteUserInput struct {
	ID string
}

// ListUsersInput は一覧取得時の入力です。Active が nil の場合は全件が対象です。
type ListUsersInput struct {
	Active *bool
	Limit  int
	Offset int
}

// CreateUser は新しいユーザーを作成します。
//
// 事前チェックは username、email の順に行います。事前チェックを通過した後に
// 一意制約違反となった場合も、同じ順序で重複理由を特定して ConflictError を返却します。
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	candidate, err := ValidateCreate(in)
	if err != nil {
		return nil, err
	}

	var (
		created   *User
		storeFail bool
	)
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureUsernameNotExists(txCtx, candidate.Username); err != nil {
			return err
		}
		if err := s.ensureEmailNotExists(txCtx, candidate.Email, ""); err != nil {
			return err
		}

		now := s.clock.Now()
		u := candidate.clone()
		u.ID = s.newID()
		u.CreatedAt = now
		u.UpdatedAt = now

		result, err := s.repo.Create(txCtx, u)
		if err != nil {
			storeFail = true
			return err
		}
		created = result
		return nil
	})
	if err != nil {
		if storeFail {
			err = s.attributeConflict(ctx, candidate, err)
		}
		s.recordConflict(err)
		return nil, err
	}

	s.recorder.UserCreated()
	return created, nil
}

// GetUser は ID でユーザーを取得します。論理削除済みのユーザーも返却します。
func (s *Service) GetUser(ctx context.Context, in GetUserInput) (*User, error) {
	id, err := canonicalID(in.ID)
	if err != nil {
		return nil, err
	}

	cached, generation, ok := s.cache.Get(ctx, id)
	if ok {
		return cached, nil
	}

	var found *User
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		found = result
		return nil
	}); err != nil {
		return nil, err
	}

	s.cache.Set(ctx, found, generation)
	return found, nil
}

// ListUsers はユーザーの一覧を created_at の降順で取得します。
func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) ([]*User, error) {
	if err := ValidateListFilter(in.Limit, in.Offset); err != nil {
		return nil, err
	}

	var active *bool
	if in.Active != nil {
		v := *in.Active
		active = &v
	}

	var users []*User
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.List(txCtx, ListUsersFilter{
			Active: active,
			Limit:  in.Limit,
			Offset: in.Offset,
		})
		if err != nil {
			return err
		}
		users = result
		return nil
	}); err != nil {
		return nil, err
	}

	if users == nil {
		users = []*User{}
	}
	return users, nil
}

// UpdateUser は指定されたフィールドのみを更新します。
func (s *Service) UpdateUser(ctx context.Context, in UpdateUserInput) (*User, error) {
	if err := ValidateUpdate(in); err != nil {
		return nil, err
	}

	id, err := canonicalID(in.ID)
	if err != nil {
		return nil, err
	}

	var updated *User
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		if email, ok := in.Email.Get(); ok && email != existing.Email {
			if err := s.ensureEmailNotExists(txCtx, email, existing.ID); err != nil {
				return err
			}
			existing.Email = email
		}

		if in.FirstName.IsSet() {
			existing.FirstName = in.FirstName.Ptr()
		}

		if in.LastName.IsSet() {
			existing.LastName = in.LastName.Ptr()
		}

		if role, ok := in.Role.Get(); ok {
			existing.Role = role
		}

		if active, ok := in.Active.Get(); ok {
			existing.Active = active
		}

		s.touch(existing)

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}
		updated = result
		return nil
	})
	if err != nil {
		s.recordConflict(err)
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	return updated, nil
}

// SoftDeleteUser はユーザーを非アクティブにします。
// 既に非アクティブなユーザーに対しては何も変更せず成功を返します。
func (s *Service) SoftDeleteUser(ctx context.Context, in SoftDeleteUserInput) error {
	id, err := canonicalID(in.ID)
	if err != nil {
		return err
	}

	changed := false
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !existing.Active {
			return nil
		}

		existing.Active = false
		s.touch(existing)

		if _, err := s.repo.Update(txCtx, existing); err != nil {
			return err
		}
		changed = true
		return nil
	}); err != nil {
		return err
	}

	if changed {
		s.recorder.UserSoftDeleted()
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

func (s *Service) ensureUsernameNotExists(ctx context.Context, username string) error {
	found, err := s.repo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if found != nil {
		return ErrUsernameAlreadyExists
	}
	return nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email, selfID string) error {
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if found != nil && found.ID != selfID {
		return ErrEmailAlreadyExists
	}
	return nil
}

// attributeConflict はストアが返した一意制約違反の理由を username → email の順で確定させます。
// トランザクションはロールバック済みのため、元のコンテキストで再照会します。
func (s *Service) attributeConflict(ctx context.Context, candidate *User, storeErr error) error {
	if !errors.Is(storeErr, ErrConflict) && !errors.Is(storeErr, ErrDuplicateUser) {
		return storeErr
	}

	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		if err := s.ensureUsernameNotExists(txCtx, candidate.Username); err != nil {
			return err
		}
		return s.ensureEmailNotExists(txCtx, candidate.Email, "")
	})

	switch {
	case errors.Is(err, ErrConflict):
		return err
	case err != nil && errors.Is(storeErr, ErrConflict):
		return storeErr
	case err != nil:
		return fmt.Errorf("%w: attribute conflict: %w", storeErr, err)
	default:
		return storeErr
	}
}

func (s *Service) recordConflict(err error) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		s.recorder.Conflict(conflict.Reason)
	}
}

func (s *Service) touch(u *User) {
	now := s.clock.Now()
	if now.Before(u.CreatedAt) {
		now = u.CreatedAt
	}
	u.UpdatedAt = now
}

func canonicalID(raw string) (string, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrUserNotFound
	}
	return parsed.String(), nil
}
