package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ogurasousui/user-api/internal/core/user"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix        = "user-api:user:id:"
	generationPrefix = "user-api:user:gen:"
	defaultTimeout   = 5 * time.Second
	defaultTTL       = 5 * time.Minute
	// generationTTL は読み取り中に世代キーが失効しない十分な長さです。
	generationTTL = 24 * time.Hour
)

// setIfGeneration は世代キーが ARGV[1] と一致する場合のみエントリを保存します。
// 世代キーが存在しない場合は 0 とみなします。
var setIfGeneration = goredis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[2]) or '0')
if current ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// invalidateEntry はエントリを削除し、世代を進めます。
var invalidateEntry = goredis.NewScript(`
redis.call('DEL', KEYS[1])
local generation = redis.call('INCR', KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return generation
`)

var _ user.Cache = (*UserCache)(nil)

type cmdable interface {
	goredis.Scripter
	Ping(ctx context.Context) *goredis.StatusCmd
	MGet(ctx context.Context, keys ...string) *goredis.SliceCmd
}

// Options は Redis 接続設定です。
type Options struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect は Redis クライアントを生成し、Ping で疎通確認します。
func Connect(ctx context.Context, opts Options) (*goredis.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return client, nil
}

// UserCache は GetUser の結果を Redis に保持する読み取りキャッシュです。
// Redis の障害はログに残すのみで、呼び出し側にはキャッシュミスとして見せます。
// エントリごとに世代キーを持ち、Invalidate 以前に読み取られたスナップショットは保存しません。
type UserCache struct {
	store cmdable
	ttl   time.Duration
}

// NewUserCache は UserCache を生成します。ttl が 0 以下の場合は 5 分です。
func NewUserCache(store cmdable, ttl time.Duration) *UserCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &UserCache{store: store, ttl: ttl}
}

type cachedUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func key(id string) string { return keyPrefix + id }

func generationKey(id string) string { return generationPrefix + id }

// Get はキャッシュ済みのユーザーを返します。ミス時は現在の世代を返します。
func (c *UserCache) Get(ctx context.Context, id string) (*user.User, int64, bool) {
	values, err := c.store.MGet(ctx, key(id), generationKey(id)).Result()
	if err != nil || len(values) != 2 {
		if err == nil {
			err = fmt.Errorf("redis: mget returned %d values", len(values))
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache get failed")
		return nil, user.NoGeneration, false
	}

	generation, err := parseGeneration(values[1])
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache generation is corrupt")
		c.Invalidate(ctx, id)
		return nil, user.NoGeneration, false
	}

	raw, ok := values[0].(string)
	if !ok {
		return nil, generation, false
	}

	var cu cachedUser
	if err := json.Unmarshal([]byte(raw), &cu); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache entry is corrupt")
		c.Invalidate(ctx, id)
		return nil, user.NoGeneration, false
	}

	return &user.User{
		ID:        cu.ID,
		Username:  cu.Username,
		Email:     cu.Email,
		FirstName: cu.FirstName,
		LastName:  cu.LastName,
		Role:      user.Role(cu.Role),
		Active:    cu.Active,
		CreatedAt: cu.CreatedAt,
		UpdatedAt: cu.UpdatedAt,
	}, generation, true
}

func parseGeneration(v any) (int64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(g, 10, 64)
	default:
		return 0, fmt.Errorf("redis: unexpected generation type %T", v)
	}
}

// Set は世代が generation のままであればユーザーを TTL 付きで保存します。
func (c *UserCache) Set(ctx context.Context, u *user.User, generation int64) {
	if u == nil || generation == user.NoGeneration {
		return
	}

	payload, err := json.Marshal(cachedUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("user cache encode failed")
		return
	}

	stored, err := setIfGeneration.Run(ctx, c.store,
		[]string{key(u.ID), generationKey(u.ID)},
		generation, string(payload), c.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("user cache set failed")
		return
	}
	if stored == 0 {
		zerolog.Ctx(ctx).Debug().Str("user_id", u.ID).Int64("generation", generation).Msg("user cache set skipped: entry invalidated during read")
	}
}

// Invalidate はキャッシュエントリを削除し、世代を進めます。
func (c *UserCache) Invalidate(ctx context.Context, id string) {
	err := invalidateEntry.Run(ctx, c.store,
		[]string{key(id), generationKey(id)},
		generationTTL.Milliseconds(),
	).Err()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", id).Msg("user cache invalidate failed")
	}
}

// ReadinessCheck は readiness プローブ用の疎通確認関数を返します。
func ReadinessCheck(store cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := store.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: ping: %w", err)
		}
		return nil
	}
}
