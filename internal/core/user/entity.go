package user

import "time"

// Role はユーザーの権限種別を表します。
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid は Role が定義済みの値かを判定します。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// User はユーザーエンティティです。
//
// Active が false のユーザーは論理削除済みとして扱いますが、
// username と email の一意性は引き続き保持します。
type User struct {
	ID        string
	Username  string
	Email     string
	FirstName *string
	LastName  *string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
