package handler

import (
	"time"

	"github.com/ogurasousui/user-api/internal/core/user"
)

type createUserRequest struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Role      user.Role `json:"role"`
	Active    *bool     `json:"active"`
}

func (r createUserRequest) toInput() user.CreateUserInput {
	return user.CreateUserInput{
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.Role,
		Active:    r.Active,
	}
}

// updateUserRequest は username を含みません。username を送るとフィールド不明として 422 になります。
type updateUserRequest struct {
	Email     user.Optional[string]    `json:"email"`
	FirstName user.Optional[string]    `json:"first_name"`
	LastName  user.Optional[string]    `json:"last_name"`
	Role      user.Optional[user.Role] `json:"role"`
	Active    user.Optional[bool]      `json:"active"`
}

func (r updateUserRequest) toInput(id string) user.UpdateUserInput {
	return user.UpdateUserInput{
		ID:        id,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.Role,
		Active:    r.Active,
	}
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Active    bool      `json:"active"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Active:    u.Active,
	}
}

func toUserResponses(users []*user.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details []user.FieldError `json:"details,omitempty"`
}
