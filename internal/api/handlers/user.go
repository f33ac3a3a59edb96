package handlers

import (
	"time"

	"github.com/scripta/scripta-api/internal/domain"
)

type UserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Plan       string    `json:"plan,omitempty"`
	DailyLimit int       `json:"dailyLimit,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
	if u.Plan != nil {
		resp.Plan = u.Plan.Name
		resp.DailyLimit = u.Plan.DailyLimit
	}
	return resp
}
