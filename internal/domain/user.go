package domain

import "time"

// OwnerStanding enumerates account states relevant to generation.
type OwnerStanding string

const (
	OwnerStandingActive    OwnerStanding = "active"
	OwnerStandingSuspended OwnerStanding = "suspended"
	OwnerStandingBanned    OwnerStanding = "banned"
)

// InGoodStanding reports whether the owner may consume generation capacity.
func (s OwnerStanding) InGoodStanding() bool {
	return s == OwnerStandingActive
}

// UserPlan enumerates billing plans.
type UserPlan string

const (
	UserPlanFree UserPlan = "free"
	UserPlanPro  UserPlan = "pro"
)

// User represents an account that owns generation jobs.
type User struct {
	ID        string
	Email     string
	Name      string
	Plan      UserPlan
	Standing  OwnerStanding
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFree reports whether the user is using the free plan.
func (u User) IsFree() bool {
	return u.Plan == UserPlanFree
}
