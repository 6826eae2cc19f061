package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/odyssey-erp/fieldops/internal/delivery"
)

var (
	// ErrUserNotFound indicates no active user carries the salesman id.
	ErrUserNotFound = errors.New("user not found or inactive")
	// ErrInvalidPin indicates the supplied PIN does not match the stored hash.
	ErrInvalidPin = errors.New("invalid PIN")
	// ErrDuplicateSalesman indicates the salesman id is already registered.
	ErrDuplicateSalesman = errors.New("salesman id already exists")
)

// Role is the application role of a user.
type Role string

const (
	RoleSalesman Role = "salesman"
	RoleAdmin    Role = "admin"
	RoleDelivery Role = "delivery"
)

// NormalizeRole maps a stored role onto a known one. Unknown values are salesmen.
func NormalizeRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleDelivery:
		return RoleDelivery
	default:
		return RoleSalesman
	}
}

// CanDeliver reports whether the role may operate courier routes.
func (r Role) CanDeliver() bool {
	return r == RoleDelivery || r == RoleAdmin
}

// User represents a field app account.
type User struct {
	ID                string
	SalesmanID        string
	SalesmanName      string
	Email             *string
	Phone             *string
	PinHash           string
	Role              Role
	IsActive          bool
	AssignedBookerIDs []string
	CreatedAt         time.Time
}

// CourierSession is the identity snapshot kept in the local cache after login.
type CourierSession struct {
	UserID            string   `json:"userId"`
	SalesmanID        string   `json:"salesmanId"`
	SalesmanName      string   `json:"salesmanName"`
	Email             *string  `json:"email"`
	Phone             *string  `json:"phone"`
	Role              Role     `json:"role"`
	AssignedBookerIDs []string `json:"assignedBookerIds"`
}

// SessionOf builds the cached snapshot of a user.
func SessionOf(u User) CourierSession {
	bookers := u.AssignedBookerIDs
	if bookers == nil {
		bookers = []string{}
	}
	return CourierSession{
		UserID:            u.ID,
		SalesmanID:        u.SalesmanID,
		SalesmanName:      u.SalesmanName,
		Email:             u.Email,
		Phone:             u.Phone,
		Role:              NormalizeRole(string(u.Role)),
		AssignedBookerIDs: bookers,
	}
}

// Identity returns the courier identity consumed by the delivery manager.
func (s CourierSession) Identity() delivery.Identity {
	return delivery.Identity{UserID: s.UserID, SalesmanID: s.SalesmanID}
}

// SignupInput carries a self-registration request.
type SignupInput struct {
	SalesmanID   string
	SalesmanName string
	Email        string
	Phone        string
	Pin          string
}

// NewUser is the row inserted by signup.
type NewUser struct {
	SalesmanID   string
	SalesmanName string
	Email        *string
	Phone        *string
	PinHash      *string
}
