// Package distributions resolves the supply channels a user may work in.
package distributions

import "errors"

// ErrNotFound indicates the user row does not exist.
var ErrNotFound = errors.New("distributions: user not found")

// Distribution is a supply channel.
type Distribution struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
	IsActive    bool    `json:"isActive"`
	DistID      *int64  `json:"distId"`
	ClientName  *string `json:"clientName"`
	ClientCode  *string `json:"clientCode"`
}

// UserDistribution links a user to a distribution.
type UserDistribution struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	DistributionID string `json:"distributionId"`
}

// Selection is what a user sees on the distribution picker.
type Selection struct {
	Distributions []Distribution     `json:"distributions"`
	Assigned      []UserDistribution `json:"assigned"`
	Selected      *Distribution      `json:"selected"`
	Offline       bool               `json:"offline,omitempty"`
}
