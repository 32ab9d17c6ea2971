// Package types contains the JSON bodies exchanged over the HTTP API.
package types

import "time"

// RatingRequest is the body of POST /ratings.
type RatingRequest struct {
	EventID string     `json:"event_id,omitempty" validate:"omitempty,max=128"`
	UserID  string     `json:"user_id" validate:"required,max=256"`
	ItemID  string     `json:"item_id" validate:"required,max=256"`
	Rating  *float64   `json:"rating" validate:"required"`
	TS      *time.Time `json:"ts,omitempty"`
}

// RatingResponse acknowledges a rating submission.
type RatingResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"` // "accepted" or "duplicate"
}

// Neighbor is a user ranked by similarity.
type Neighbor struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// SimilarUsersResponse is returned by GET /users/{userID}/similar.
type SimilarUsersResponse struct {
	User      string     `json:"user"`
	Kernel    string     `json:"kernel"`
	Neighbors []Neighbor `json:"neighbors"`
}

// RecommendationsResponse is returned by GET /users/{userID}/recommendations.
// When Possible is false Items is empty and Message explains why.
type RecommendationsResponse struct {
	User     string   `json:"user"`
	Kernel   string   `json:"kernel"`
	Possible bool     `json:"possible"`
	Items    []string `json:"items"`
	Message  string   `json:"message,omitempty"`
}

// SimilarityResponse is returned by GET /similarity.
type SimilarityResponse struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Kernel string  `json:"kernel"`
	Score  float64 `json:"score"`
}

// UserRatingsResponse is returned by GET /users/{userID}/ratings.
type UserRatingsResponse struct {
	User    string             `json:"user"`
	Ratings map[string]float64 `json:"ratings"`
}

// Stats describes the running service.
type Stats struct {
	Started       bool     `json:"started"`
	Store         string   `json:"store"`
	Users         int      `json:"users"`
	Ratings       int      `json:"ratings"`
	QueueLength   int      `json:"queue_length"`
	QueueCapacity int      `json:"queue_capacity"`
	Workers       int      `json:"workers"`
	Applied       int64    `json:"applied"`
	DedupeSize    int64    `json:"dedupe_size"`
	DefaultKernel string   `json:"default_kernel"`
	Kernels       []string `json:"kernels"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
