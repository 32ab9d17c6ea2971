// Package model contains domain models passed between layers.
package model

import "time"

// RatingEvent represents a single rating submitted by a client.
// Fields mirror the OpenAPI schema for POST /ratings.
type RatingEvent struct {
	EventID string    // unique id for idempotency
	UserID  string    // user who rated
	ItemID  string    // rated item, e.g. a movie title
	Rating  float64   // rating value; 0 is stored but counts as unseen when recommending
	TS      time.Time // submission timestamp
}

// Neighbor is a (user, similarity) pair produced when comparing users.
type Neighbor struct {
	UserID string
	Score  float64
}

// ItemScore is an item with its aggregated, similarity-weighted rating.
type ItemScore struct {
	ItemID string
	Score  float64
}
