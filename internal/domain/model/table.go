package model

import "sort"

// RatingTable maps user id -> item id -> rating.
//
// A user's inner map holds only items that user has rated. The engines treat
// the table as read-only and never keep a reference past a single call.
type RatingTable map[string]map[string]float64

// HasUser reports whether the user is present in the table.
func (t RatingTable) HasUser(user string) bool {
	_, ok := t[user]
	return ok
}

// Users returns all user ids in ascending order.
func (t RatingTable) Users() []string {
	users := make([]string, 0, len(t))
	for u := range t {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Rating returns the rating a user gave an item and whether it exists.
func (t RatingTable) Rating(user, item string) (float64, bool) {
	r, ok := t[user][item]
	return r, ok
}

// Set stores a rating, creating the user's map when needed.
func (t RatingTable) Set(user, item string, rating float64) {
	m, ok := t[user]
	if !ok {
		m = make(map[string]float64)
		t[user] = m
	}
	m[item] = rating
}

// Count returns the total number of stored ratings.
func (t RatingTable) Count() int {
	n := 0
	for _, items := range t {
		n += len(items)
	}
	return n
}

// Clone returns a deep copy that shares no maps with t.
func (t RatingTable) Clone() RatingTable {
	out := make(RatingTable, len(t))
	for u, items := range t {
		m := make(map[string]float64, len(items))
		for i, r := range items {
			m[i] = r
		}
		out[u] = m
	}
	return out
}

// CoRated returns the items both users rated, in ascending order.
// Unknown users yield an empty result.
func (t RatingTable) CoRated(a, b string) []string {
	ra, rb := t[a], t[b]
	if len(rb) < len(ra) {
		ra, rb = rb, ra
	}
	items := make([]string, 0, len(ra))
	for item := range ra {
		if _, ok := rb[item]; ok {
			items = append(items, item)
		}
	}
	sort.Strings(items)
	return items
}
