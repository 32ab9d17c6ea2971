// Package dataset reads rating tables from disk. Two layouts are supported:
// a JSON object of users to item ratings ({"user": {"item": 4.5}}) and a
// MovieLens-style CSV with a header row naming the user, item and rating columns.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/usercf/internal/domain/model"
)

// Accepted header names per CSV column, compared case-insensitively.
var (
	userColumns   = []string{"user", "user_id", "userid"}
	itemColumns   = []string{"item", "item_id", "itemid", "movie", "movie_id", "movieid", "title"}
	ratingColumns = []string{"rating", "score"}
)

// Load reads the table at path, choosing the layout from the file extension.
func Load(path string) (model.RatingTable, error) {
	var read func(io.Reader) (model.RatingTable, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		read = ReadJSON
	case ".csv":
		read = ReadCSV
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrFormat, filepath.Ext(path))
	}

	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	table, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadJSON decodes a {"user": {"item": rating}} document. Users with no
// ratings are dropped, matching what the service keeps after seeding.
func ReadJSON(r io.Reader) (model.RatingTable, error) {
	var table model.RatingTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if table == nil {
		table = make(model.RatingTable)
	}
	for user, items := range table {
		if user == "" {
			return nil, fmt.Errorf("%w: empty user id", ErrFormat)
		}
		if len(items) == 0 {
			delete(table, user)
		}
	}
	return table, nil
}

// ReadCSV parses rows of user, item and rating. Extra columns are ignored.
// A later row for the same user and item replaces an earlier one.
func ReadCSV(r io.Reader) (model.RatingTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	userCol, itemCol, ratingCol, err := columns(header)
	if err != nil {
		return nil, err
	}
	width := max(userCol, itemCol, ratingCol) + 1

	table := make(model.RatingTable)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) < width {
			return nil, fmt.Errorf("%w: line %d: expected at least %d fields, got %d", ErrFormat, line, width, len(row))
		}

		user, item := strings.TrimSpace(row[userCol]), strings.TrimSpace(row[itemCol])
		if user == "" || item == "" {
			return nil, fmt.Errorf("%w: line %d: empty user or item", ErrFormat, line)
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(row[ratingCol]), 64)
		if err != nil || math.IsNaN(rating) || math.IsInf(rating, 0) {
			return nil, fmt.Errorf("%w: line %d: invalid rating %q", ErrFormat, line, row[ratingCol])
		}
		table.Set(user, item, rating)
	}
	return table, nil
}

func columns(header []string) (user, item, rating int, err error) {
	user, item, rating = -1, -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch {
		case user < 0 && slices.Contains(userColumns, name):
			user = i
		case item < 0 && slices.Contains(itemColumns, name):
			item = i
		case rating < 0 && slices.Contains(ratingColumns, name):
			rating = i
		}
	}
	if user < 0 || item < 0 || rating < 0 {
		return 0, 0, 0, fmt.Errorf("%w: header %v must name user, item and rating columns", ErrFormat, header)
	}
	return user, item, rating, nil
}
