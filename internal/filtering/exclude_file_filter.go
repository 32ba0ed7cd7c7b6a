package filtering

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/spigell/mentor-ranker/internal/profile"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes mentors listed in a JSON exclude file.
// The file holds an array whose items are either ids or objects with an "id" field:
//
//	["8d0c...", {"id": "51f2...", "reason": "on leave"}]
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: strings.TrimSpace(path),
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_list" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, _ profile.Profile, pool []profile.Profile) ([]profile.Profile, Step, error) {
	initial := len(pool)
	if f.path == "" {
		return pool, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	excluded, err := ExcludedIDsFromFile(f.path)
	if err != nil {
		return pool, Step{}, fmt.Errorf("getting excluded mentors from file: %w", err)
	}

	kept, dropped := keep(pool, func(p profile.Profile) bool {
		_, ok := excluded[p.ID()]
		return !ok
	})

	return kept, stepOf(initial, kept, dropped), nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

// ExcludedIDsFromFile reads the exclude list. A missing file means nothing is excluded.
func ExcludedIDsFromFile(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(data)) == "" {
		return map[string]struct{}{}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}

	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		return nil, fmt.Errorf("%s: expected a JSON array", path)
	}

	ids := make(map[string]struct{})
	for _, item := range list.Array() {
		id := item
		if item.IsObject() {
			id = item.Get("id")
		}
		if id.Type != gjson.String {
			return nil, fmt.Errorf("%s: entry %s has no string id", path, item.Raw)
		}
		if v := strings.TrimSpace(id.String()); v != "" {
			ids[v] = struct{}{}
		}
	}

	return ids, nil
}
