package sqlstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/platinummonkey/permissions/pkg/storage"
)

// List columns hold JSON arrays. Empty lists are stored as "[]", never NULL.

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode group list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode group list: %w", err)
	}
	return values, nil
}

func encodeTimed(values []storage.TimedGroup) (string, error) {
	if values == nil {
		values = []storage.TimedGroup{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode timed groups: %w", err)
	}
	return string(b), nil
}

func decodeTimed(raw string) ([]storage.TimedGroup, error) {
	values := []storage.TimedGroup{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode timed groups: %w", err)
	}
	return values, nil
}

// likeEscape replaces the backslash LIKE escape of MySQL and PostgreSQL, since
// encoded names may contain backslashes ("\"", "\u003c").
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// likeClause is the condition selecting rows whose static or timed list may
// mention a group. It binds likePattern twice.
const likeClause = "permission_groups LIKE ? ESCAPE '" + likeEscape + "' OR timed_permission_groups LIKE ? ESCAPE '" + likeEscape + "'"

// likePattern matches a JSON-encoded list containing name. Over-matches are
// filtered by the caller after decoding.
func likePattern(name string) string {
	b, _ := json.Marshal(name)
	return "%" + likeEscaper.Replace(string(b)) + "%"
}
