package models

import (
	"strings"
	"unicode/utf8"
)

// MaxTagNameLength bounds a normalized tag name, in characters.
const MaxTagNameLength = 100

// Tag is shared between tasks and is never deleted once created.
type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex:ux_tags_name"`
}

// NormalizeTagName trims and lowercases a tag name. An empty result means the
// name should be ignored.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidTagName reports whether name fits the tag column once normalized.
// Names that normalize to empty are dropped later, so they are valid too.
func ValidTagName(name string) bool {
	return utf8.RuneCountInString(NormalizeTagName(name)) <= MaxTagNameLength
}

// NormalizeTagNames normalizes names, drops empties and removes duplicates
// while keeping the first occurrence order.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		name := NormalizeTagName(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ParseTagList splits a comma separated query value into normalized names.
func ParseTagList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NormalizeTagNames(strings.Split(raw, ","))
}
