package options

import "strings"

// TypeTag classifies how a stored value is presented to steps.
type TypeTag string

const (
	TagPlain          TypeTag = ""
	TagScript         TypeTag = "script"
	TagUI             TypeTag = "ui"
	TagDictionary     TypeTag = "dictionary"
	TagReferenceGroup TypeTag = "reference_group"
	TagNote           TypeTag = "note"
)

var knownTags = map[TypeTag]struct{}{
	TagScript:         {},
	TagUI:             {},
	TagDictionary:     {},
	TagReferenceGroup: {},
	TagNote:           {},
}

// ParseTag normalizes a tag name. "plain" and "" both map to TagPlain.
func ParseTag(name string) (TypeTag, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "plain" {
		return TagPlain, true
	}
	tag := TypeTag(name)
	_, ok := knownTags[tag]
	return tag, ok
}

// String returns the tag name, "plain" for untagged values.
func (t TypeTag) String() string {
	if t == TagPlain {
		return "plain"
	}
	return string(t)
}

// Value is a stored option value and its tag.
type Value struct {
	Raw  any
	Type TypeTag
}

// Key builds the qualified key for name within group.
func Key(name, group string) string {
	group = strings.Trim(strings.TrimSpace(group), ".")
	name = strings.TrimSpace(name)
	if group == "" {
		return name
	}
	return group + "." + name
}

// Leaf returns the final dot-separated segment of key.
func Leaf(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// Group returns everything before the final segment of key.
func Group(key string) string {
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		return key[:idx]
	}
	return ""
}
