package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TagType is the closed set of resource kinds a cached result can depend on.
type TagType int

const (
	TagTransaction TagType = iota + 1
	TagBalance
	TagCategory
	TagSummary
	TagCurrency
)

// ListID marks the tag of a whole collection.
const ListID = "LIST"

func (t TagType) String() string {
	switch t {
	case TagTransaction:
		return "Transaction"
	case TagBalance:
		return "Balance"
	case TagCategory:
		return "Category"
	case TagSummary:
		return "Summary"
	case TagCurrency:
		return "Currency"
	default:
		return fmt.Sprintf("TagType(%d)", int(t))
	}
}

func ParseTagType(s string) (TagType, error) {
	switch s {
	case "Transaction":
		return TagTransaction, nil
	case "Balance":
		return TagBalance, nil
	case "Category":
		return TagCategory, nil
	case "Summary":
		return TagSummary, nil
	case "Currency":
		return TagCurrency, nil
	default:
		return 0, fmt.Errorf("unknown tag type %q", s)
	}
}

// Tag labels a cached result with a resource it depends on. An empty ID means
// the whole resource type.
type Tag struct {
	Type TagType
	ID   string
}

func TypeTag(t TagType) Tag { return Tag{Type: t} }

func ListTag(t TagType) Tag { return Tag{Type: t, ID: ListID} }

func IDTag(t TagType, id string) Tag { return Tag{Type: t, ID: id} }

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type.String()
	}
	return t.Type.String() + ":" + t.ID
}

// Matches reports whether invalidating t affects an entry that declared
// provided. A tag without ID matches every tag of its type; a tag with ID
// matches the same ID and providers that declared only the type.
func (t Tag) Matches(provided Tag) bool {
	if t.Type != provided.Type {
		return false
	}
	if t.ID == "" || provided.ID == "" {
		return true
	}
	return t.ID == provided.ID
}

// ParseTag reads the "Type" or "Type:ID" form.
func ParseTag(s string) (Tag, error) {
	typ, id, _ := strings.Cut(s, ":")
	tt, err := ParseTagType(typ)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Type: tt, ID: id}, nil
}

type tagJSON struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(tagJSON{Type: t.Type.String(), ID: t.ID})
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	var raw tagJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tt, err := ParseTagType(raw.Type)
	if err != nil {
		return err
	}
	*t = Tag{Type: tt, ID: raw.ID}
	return nil
}

// TagStrings renders tags for logging.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

func matchesAny(invalidated, provided []Tag) bool {
	for _, inv := range invalidated {
		for _, p := range provided {
			if inv.Matches(p) {
				return true
			}
		}
	}
	return false
}
