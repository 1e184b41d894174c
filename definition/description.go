package definition

import (
	"fmt"
)

// FormatDescription normalizes a description given as a string, an object
// {info, authors, contributors} or nothing. Any other shape is an error, and
// the returned Description then has every field nil.
func FormatDescription(raw any) (Description, error) {
	switch v := raw.(type) {
	case nil:
		return Description{}, nil
	case string:
		return Description{Info: &v}, nil
	case map[string]any:
		var d Description
		switch info := v["info"].(type) {
		case nil:
		case string:
			if info != "" {
				d.Info = &info
			}
		default:
			return Description{}, fmt.Errorf("description info is %T, want string", info)
		}
		if truthy(v["authors"]) {
			d.Authors = FormatAuthors(v["authors"])
		}
		if truthy(v["contributors"]) {
			d.Contributors = FormatAuthors(v["contributors"])
		}
		return d, nil
	default:
		return Description{}, fmt.Errorf("description is %T, want string or object", raw)
	}
}

// FormatAuthors normalizes a string, author object or list of authors into
// an author list. Anything else yields a single all-nil author.
func FormatAuthors(raw any) []Author {
	switch v := raw.(type) {
	case string:
		return []Author{conformAuthor(v, nil, nil)}
	case map[string]any:
		return []Author{conformAuthor(v["name"], v["email"], v["url"])}
	case []any:
		out := make([]Author, 0, len(v))
		for _, a := range v {
			switch x := a.(type) {
			case map[string]any:
				out = append(out, conformAuthor(x["name"], x["email"], x["url"]))
			case string:
				out = append(out, conformAuthor(x, nil, nil))
			default:
				out = append(out, Author{})
			}
		}
		return out
	}
	return []Author{{}}
}

func conformAuthor(name, email, url any) Author {
	return Author{Name: optString(name), Email: optString(email), URL: optString(url)}
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// truthy mirrors the loose presence check used for optional description
// fields: absent, null, false, 0 and "" count as missing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	}
	return true
}
