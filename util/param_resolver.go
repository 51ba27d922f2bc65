package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var tokenPattern = regexp.MustCompile("{(.*?)}")

// ResolveInputParams replaces "{$.path}" tokens in string values with the
// value found at that jsonpath in data. Unresolvable tokens become empty.
func ResolveInputParams(data map[string]any, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	resolveParams(data, params, out)
	return out
}

// Lookup evaluates a single jsonpath expression, with or without braces.
func Lookup(data map[string]any, expression string) (any, error) {
	path := strings.TrimSuffix(strings.TrimPrefix(expression, "{"), "}")
	return jsonpath.JsonPathLookup(data, path)
}

func resolveParams(data map[string]any, params map[string]any, output map[string]any) {
	for k, v := range params {
		output[k] = resolveValue(data, v)
	}
}

func resolveValue(data map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		resolveParams(data, val, out)
		return out
	case string:
		return resolveString(data, val)
	case []any:
		list := make([]any, 0, len(val))
		for _, item := range val {
			list = append(list, resolveValue(data, item))
		}
		return list
	default:
		return v
	}
}

func resolveString(data map[string]any, s string) string {
	for _, token := range tokenPattern.FindAllString(s, -1) {
		path := strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")
		if !strings.HasPrefix(path, "$") {
			continue
		}
		value, err := jsonpath.JsonPathLookup(data, path)
		if err != nil || value == nil {
			s = strings.ReplaceAll(s, token, "")
			continue
		}
		s = strings.ReplaceAll(s, token, fmt.Sprintf("%v", value))
	}
	return s
}
