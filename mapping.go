package oauth2login

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrPathNotFound = fmt.Errorf("path not found in user info")
	ErrNotScalar    = fmt.Errorf("value is not a simple scalar")
)

// MappingTable maps dotted property names (e.g. `openmrs.mapping.user.username`)
// to JSON paths inside a user info document.
type MappingTable map[string]string

// JSONPathReader reads a value out of a JSON document.
//
// The returned value is the decoded Go representation: string, json.Number,
// bool, nil, []interface{} or map[string]interface{}.
type JSONPathReader interface {
	Read(doc []byte, path string) (value interface{}, found bool)
}

// GJSONReader implements JSONPathReader on top of gjson.
type GJSONReader struct{}

var _ JSONPathReader = GJSONReader{}

var (
	bracketIndex = regexp.MustCompile(`\[(\d+)\]`)
	bracketKey   = regexp.MustCompile(`\[['"]([^'"]+)['"]\]`)
)

// gjsonEscaper escapes the gjson path syntax inside a single key.
var gjsonEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

// toGJSONPath turns a `$.a.b[0]` style path into gjson's `a.b.0`. Bracket
// quoted keys are kept as one segment, e.g. `['https://x.org/roles']`.
func toGJSONPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")
	p = bracketIndex.ReplaceAllString(p, ".$1")
	p = bracketKey.ReplaceAllStringFunc(p, func(m string) string {
		return "." + gjsonEscaper.Replace(bracketKey.FindStringSubmatch(m)[1])
	})
	return strings.TrimPrefix(p, ".")
}

func (GJSONReader) Read(doc []byte, path string) (interface{}, bool) {
	p := toGJSONPath(path)
	if p == "" {
		return nil, false
	}
	res := gjson.GetBytes(doc, p)
	if !res.Exists() {
		return nil, false
	}
	return gjsonValue(res), true
}

// gjsonValue is res.Value() with numbers kept as their JSON text.
func gjsonValue(res gjson.Result) interface{} {
	switch {
	case res.Type == gjson.Number:
		return json.Number(res.Raw)
	case res.IsArray():
		items := res.Array()
		rv := make([]interface{}, 0, len(items))
		for _, item := range items {
			rv = append(rv, gjsonValue(item))
		}
		return rv
	default:
		return res.Value()
	}
}

// PropertyMapper resolves mapping keys into values of a user info document.
type PropertyMapper struct {
	table  MappingTable
	reader JSONPathReader
	logger *zap.SugaredLogger
}

// NewPropertyMapper creates a PropertyMapper. A nil reader defaults to GJSONReader.
func NewPropertyMapper(
	table MappingTable,
	reader JSONPathReader,
	logger *zap.SugaredLogger,
) PropertyMapper {
	if reader == nil {
		reader = GJSONReader{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if table == nil {
		table = MappingTable{}
	}
	return PropertyMapper{table: table, reader: reader, logger: logger}
}

// Mapped tells if key has a mapping.
func (m PropertyMapper) Mapped(key string) bool {
	_, ok := m.table[key]
	return ok
}

// Lookup reads the raw value mapped by key. mapped is false when the key is
// absent from the table.
func (m PropertyMapper) Lookup(doc []byte, key string) (value interface{}, mapped bool, err error) {
	path, ok := m.table[key]
	if !ok {
		return nil, false, nil
	}

	v, found := m.reader.Read(doc, path)
	if !found {
		return nil, true, fmt.Errorf("%w: %q mapped from %q", ErrPathNotFound, path, key)
	}

	return v, true, nil
}

// String resolves key to a scalar string. Unmapped keys and JSON null yield def.
// A missing path is an error when required, def otherwise.
func (m PropertyMapper) String(doc []byte, key string, def string, required bool) (string, error) {
	v, mapped, err := m.Lookup(doc, key)
	if !mapped {
		m.logger.Debugw("property is not mapped, using default", "property", key)
		return def, nil
	}
	if err != nil {
		if required {
			return "", err
		}
		m.logger.Warnw("mapped property not found in user info, using default",
			"property", key, "error", err)
		return def, nil
	}
	if v == nil {
		return def, nil
	}

	s, err := scalarString(v)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, key)
	}
	return s, nil
}

// StringList resolves key to a list of strings. The value can either be a JSON
// array or a comma separated string; entries are trimmed and blanks dropped.
func (m PropertyMapper) StringList(doc []byte, key string) ([]string, error) {
	rv := []string{}

	v, mapped, err := m.Lookup(doc, key)
	if !mapped {
		return rv, nil
	}
	if err != nil {
		m.logger.Warnw("mapped list property not found in user info", "property", key, "error", err)
		return rv, nil
	}

	var items []interface{}
	switch vv := v.(type) {
	case nil:
		return rv, nil
	case []interface{}:
		items = vv
	default:
		items = []interface{}{vv}
	}

	for _, item := range items {
		s, err := scalarString(item)
		if err != nil {
			return nil, fmt.Errorf("%w: entry of %q", err, key)
		}
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				rv = append(rv, part)
			}
		}
	}

	return rv, nil
}

func scalarString(v interface{}) (string, error) {
	switch vv := v.(type) {
	case nil:
		return "", nil
	case string:
		return vv, nil
	case bool:
		return strconv.FormatBool(vv), nil
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), nil
	case json.Number:
		return vv.String(), nil
	default:
		return "", ErrNotScalar
	}
}
