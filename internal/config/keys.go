package config

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// field is one settable leaf of Config, addressed by its dotted JSON path.
type field struct {
	key     string
	index   []int
	kind    reflect.Kind
	bits    int
	secret  bool
	choices []string
}

var (
	fields     = describe(reflect.TypeOf(Config{}), "", nil)
	fieldByKey = func() map[string]*field {
		m := make(map[string]*field, len(fields))
		for i := range fields {
			m[fields[i].key] = &fields[i]
		}
		return m
	}()
)

// describe walks a struct type and returns its leaves in declaration order.
// Keys come from json tags; `secret:"true"` marks values to mask and
// `choices:"a,b"` restricts a string to a fixed set.
func describe(t reflect.Type, prefix string, index []int) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		idx := append(slices.Clone(index), i)
		if sf.Type.Kind() == reflect.Struct {
			out = append(out, describe(sf.Type, key, idx)...)
			continue
		}
		f := field{
			key:    key,
			index:  idx,
			kind:   sf.Type.Kind(),
			secret: sf.Tag.Get("secret") == "true",
		}
		if f.kind == reflect.Int || f.kind == reflect.Int64 {
			f.bits = sf.Type.Bits()
		}
		if c := sf.Tag.Get("choices"); c != "" {
			f.choices = strings.Split(c, ",")
		}
		out = append(out, f)
	}
	return out
}

// Keys returns every config key in declaration order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// IsSecretKey reports whether the value under key is masked on display.
func IsSecretKey(key string) bool {
	f, ok := fieldByKey[key]
	return ok && f.secret
}

// Choices returns the allowed values of key, or nil when any value goes.
func Choices(key string) []string {
	if f, ok := fieldByKey[key]; ok {
		return f.choices
	}
	return nil
}

func lookup(key string) (*field, error) {
	f, ok := fieldByKey[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return f, nil
}

// Get returns the value under a dotted key with its Go type.
func (c *Config) Get(key string) (any, error) {
	f, err := lookup(key)
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(c).Elem().FieldByIndex(f.index).Interface(), nil
}

// Set parses raw into the type of the field under key and stores it.
func (c *Config) Set(key, raw string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	v, err := f.parse(raw)
	if err != nil {
		return err
	}
	reflect.ValueOf(c).Elem().FieldByIndex(f.index).Set(reflect.ValueOf(v).Convert(fieldType(f)))
	return nil
}

func fieldType(f *field) reflect.Type {
	return reflect.TypeOf(Config{}).FieldByIndex(f.index).Type
}

func (f *field) parse(raw string) (any, error) {
	switch f.kind {
	case reflect.String:
		if len(f.choices) > 0 && !slices.Contains(f.choices, raw) {
			return nil, fmt.Errorf("invalid %s %q: want one of %s", f.key, raw, strings.Join(f.choices, ", "))
		}
		return raw, nil
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, f.bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: want an integer", f.key, raw)
		}
		return n, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: want true or false", f.key, raw)
		}
		return b, nil
	}
	return nil, fmt.Errorf("config key %s has unsupported type %s", f.key, f.kind)
}

// checkChoices verifies every restricted string field of c.
func (c *Config) checkChoices() error {
	v := reflect.ValueOf(c).Elem()
	for _, f := range fields {
		if len(f.choices) == 0 {
			continue
		}
		if s := v.FieldByIndex(f.index).String(); !slices.Contains(f.choices, s) {
			return fmt.Errorf("invalid %s %q", f.key, s)
		}
	}
	return nil
}

// ListValues returns every key of cfg with its value, masking secrets when
// mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := cfg.Get(f.key)
		if err != nil {
			return nil, err
		}
		if mask {
			v = MaskValue(f.key, v)
		}
		out[f.key] = v
	}
	return out, nil
}

// MaskValue hides all but the last four characters of a non-empty secret.
// Other values are returned unchanged.
func MaskValue(key string, v any) any {
	s, ok := v.(string)
	if !ok || s == "" || !IsSecretKey(key) {
		return v
	}
	r := []rune(s)
	if len(r) > 4 {
		r = r[len(r)-4:]
	}
	return "***" + string(r)
}

// setIn stores v under a dotted key in a nested map, creating levels as
// needed. Unrelated keys in m are left untouched.
func setIn(m map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
