package buildops

import (
	"errors"
	"fmt"

	"gtc/internal/model"
)

// ErrInvalidDetails is returned when a payload lacks a required field or
// holds it in an unexpected shape.
var ErrInvalidDetails = errors.New("invalid build operation details")

// fields reads typed values from a payload. The first failure sticks and
// later reads return zero values.
type fields struct {
	payload model.Payload
	path    string
	err     *error
}

func newFields(p model.Payload, path string) fields {
	var err error
	if p == nil {
		err = fmt.Errorf("%w: %s is missing", ErrInvalidDetails, path)
	}
	return fields{payload: p, path: path, err: &err}
}

func (f fields) fail(key, want string) {
	if *f.err == nil {
		*f.err = fmt.Errorf("%w: %s.%s is not %s", ErrInvalidDetails, f.path, key, want)
	}
}

func (f fields) Err() error {
	return *f.err
}

func (f fields) str(key string) string {
	if *f.err != nil {
		return ""
	}
	s, ok := f.payload.String(key)
	if !ok {
		f.fail(key, "a string")
	}
	return s
}

func (f fields) optStr(key string) (string, bool) {
	if *f.err != nil {
		return "", false
	}
	v, ok := f.payload[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		f.fail(key, "a string")
	}
	return s, ok
}

func (f fields) int(key string) int64 {
	if *f.err != nil {
		return 0
	}
	n, ok := f.payload.Int(key)
	if !ok {
		f.fail(key, "a number")
	}
	return n
}

func (f fields) obj(key string) fields {
	child := fields{path: f.path + "." + key, err: f.err}
	if *f.err != nil {
		return child
	}
	p, ok := f.payload.Map(key)
	if !ok {
		f.fail(key, "an object")
	}
	child.payload = p
	return child
}

// optObj returns the nested object under key, or false when it is absent
// or null.
func (f fields) optObj(key string) (fields, bool) {
	if *f.err != nil {
		return fields{err: f.err}, false
	}
	if v, ok := f.payload[key]; !ok || v == nil {
		return fields{err: f.err}, false
	}
	return f.obj(key), *f.err == nil
}

func (f fields) stringMap(key string) map[string]string {
	if *f.err != nil {
		return nil
	}
	m, ok := f.payload.StringMap(key)
	if !ok {
		f.fail(key, "an object")
	}
	return m
}

func (f fields) list(key string) []any {
	if *f.err != nil {
		return nil
	}
	l, ok := f.payload.List(key)
	if !ok {
		f.fail(key, "an array")
	}
	return l
}
