package saved

import (
	"errors"
	"strings"

	flowerrors "github.com/go-drift/flowstate/pkg/errors"
	"github.com/go-drift/flowstate/pkg/metrics"
)

// Handle gives typed access to a Store.
type Handle struct {
	store     Store
	codec     Codec
	namespace string
	metrics   metrics.Collector
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithCodec replaces the default YAMLCodec.
func WithCodec(c Codec) HandleOption {
	return func(h *Handle) { h.codec = c }
}

// WithNamespace prefixes every key with ns and a slash.
func WithNamespace(ns string) HandleOption {
	return func(h *Handle) { h.namespace = strings.TrimSuffix(ns, "/") }
}

// WithMetrics records every store write on c.
func WithMetrics(c metrics.Collector) HandleOption {
	return func(h *Handle) { h.metrics = c }
}

// NewHandle wraps store.
func NewHandle(store Store, opts ...HandleOption) *Handle {
	h := &Handle{
		store:   store,
		codec:   YAMLCodec{},
		metrics: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Store returns the underlying store.
func (h *Handle) Store() Store { return h.store }

// Namespace returns the key prefix, without the trailing slash.
func (h *Handle) Namespace() string { return h.namespace }

func (h *Handle) fullKey(key string) string {
	if h.namespace == "" {
		return key
	}
	return h.namespace + "/" + key
}

// Get decodes the value stored under key. The boolean is false when
// nothing is stored.
func Get[T any](h *Handle, key string) (T, bool, error) {
	var out T
	full := h.fullKey(key)
	data, ok, err := h.store.Get(full)
	if err != nil {
		return out, false, wrap("saved.Get", flowerrors.KindStore, full, err)
	}
	if !ok {
		return out, false, nil
	}
	if err := h.codec.Unmarshal(data, &out); err != nil {
		return out, false, wrap("saved.Get", flowerrors.KindCodec, full, err)
	}
	return out, true, nil
}

// Set encodes v and stores it under key.
func Set[T any](h *Handle, key string, v T) error {
	full := h.fullKey(key)
	data, err := h.codec.Marshal(v)
	if err != nil {
		err = wrap("saved.Set", flowerrors.KindCodec, full, err)
		h.metrics.StoreWrite(full, err)
		return err
	}
	if err := h.store.Set(full, data); err != nil {
		err = wrap("saved.Set", flowerrors.KindStore, full, err)
		h.metrics.StoreWrite(full, err)
		return err
	}
	h.metrics.StoreWrite(full, nil)
	return nil
}

// Remove deletes key.
func (h *Handle) Remove(key string) error {
	full := h.fullKey(key)
	if err := h.store.Delete(full); err != nil {
		return wrap("saved.Remove", flowerrors.KindStore, full, err)
	}
	return nil
}

// Contains reports whether a value is stored under key.
func (h *Handle) Contains(key string) (bool, error) {
	full := h.fullKey(key)
	_, ok, err := h.store.Get(full)
	if err != nil {
		return false, wrap("saved.Contains", flowerrors.KindStore, full, err)
	}
	return ok, nil
}

// Keys returns the keys in the handle's namespace, without the prefix.
func (h *Handle) Keys() ([]string, error) {
	all, err := h.store.Keys()
	if err != nil {
		return nil, wrap("saved.Keys", flowerrors.KindStore, "", err)
	}
	if h.namespace == "" {
		return all, nil
	}
	prefix := h.namespace + "/"
	var keys []string
	for _, k := range all {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

// wrap keeps the kind of an error that is already a FlowError.
func wrap(op string, kind flowerrors.ErrorKind, key string, err error) *flowerrors.FlowError {
	var fe *flowerrors.FlowError
	if errors.As(err, &fe) {
		if fe.Key == "" {
			fe.Key = key
		}
		return fe
	}
	return &flowerrors.FlowError{Op: op, Kind: kind, Key: key, Err: err}
}
