package store

import (
	"context"
	"errors"
	"sync"
)

type widget struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

func (w widget) Key() string { return w.ID }

func (w widget) Clone() widget {
	cp := w
	cp.Tags = append([]string(nil), w.Tags...)
	return cp
}

// recordingSink is an in-memory Sink with injectable failures.
type recordingSink struct {
	mu        sync.Mutex
	data      map[string][]byte
	saves     []string
	deletes   []string
	clears    int
	failLoad  bool
	failSave  bool
	failDel   bool
	failClear bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{data: make(map[string][]byte)}
}

func (r *recordingSink) Driver() string { return "recording" }

func (r *recordingSink) Load(context.Context) (map[string][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failLoad {
		return nil, errors.New("load fail")
	}
	out := make(map[string][]byte, len(r.data))
	for k, v := range r.data {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (r *recordingSink) Save(_ context.Context, key string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, key)
	if r.failSave {
		return errors.New("save fail")
	}
	r.data[key] = append([]byte(nil), payload...)
	return nil
}

func (r *recordingSink) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, key)
	if r.failDel {
		return errors.New("delete fail")
	}
	delete(r.data, key)
	return nil
}

func (r *recordingSink) Clear(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	if r.failClear {
		return errors.New("clear fail")
	}
	r.data = make(map[string][]byte)
	return nil
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.add("d:" + msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.add("w:" + msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.add("e:" + msg) }

func (c *captureLogger) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *captureLogger) has(s string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == s {
			return true
		}
	}
	return false
}
