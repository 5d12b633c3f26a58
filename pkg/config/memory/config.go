package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/gideon-vouchers/voucher-server/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is a settable config.Config for tests. A nil value reads as unset.
type Config struct {
	mu       sync.RWMutex
	value    interface{}
	induced  bool
	shutdown bool
}

func NewConfig(value interface{}) *Config {
	return &Config{value: value}
}

func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.shutdown {
		return nil, config.ErrShutdown
	}
	if c.induced {
		return nil, errDeveloperInduced
	}
	if c.value == nil {
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

func (c *Config) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

func (c *Config) Shutdown() {
	c.update(func() { c.shutdown = true })
}

func (c *Config) SetValue(value interface{}) {
	c.update(func() { c.value = value })
}

func (c *Config) ClearValue() {
	c.SetValue(nil)
}

// InduceErrors makes Get fail until StopInducingErrors is called.
func (c *Config) InduceErrors() {
	c.update(func() { c.induced = true })
}

func (c *Config) StopInducingErrors() {
	c.update(func() { c.induced = false })
}
