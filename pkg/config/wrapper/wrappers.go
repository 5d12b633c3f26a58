package wrapper

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/config"
)

// ErrUnsuportedConversion indicates the wrapper does not implement conversion from the source type
var ErrUnsuportedConversion = errors.New("config: wrapper conversion from source type not implemented")

type converter[T any] func(raw interface{}) (T, error)

type typedConfig[T any] struct {
	override     config.Config
	defaultValue T
	convert      converter[T]

	stateMu   sync.RWMutex
	lastValue T
}

func newTypedConfig[T any](override config.Config, defaultValue T, convert converter[T]) *typedConfig[T] {
	return &typedConfig[T]{
		override:     override,
		defaultValue: defaultValue,
		convert:      convert,
		lastValue:    defaultValue,
	}
}

// GetSafe gets a config value and propagates any errors that arise. A best-effort
// attempt is made to return the last known value
func (c *typedConfig[T]) GetSafe(ctx context.Context) (T, error) {
	raw, err := c.override.Get(ctx)

	c.stateMu.RLock()
	lastValue := c.lastValue
	c.stateMu.RUnlock()

	if err == config.ErrNoValue {
		c.set(c.defaultValue)
		return c.defaultValue, nil
	} else if err != nil {
		return lastValue, err
	}

	value, err := c.convert(raw)
	if err != nil {
		return lastValue, err
	}
	c.set(value)
	return value, nil
}

// Get is a wrapper for GetSafe that ignores the returned error
func (c *typedConfig[T]) Get(ctx context.Context) T {
	val, _ := c.GetSafe(ctx)
	return val
}

// Shutdown signals the config to stop all underlying resources
func (c *typedConfig[T]) Shutdown() {
	c.override.Shutdown()
}

func (c *typedConfig[T]) set(value T) {
	c.stateMu.Lock()
	c.lastValue = value
	c.stateMu.Unlock()
}

// fromText builds a converter accepting either T itself, or raw bytes as
// read from the environment.
func fromText[T any](parse func(string) (T, error)) converter[T] {
	return func(raw interface{}) (T, error) {
		switch v := raw.(type) {
		case T:
			return v, nil
		case []byte:
			return parse(strings.TrimSpace(string(v)))
		default:
			var zero T
			return zero, ErrUnsuportedConversion
		}
	}
}

func NewBoolConfig(override config.Config, defaultValue bool) config.Bool {
	return newTypedConfig(override, defaultValue, fromText(strconv.ParseBool))
}

func NewDurationConfig(override config.Config, defaultValue time.Duration) config.Duration {
	return newTypedConfig(override, defaultValue, fromText(time.ParseDuration))
}

func NewFloat64Config(override config.Config, defaultValue float64) config.Float64 {
	return newTypedConfig(override, defaultValue, fromText(func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}))
}

// NewInt64Config also accepts int overrides.
func NewInt64Config(override config.Config, defaultValue int64) config.Int64 {
	parse := fromText(func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
	return newTypedConfig(override, defaultValue, func(raw interface{}) (int64, error) {
		if v, ok := raw.(int); ok {
			return int64(v), nil
		}
		return parse(raw)
	})
}

// NewUint64Config also accepts uint and non-negative int overrides.
func NewUint64Config(override config.Config, defaultValue uint64) config.Uint64 {
	parse := fromText(func(s string) (uint64, error) {
		return strconv.ParseUint(s, 10, 64)
	})
	return newTypedConfig(override, defaultValue, func(raw interface{}) (uint64, error) {
		switch v := raw.(type) {
		case uint:
			return uint64(v), nil
		case int:
			if v < 0 {
				return 0, errors.Errorf("config: negative value %d for uint64", v)
			}
			return uint64(v), nil
		}
		return parse(raw)
	})
}
