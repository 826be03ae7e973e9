// Package env sources config values from environment variables.
package env

import (
	"context"
	"os"
	"strings"

	"github.com/code-payments/token-lifecycle/pkg/config"
	"github.com/code-payments/token-lifecycle/pkg/config/wrapper"
)

type conf struct {
	key string
}

// NewConfig returns a config reading the upper cased key on every Get.
// Unset and blank variables yield config.ErrNoValue.
func NewConfig(key string) config.Config {
	return &conf{key: strings.ToUpper(key)}
}

// Get implements Config.Get
func (c *conf) Get(_ context.Context) (interface{}, error) {
	val, ok := os.LookupEnv(c.key)
	val = strings.TrimSpace(val)
	if !ok || len(val) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(val), nil
}

// Shutdown implements Config.Shutdown
func (c *conf) Shutdown() {
}

// Namespace groups the variables of one component under a common prefix,
// so Namespace("token_lifecycle").Key("decimals") is TOKEN_LIFECYCLE_DECIMALS.
type Namespace string

func (n Namespace) Key(name string) string {
	if len(n) == 0 {
		return strings.ToUpper(name)
	}
	return strings.ToUpper(string(n) + "_" + name)
}

func (n Namespace) String(name string, defaultValue string) config.String {
	return wrapper.NewStringConfig(NewConfig(n.Key(name)), defaultValue)
}

func (n Namespace) Uint64(name string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(n.Key(name)), defaultValue)
}

func (n Namespace) Bool(name string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(n.Key(name)), defaultValue)
}
