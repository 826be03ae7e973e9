package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application specific configuration, decoded from the "app"
// section of the config file and passed to App.Init.
type Config map[string]interface{}

// BaseConfig is the process level configuration shared by every service.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`
	AppName  string `mapstructure:"app_name"`

	ServerConfig  `mapstructure:",squash"`
	DebugConfig   `mapstructure:",squash"`
	RuntimeConfig `mapstructure:",squash"`

	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	// AppConfig should be decoded by the app with mapstructure.
	AppConfig Config `mapstructure:"app"`
}

// ServerConfig configures the public HTTP server.
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`

	// TLSCertificate and TLSKey are locations understood by LoadFile. TLS is
	// enabled when a certificate is set.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// DebugConfig configures the private debug server.
type DebugConfig struct {
	DebugListenAddress string `mapstructure:"debug_listen_address"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`
}

// RuntimeConfig tunes the Go runtime of the process.
type RuntimeConfig struct {
	// The ballast is capped at half of the container's memory.
	// https://blog.twitch.tv/en/2019/04/10/go-memory-ballast-how-i-learnt-to-stop-worrying-and-love-the-heap/
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Restarts the process on a schedule to contain slow leaks.
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",
	AppName:  "token-lifecycle",

	ServerConfig: ServerConfig{
		ListenAddress:       ":8085",
		ShutdownGracePeriod: 30 * time.Second,
	},
	DebugConfig: DebugConfig{
		DebugListenAddress: ":8123",
		EnablePprof:        true,
		EnableExpvar:       true,
	},
	RuntimeConfig: RuntimeConfig{
		BallastCapacity:        0.333,
		MemoryLeakCronSchedule: "0 5 * * *",
	},
}

// Keys that can be overridden by an environment variable of the same name in
// upper case.
var envBoundKeys = []string{
	"log_level",
	"app_name",
	"listen_address",
	"tls_certificate",
	"tls_private_key",
	"shutdown_grace_period",
	"debug_listen_address",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	for _, key := range envBoundKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}
