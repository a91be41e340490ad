package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port      string
		LogLevel  string
		Env       string
		CORSAllow []string
	}
	Codes struct {
		MaxAttempts int
	}
	WS struct {
		SendBuffer      int
		WriteTimeout    time.Duration
		PingInterval    time.Duration
		MaxMessageBytes int64
	}
	Admin struct {
		GRPCAddr string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.env", "dev")
	v.SetDefault("server.cors_allow", "*")

	v.SetDefault("codes.max_attempts", 64)

	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.write_timeout_s", 10)
	v.SetDefault("ws.ping_interval_s", 20)
	v.SetDefault("ws.max_message_bytes", 1<<20)

	v.SetDefault("admin.grpc_addr", ":9090")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.env", "APP_ENV")
	v.BindEnv("server.cors_allow", "CORS_ALLOW")

	v.BindEnv("codes.max_attempts", "CODE_MAX_ATTEMPTS")

	v.BindEnv("ws.send_buffer", "WS_SEND_BUFFER")
	v.BindEnv("ws.write_timeout_s", "WS_WRITE_TIMEOUT_S")
	v.BindEnv("ws.ping_interval_s", "WS_PING_INTERVAL_S")
	v.BindEnv("ws.max_message_bytes", "WS_MAX_MESSAGE_BYTES")

	v.BindEnv("admin.grpc_addr", "ADMIN_GRPC_ADDR")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.Env = v.GetString("server.env")
	c.Server.CORSAllow = splitCSV(v.GetString("server.cors_allow"))

	c.Codes.MaxAttempts = positive(v.GetInt("codes.max_attempts"), 64)

	c.WS.SendBuffer = positive(v.GetInt("ws.send_buffer"), 256)
	c.WS.WriteTimeout = time.Duration(positive(v.GetInt("ws.write_timeout_s"), 10)) * time.Second
	c.WS.PingInterval = time.Duration(positive(v.GetInt("ws.ping_interval_s"), 20)) * time.Second
	c.WS.MaxMessageBytes = v.GetInt64("ws.max_message_bytes")
	if c.WS.MaxMessageBytes <= 0 {
		c.WS.MaxMessageBytes = 1 << 20
	}

	c.Admin.GRPCAddr = v.GetString("admin.grpc_addr")

	log.Printf("config loaded: port=%s env=%s admin_grpc=%q", c.Server.Port, c.Server.Env, c.Admin.GRPCAddr)
	return c
}

// Addr is the HTTP listen address.
func (c Config) Addr() string { return ":" + c.Server.Port }

func toString(v any) string { return fmt.Sprint(v) }

func positive(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
