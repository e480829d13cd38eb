package server

import (
	"fmt"
	"time"

	kdb "github.com/opst/knitmeta/pkg/db"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type ServerConfigMarshall struct {
	DBURI       string                   `yaml:"dburi"`
	Port        int32                    `yaml:"port"`
	Pool        *PoolConfigMarshall      `yaml:"pool,omitempty"`
	Heartbeat   *HeartbeatConfigMarshall `yaml:"heartbeat,omitempty"`
	Schema      *SchemaConfigMarshall    `yaml:"schema,omitempty"`
	Artifacts   *ArtifactsConfigMarshall `yaml:"artifacts,omitempty"`
	ExposeTrace bool                     `yaml:"exposeTrace,omitempty"`
}

var _ Marshalled[*ServerConfig] = &ServerConfigMarshall{}

func (s *ServerConfigMarshall) trySeal(path string) *ServerConfig {
	var artifacts *ArtifactsConfig
	if s.Artifacts != nil {
		artifacts = s.Artifacts.trySeal(path + ".artifacts")
	}
	return &ServerConfig{
		dburi:       required(s.DBURI, path+".dburi"),
		port:        required(s.Port, path+".port"),
		pool:        orZero(s.Pool).trySeal(path + ".pool"),
		heartbeat:   orZero(s.Heartbeat).trySeal(path + ".heartbeat"),
		schema:      orZero(s.Schema).trySeal(path + ".schema"),
		artifacts:   artifacts,
		exposeTrace: s.ExposeTrace,
	}
}

type PoolConfigMarshall struct {
	MaxConns       int32                `yaml:"maxConns,omitempty"`
	AcquireTimeout string               `yaml:"acquireTimeout,omitempty"`
	ConnectRetry   *RetryConfigMarshall `yaml:"connectRetry,omitempty"`
}

func (p *PoolConfigMarshall) trySeal(path string) *PoolConfig {
	if p.MaxConns < 0 {
		panic(path + ".maxConns should not be negative")
	}
	return &PoolConfig{
		maxConns:       p.MaxConns,
		acquireTimeout: duration(p.AcquireTimeout, 5*time.Second, path+".acquireTimeout"),
		connectRetry:   orZero(p.ConnectRetry).trySeal(path + ".connectRetry"),
	}
}

type RetryConfigMarshall struct {
	Attempts   int     `yaml:"attempts,omitempty"`
	Interval   string  `yaml:"interval,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
}

func (r *RetryConfigMarshall) trySeal(path string) *RetryConfig {
	attempts := r.Attempts
	if attempts == 0 {
		attempts = 5
	}
	if attempts < 0 {
		panic(path + ".attempts should not be negative")
	}
	multiplier := r.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	if multiplier < 1 {
		panic(path + ".multiplier should be 1 or more")
	}
	return &RetryConfig{
		attempts:   attempts,
		interval:   duration(r.Interval, 500*time.Millisecond, path+".interval"),
		multiplier: multiplier,
	}
}

type HeartbeatConfigMarshall struct {
	VersionTagPrefix string `yaml:"versionTagPrefix,omitempty"`
	MinimumVersion   string `yaml:"minimumVersion,omitempty"`
}

func (h *HeartbeatConfigMarshall) trySeal(path string) *HeartbeatConfig {
	gate := kdb.DefaultVersionGate()
	if h.VersionTagPrefix != "" {
		gate.Prefix = h.VersionTagPrefix
	}
	if h.MinimumVersion != "" {
		if _, ok := kdb.NormalizeVersion(h.MinimumVersion); !ok {
			panic(fmt.Sprintf("%s.minimumVersion is not a version: %s", path, h.MinimumVersion))
		}
		gate.Minimum = h.MinimumVersion
	}
	return &HeartbeatConfig{gate: gate}
}

type SchemaConfigMarshall struct {
	Upgrader       []string `yaml:"upgrader,omitempty"`
	Repository     string   `yaml:"repository,omitempty"`
	UpgradeOnStart bool     `yaml:"upgradeOnStart,omitempty"`
}

func (s *SchemaConfigMarshall) trySeal(path string) *SchemaConfig {
	if s.UpgradeOnStart && len(s.Upgrader) == 0 {
		panic(path + ".upgrader is required to upgrade on start")
	}
	return &SchemaConfig{
		upgrader:       s.Upgrader,
		repository:     s.Repository,
		upgradeOnStart: s.UpgradeOnStart,
	}
}

type ArtifactsConfigMarshall struct {
	S3    *S3ConfigMarshall    `yaml:"s3"`
	Redis *RedisConfigMarshall `yaml:"redis"`
	TTL   string               `yaml:"ttl,omitempty"`
}

func (a *ArtifactsConfigMarshall) trySeal(path string) *ArtifactsConfig {
	return &ArtifactsConfig{
		s3:    orZero(a.S3).trySeal(path + ".s3"),
		redis: nonnil(a.Redis, path+".redis").trySeal(path + ".redis"),
		ttl:   duration(a.TTL, time.Hour, path+".ttl"),
	}
}

type S3ConfigMarshall struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

func (s *S3ConfigMarshall) trySeal(string) *S3Config {
	return &S3Config{region: s.Region, endpoint: s.Endpoint}
}

type RedisConfigMarshall struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

func (r *RedisConfigMarshall) trySeal(path string) *RedisConfig {
	return &RedisConfig{
		addr:     required(r.Addr, path+".addr"),
		password: r.Password,
		db:       r.DB,
	}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func orZero[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func duration(v string, def time.Duration, path string) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if d < 0 {
		panic(path + " should not be negative")
	}
	return d
}
