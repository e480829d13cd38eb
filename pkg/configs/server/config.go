package server

import (
	"time"

	kdb "github.com/opst/knitmeta/pkg/db"
)

// Configuration of the metadata server.
//
// to get `ServerConfig` instance, use `Unmarshal` or `LoadServerConfig`.
type ServerConfig struct {
	dburi       string
	port        int32
	pool        *PoolConfig
	heartbeat   *HeartbeatConfig
	schema      *SchemaConfig
	artifacts   *ArtifactsConfig
	exposeTrace bool
}

// Connection string for database.
func (c *ServerConfig) DBURI() string {
	return c.dburi
}

func (c *ServerConfig) Port() int32 {
	return c.port
}

func (c *ServerConfig) Pool() *PoolConfig {
	return c.pool
}

func (c *ServerConfig) Heartbeat() *HeartbeatConfig {
	return c.heartbeat
}

func (c *ServerConfig) Schema() *SchemaConfig {
	return c.schema
}

// Artifact content cache. nil when it is not configured.
func (c *ServerConfig) Artifacts() *ArtifactsConfig {
	return c.artifacts
}

// whether error traces are written in logs of 500 responses.
func (c *ServerConfig) ExposeTrace() bool {
	return c.exposeTrace
}

type PoolConfig struct {
	maxConns       int32
	acquireTimeout time.Duration
	connectRetry   *RetryConfig
}

// upper limit of connections. 0 means the default of the driver.
func (c *PoolConfig) MaxConns() int32 {
	return c.maxConns
}

func (c *PoolConfig) AcquireTimeout() time.Duration {
	return c.acquireTimeout
}

func (c *PoolConfig) ConnectRetry() *RetryConfig {
	return c.connectRetry
}

type RetryConfig struct {
	attempts   int
	interval   time.Duration
	multiplier float64
}

func (c *RetryConfig) Attempts() int {
	return c.attempts
}

func (c *RetryConfig) Interval() time.Duration {
	return c.interval
}

func (c *RetryConfig) Multiplier() float64 {
	return c.multiplier
}

type HeartbeatConfig struct {
	gate kdb.VersionGate
}

// VersionGate for the initial heartbeat of runs and tasks.
func (c *HeartbeatConfig) VersionGate() kdb.VersionGate {
	return c.gate
}

type SchemaConfig struct {
	upgrader       []string
	repository     string
	upgradeOnStart bool
}

// command line of the schema upgrader. Empty when it is not configured.
func (c *SchemaConfig) Upgrader() []string {
	return c.upgrader
}

// directory containing schema versions.
func (c *SchemaConfig) Repository() string {
	return c.repository
}

func (c *SchemaConfig) UpgradeOnStart() bool {
	return c.upgradeOnStart
}

type ArtifactsConfig struct {
	s3    *S3Config
	redis *RedisConfig
	ttl   time.Duration
}

func (c *ArtifactsConfig) S3() *S3Config {
	return c.s3
}

func (c *ArtifactsConfig) Redis() *RedisConfig {
	return c.redis
}

// how long fetched contents are cached.
func (c *ArtifactsConfig) TTL() time.Duration {
	return c.ttl
}

type S3Config struct {
	region   string
	endpoint string
}

func (c *S3Config) Region() string {
	return c.region
}

// custom endpoint, like MinIO. Empty for AWS.
func (c *S3Config) Endpoint() string {
	return c.endpoint
}

type RedisConfig struct {
	addr     string
	password string
	db       int
}

func (c *RedisConfig) Addr() string {
	return c.addr
}

func (c *RedisConfig) Password() string {
	return c.password
}

func (c *RedisConfig) DB() int {
	return c.db
}
