package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/knitmeta/cmd/knitmeta/handlers"
	"github.com/opst/knitmeta/pkg/artifacts/content"
	"github.com/opst/knitmeta/pkg/buildtime"
	kserver "github.com/opst/knitmeta/pkg/configs/server"
	kpg "github.com/opst/knitmeta/pkg/db/postgres"
	kpgschema "github.com/opst/knitmeta/pkg/db/postgres/schema"
	"github.com/opst/knitmeta/pkg/utils/echoutil"
	"github.com/opst/knitmeta/pkg/utils/filewatch"
	"github.com/opst/knitmeta/pkg/utils/retry"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config-path", os.Getenv("KNITMETA_CONFIG"), "path to config file")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pversion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.VersionString())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	conf, err := kserver.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatalf("can not read configration: %s", err)
	}

	{
		// quit on config updates, to be restarted with new one.
		wctx, wcancel, err := filewatch.UntilModifyContext(ctx, *configPath)
		if err != nil {
			log.Fatalf("can not watch configration: %s", err)
		}
		defer wcancel()
		ctx = wctx
	}

	if conf.Schema().UpgradeOnStart() {
		if err := upgradeSchema(ctx, conf); err != nil {
			log.Fatalf("can not upgrade database schema: %s", err)
		}
	}

	pool := conf.Pool()
	retryConf := pool.ConnectRetry()
	db, err := kpg.New(
		ctx, conf.DBURI(),
		kpg.WithSchemaRepository(conf.Schema().Repository()),
		kpg.WithVersionGate(conf.Heartbeat().VersionGate()),
		kpg.WithMaxConns(pool.MaxConns()),
		kpg.WithAcquireTimeout(pool.AcquireTimeout()),
		kpg.WithConnectBackoff(retry.Limited(
			retry.ExponentialBackoff(retryConf.Interval(), retryConf.Multiplier()),
			retryConf.Attempts(),
		)),
	)
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer db.Close()

	if conf.Schema().Repository() != "" {
		// refuse to serve with an outdated schema.
		sctx, scancel := db.Schema().Context(ctx)
		defer scancel()
		ctx = sctx
	}

	var cache content.Cache
	if a := conf.Artifacts(); a != nil {
		c, closer, err := contentCache(ctx, a)
		if err != nil {
			log.Fatalf("can not set up artifact content cache: %s", err)
		}
		defer closer()
		log.Printf("artifact content: %s", c)
		cache = c
	}

	e := echo.New()
	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = echoutil.ErrorHandler(e, echoutil.ExposeTrace(conf.ExposeTrace()))
	e.Use(echoutil.LogHandlerFunc)

	handlers.Register(e, db, cache, buildtime.VERSION())
	log.Println("registered routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		if err := e.Start(fmt.Sprintf(":%d", conf.Port())); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ch <- err
		}
	}()

	exit := 0
	select {
	case <-ctx.Done():
		if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
			log.Printf("quit: %s", cause)
			exit = 1
		}
	case err := <-ch:
		if err != nil {
			log.Printf("server stops with error: %s", err)
			exit = 1
		}
	}

	log.Println("shutting down...")
	graceful, gcancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer gcancel()
	if err := e.Shutdown(graceful); err != nil {
		log.Printf("error on shutdown: %s", err)
		exit = 1
	}
	if exit != 0 {
		db.Close()
		os.Exit(exit)
	}
}

// upgradeSchema lets the schema upgrader apply pending versions.
func upgradeSchema(ctx context.Context, conf *kserver.ServerConfig) error {
	runner := kpgschema.Runner{
		Command: conf.Schema().Upgrader(),
		Env:     []string{kserver.EnvDBURI + "=" + conf.DBURI()},
	}
	before, err := runner.Version(ctx)
	if err != nil {
		return err
	}
	if err := runner.Upgrade(ctx); err != nil {
		return err
	}
	after, err := runner.Version(ctx)
	if err != nil {
		return err
	}
	log.Printf("database schema: version %d -> %d", before, after)
	return nil
}

func contentCache(ctx context.Context, conf *kserver.ArtifactsConfig) (*content.RedisCache, func(), error) {
	s3client, err := content.NewS3Client(ctx, conf.S3().Region(), conf.S3().Endpoint())
	if err != nil {
		return nil, nil, err
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     conf.Redis().Addr(),
		Password: conf.Redis().Password(),
		DB:       conf.Redis().DB(),
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("redis %s is not available: %w", conf.Redis().Addr(), err)
	}
	return content.NewRedisCache(rc, content.NewS3Fetcher(s3client, 0), conf.TTL()), func() { rc.Close() }, nil
}
