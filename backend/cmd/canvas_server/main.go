package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"canvasServer/backend/config"
	"canvasServer/backend/internal/cache"
	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/httpapi"
	"canvasServer/backend/internal/store"
	"canvasServer/backend/internal/ws"
)

var (
	buildVersion = "dev"
	buildCommit  = "local"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("canvas server %s (%s) config: %s", buildVersion, buildCommit, cfg)

	opt := collab.Options{
		CanvasID:    cfg.Canvas.Name,
		PresenceTTL: cfg.Canvas.PresenceTTL,
	}

	// === Redis：在线状态镜像（可选）===
	var rdb redis.UniversalClient
	if len(cfg.Redis.Addrs) > 0 {
		// 一个地址时是单机客户端，多个地址时是 cluster 客户端
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		opt.Presence = cache.NewRedisPresence(rdb)
	}

	// === MySQL：连接会话日志（可选）===
	if cfg.Mysql.DSN != "" {
		db, err := store.InitMySQL(cfg.Mysql.DSN)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		opt.Sessions = store.NewSessionStore(db)
	}

	// === Kafka：画布事件流（可选）===
	var dispatcher *collab.KafkaDispatcher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaCfg := sarama.NewConfig()
		// SyncProducer 必须开启 Return.Successes
		kafkaCfg.Producer.Return.Successes = true
		kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
		if err != nil {
			log.Fatalf("Failed to connect kafka: %v", err)
		}
		defer producer.Close()

		dispatcher = collab.NewKafkaDispatcher(
			producer,
			cfg.Kafka.Topic,
			collab.NewSemaphoreControl(cfg.Kafka.Workers),
			collab.KafkaDispatcherOptions{
				QueueSize:   cfg.Kafka.QueueSize,
				Workers:     cfg.Kafka.Workers,
				MaxRetry:    3,
				BaseBackoff: 50 * time.Millisecond,
				MaxBackoff:  1 * time.Second,
			},
		)
		opt.Events = dispatcher
	}

	svc := collab.NewInMemoryService(opt)
	hub := ws.NewHub(svc)
	manager := ws.NewManager(hub, svc, ws.ManagerOptions{
		AllowedOrigins: cfg.Cors.AllowOrigins,
		QueueSize:      cfg.Canvas.SendQueue,
		Sem:            collab.NewSemaphoreControl(cfg.Running.MaxConnections),
	})

	gin.SetMode(gin.ReleaseMode)
	r := httpapi.NewRouter(httpapi.Deps{
		Svc:          svc,
		Hub:          hub,
		Manager:      manager,
		AllowOrigins: cfg.Cors.AllowOrigins,
		StaticDir:    cfg.Static.Dir,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Running.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s (canvas=%s)", srv.Addr, cfg.Canvas.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Shutdown 不管已升级的 WebSocket 连接
		hub.CloseAll()
		// 等离开流程写完 Redis/MySQL/Kafka，再让 defer 关闭客户端
		if werr := manager.Wait(shutdownCtx); werr != nil {
			log.Printf("waiting for connections: %v", werr)
		}
		if dispatcher != nil {
			dispatcher.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
