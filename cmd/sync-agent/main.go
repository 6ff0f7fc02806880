package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/routesales_device/centralsync"
	"bitbucket.org/mmdatafocus/routesales_device/config"
	"bitbucket.org/mmdatafocus/routesales_device/models"
)

const defaultPort = "8090"

// sync-agent runs the background replication worker on the device: it
// drains the outbox toward the central server and exposes a small health
// endpoint so the app shell can show sync status.
func main() {
	logger := config.GetLogger()

	if err := config.ConnectDatabase(); err != nil {
		log.Fatal(err)
	}
	models.MigrateTable()
	db := config.GetDB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	replicator := centralsync.NewReplicator(
		centralsync.NewGormOutboxStore(db),
		centralsync.NewAPIClient(),
		logger,
	)

	if config.ReplicationEnabled() {
		go replicator.Run(ctx)

		if spec := config.ReplicationCronSpec(); spec != "" {
			scheduler := centralsync.NewScheduler(replicator, logger)
			if err := scheduler.Start(ctx, spec); err != nil {
				log.Printf("invalid REPLICATION_CRON %q: %v", spec, err)
			} else {
				defer scheduler.Stop()
			}
		}
	} else {
		log.Println("replication disabled by REPLICATION_ENABLED=false")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		pending, err := models.CountPendingOutbox(c.Request.Context(), db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"pending_outbox": pending,
		})
	})

	srv := &http.Server{Addr: ":" + port, Handler: router}
	go func() {
		log.Printf("sync-agent listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down sync-agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
