package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avrile/opsroom/internal/adapters/signal"
	"github.com/avrile/opsroom/internal/config"
	"github.com/avrile/opsroom/internal/core"
)

func SetupRouter(ctx context.Context, cfg *config.Config, store *core.Store, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := r.Group("/api")

	// Diagnostic read-only enumeration of live rooms.
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, store.ListRooms())
	})

	api.GET("/stats", func(c *gin.Context) {
		rooms, players := store.Stats()
		c.JSON(http.StatusOK, gin.H{
			"rooms":   rooms,
			"players": players,
		})
	})

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
