// Command wheelerd serves the associative memory engine as a JSON HTTP API,
// one engine.Engine shared across requests.
//
// Grounded on cmd/driver/hasher-host's Orchestrator.runAPIServer:
// gin.ReleaseMode + gin.Recovery(), a versioned route group, graceful
// shutdown on SIGINT/SIGTERM with a bounded context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"wheelermem/internal/config"
	"wheelermem/pkg/memory/engine"
)

var port = flag.Int("port", 7777, "HTTP API port")

type storeRequest struct {
	Text  string `json:"text" binding:"required"`
	Chunk string `json:"chunk"`
}

type recallRequest struct {
	Text             string  `json:"text" binding:"required"`
	TopK             int     `json:"top_k"`
	Chunk            string  `json:"chunk"`
	TemperatureBoost float64 `json:"temperature_boost"`
	UseEmbedding     bool    `json:"use_embedding"`
	Reconstruct      bool    `json:"reconstruct"`
	Alpha            float64 `json:"alpha"`
}

type api struct {
	eng *engine.Engine
}

func (a *api) handleStore(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := a.eng.Store(c.Request.Context(), req.Text, req.Chunk)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "state": res.State})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (a *api) handleRecall(c *gin.Context) {
	var req recallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	results, err := a.eng.Recall(c.Request.Context(), req.Text, engine.RecallOptions{
		TopK:             req.TopK,
		Chunk:            req.Chunk,
		TemperatureBoost: req.TemperatureBoost,
		UseEmbedding:     req.UseEmbedding,
		Reconstruct:      req.Reconstruct,
		Alpha:            req.Alpha,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (a *api) handleListMemories(c *gin.Context) {
	entries, err := a.eng.ListMemories(c.Request.Context(), c.Query("chunk"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": entries})
}

func (a *api) handleInspectBrick(c *gin.Context) {
	b, err := a.eng.InspectBrick(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a *api) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("wheelerd: load config: %v", err)
	}
	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("wheelerd: construct engine: %v", err)
	}
	a := &api{eng: eng}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/store", a.handleStore)
		v1.POST("/recall", a.handleRecall)
		v1.GET("/memories", a.handleListMemories)
		v1.GET("/bricks/:id", a.handleInspectBrick)
		v1.GET("/health", a.handleHealth)
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", *port), Handler: router}

	go func() {
		log.Printf("wheelerd listening on :%d (root=%s)", *port, cfg.Root)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("wheelerd: serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("wheelerd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("wheelerd: shutdown error: %v", err)
	}
	if err := eng.Close(); err != nil {
		log.Printf("wheelerd: engine close: %v", err)
	}
}
