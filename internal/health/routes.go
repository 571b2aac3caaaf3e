package health

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
)

type Database interface {
	Ping(ctx context.Context) error
}

type Gateway interface {
	Latency() time.Duration
	Guilds() []*discordgo.Guild
}

type Status struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	LatencyMS int64  `json:"gateway_latency_ms"`
	Guilds    int    `json:"guilds"`
	Uptime    string `json:"uptime"`
}

type controller struct {
	db      Database
	gateway Gateway
	started time.Time
}

// RegisterRoutes registers the routes for the health module
func RegisterRoutes(g *gin.RouterGroup, db Database, gateway Gateway) {
	c := &controller{db: db, gateway: gateway, started: time.Now()}
	g.GET("/health", c.getStatus)
}

// Return status of the bot; 503 when the database is unreachable
func (c *controller) getStatus(ctx *gin.Context) {
	status := Status{
		Status:    "ok",
		Database:  "ok",
		LatencyMS: c.gateway.Latency().Milliseconds(),
		Guilds:    len(c.gateway.Guilds()),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
	}

	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()
	if err := c.db.Ping(pingCtx); err != nil {
		status.Status = "degraded"
		status.Database = err.Error()
		ctx.JSON(http.StatusServiceUnavailable, status)
		return
	}
	ctx.JSON(http.StatusOK, status)
}
