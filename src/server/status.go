package server

import (
	"fmt"
	"strconv"
	"time"

	"vessel-tracker/src/interfaces"
	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"
	"vessel-tracker/src/stream"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// StatusServer
// -----------------------------------------------------------------------------

type StatusServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	engine  *gin.Engine
	conn    *stream.Connection
	archive interfaces.IDatabase
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewStatusServer(cfg *models.MConfig, conn *stream.Connection, archive interfaces.IDatabase, log *logger.Logger) *StatusServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StatusServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.Default(),
		conn:    conn,
		archive: archive,
	}

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *StatusServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/positions", s.getPositions)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *StatusServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting status server on %s", addr)
	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

// Engine exposes the router for tests.
func (s *StatusServer) Engine() *gin.Engine {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *StatusServer) getHealth(c *gin.Context) {
	state := s.conn.State()

	var lastMessage interface{}
	if t := s.conn.LastMessageAt(); !t.IsZero() {
		lastMessage = t.UTC().Format(time.RFC3339)
	}

	c.JSON(200, gin.H{
		"status":             state.String(),
		"connected":          state == models.StateOpen,
		"reconnect_attempts": s.conn.ReconnectAttempts(),
		"last_message":       lastMessage,
	})
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getConfig(c *gin.Context) {
	// Non-secret fields only
	c.JSON(200, gin.H{
		"mmsi":             s.Config.Stream.MMSI,
		"collection":       s.Config.Store.Collection,
		"coordinate_order": s.Config.Store.CoordinateOrder,
	})
}

// -----------------------------------------------------------------------------

func (s *StatusServer) getPositions(c *gin.Context) {
	if s.archive == nil {
		c.JSON(404, gin.H{"error": "local archive not configured"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	reports, err := s.archive.RecentPositions(limit)
	if err != nil {
		s.Logger.Error("Failed to read archived positions: %v", err)
		c.JSON(500, gin.H{"error": "failed to read archive"})
		return
	}

	type positionView struct {
		MMSI        string    `json:"mmsi"`
		Latitude    float64   `json:"latitude"`
		Longitude   float64   `json:"longitude"`
		Sog         float64   `json:"sog"`
		NavStatus   int       `json:"navigationalStatus"`
		RateOfTurn  float64   `json:"rateOfTurn"`
		TrueHeading float64   `json:"trueHeading"`
		ObservedAt  time.Time `json:"observedAt"`
	}

	out := make([]positionView, 0, len(reports))
	for _, r := range reports {
		out = append(out, positionView{
			MMSI:        r.MMSI,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
			Sog:         r.SpeedOverGround,
			NavStatus:   r.NavigationalStatus,
			RateOfTurn:  r.RateOfTurn,
			TrueHeading: r.TrueHeading,
			ObservedAt:  r.ObservedAt,
		})
	}

	c.JSON(200, gin.H{"positions": out})
}
