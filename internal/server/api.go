package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lox/cardroom/internal/game"
)

type createGameRequest struct {
	HostName   string `json:"hostName"`
	PointLimit int    `json:"pointLimit"`
}

type joinGameRequest struct {
	RoomCode        string `json:"roomCode"`
	PlayerName      string `json:"playerName"`
	JoinAsSpectator bool   `json:"joinAsSpectator"`
}

type playerRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

type playRequest struct {
	PlayerID string   `json:"playerId" binding:"required"`
	Cards    []string `json:"cards"`
}

type pickRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	CardID   string `json:"cardId" binding:"required"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(corsConfig(s.cfg.AllowedOrigins)))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/ws", s.handleWebSocket)

	api := r.Group("/api/games")
	api.POST("", s.createGame)
	api.POST("/join", s.joinGame)
	api.GET("/:id", s.getGame)
	api.POST("/:id/start", s.playerIntent(s.rooms.Start))
	api.POST("/:id/pass", s.playerIntent(s.rooms.Pass))
	api.POST("/:id/round", s.playerIntent(s.rooms.NewRound))
	api.POST("/:id/play", s.playCards)
	api.POST("/:id/pick", s.pickCard)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) createGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.rooms.Create(req.HostName, req.PointLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) joinGame(c *gin.Context) {
	var req joinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.rooms.Join(req.RoomCode, req.PlayerName, req.JoinAsSpectator)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getGame(c *gin.Context) {
	s.respondWithView(c, c.Param("id"), c.Query("playerId"))
}

// playerIntent adapts a manager operation that needs only the caller's id.
func (s *Server) playerIntent(op func(gameID, playerID string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req playerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := op(c.Param("id"), req.PlayerID); err != nil {
			s.writeError(c, err)
			return
		}
		s.respondWithView(c, c.Param("id"), req.PlayerID)
	}
}

func (s *Server) playCards(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.rooms.Play(c.Param("id"), req.PlayerID, req.Cards); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithView(c, c.Param("id"), req.PlayerID)
}

func (s *Server) pickCard(c *gin.Context) {
	var req pickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.rooms.Pick(c.Param("id"), req.PlayerID, req.CardID); err != nil {
		s.writeError(c, err)
		return
	}
	s.respondWithView(c, c.Param("id"), req.PlayerID)
}

func (s *Server) respondWithView(c *gin.Context, gameID, playerID string) {
	view, err := s.rooms.View(gameID, playerID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameState": view})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind game.Kind) int {
	switch kind {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindForbidden:
		return http.StatusForbidden
	case game.KindInvalidArgument:
		return http.StatusBadRequest
	case game.KindRuleViolation:
		return http.StatusUnprocessableEntity
	case game.KindStateConflict, game.KindTurnViolation, game.KindCapacityViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	var gameErr *game.Error
	if !errors.As(err, &gameErr) {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Unexpected error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errorBody{Code: "Internal", Message: "internal error"}})
		return
	}
	c.AbortWithStatusJSON(statusFor(gameErr.Kind), gin.H{"error": errorBody{Code: string(gameErr.Code), Message: gameErr.Message}})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "BadRequest", Message: err.Error()}})
}
