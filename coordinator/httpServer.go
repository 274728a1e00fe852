package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serves the coordinator over HTTP.
//
// Routes:
//
//	GET  /events/:name                         200 if received, 404 otherwise
//	GET  /dependencies/:name?includeEvent=0|1  200 if the dependencies (and optionally the event) are met, 404 otherwise
//	GET  /blockDependencies/:name              200 if the blocking condition is met, 404 otherwise
//	POST /events {"name": "<event>"}           records the event, always 200 for well-formed JSON
//	GET  /status                               received and pending events
//	GET  /metrics                              prometheus metrics
type HTTPServer struct {
	coord  *Coordinator
	engine *gin.Engine
	logger *slog.Logger

	srv *http.Server
}

type receiveRequest struct {
	Name string `json:"name"`
}

type statusResponse struct {
	Received map[string]time.Time `json:"received"`
	Pending  []string             `json:"pending"`
	Complete bool                 `json:"complete"`
}

// Create the HTTP server of coord.
//
// Gin runs in release mode unless GIN_MODE is set.
func NewHTTPServer(coord *Coordinator, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &HTTPServer{
		coord:  coord,
		engine: gin.New(),
		logger: logger,
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *HTTPServer) routes() {
	s.engine.GET("/events/:name", s.handleReceived)
	s.engine.POST("/events", s.handleReceive)
	s.engine.GET("/dependencies/:name", s.handleDependencies)
	s.engine.GET("/blockDependencies/:name", s.handleBlockDependencies)
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Start serving on addr in a separate goroutine.
//
// Returns the address that is listened on, which is useful when addr uses port 0.
func (s *HTTPServer) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("coordinator http server stopped", "error", err)
		}
	}()
	s.logger.Info("coordinator listening", "transport", "http", "addr", lis.Addr().String())
	return lis.Addr(), nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleReceived(c *gin.Context) {
	name := c.Param("name")
	respond(c, name, s.coord.Received(name))
}

func (s *HTTPServer) handleDependencies(c *gin.Context) {
	name := c.Param("name")
	includeSelf := c.DefaultQuery("includeEvent", "0") == "1"
	respond(c, name, s.coord.DependenciesMet(name, includeSelf))
}

func (s *HTTPServer) handleBlockDependencies(c *gin.Context) {
	name := c.Param("name")
	respond(c, name, s.coord.BlockDependenciesMet(name))
}

func (s *HTTPServer) handleReceive(c *gin.Context) {
	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		s.logger.Warn("ignoring receive without event name")
		c.JSON(http.StatusOK, gin.H{"name": req.Name, "new": false})
		return
	}
	isNew := s.coord.Receive(req.Name)
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "new": isNew})
}

func (s *HTTPServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Received: s.coord.Snapshot(),
		Pending:  s.coord.Pending(),
		Complete: s.coord.SequenceComplete(),
	})
}

func respond(c *gin.Context, name string, met bool) {
	status := http.StatusNotFound
	if met {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"name": name, "met": met})
}
