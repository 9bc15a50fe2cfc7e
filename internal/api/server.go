package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"smartclass/internal/logging"
	"smartclass/internal/service"
)

type Options struct {
	Address        string
	Debug          bool
	DisableReqLogs bool
	// Token enables bearer authentication when set.
	Token string

	Builder *service.BuilderService
	Assets  *service.AssetService
	Editor  *service.EditorService
	Hub     *Hub
	// MCP, when set, is served at /mcp behind the same token.
	MCP       http.Handler
	Approvals Approver

	CanvasWidth  float64
	CanvasHeight float64
}

// Server is the HTTP transport of the builder.
type Server struct {
	opts *Options
	app  *echo.Echo
}

func NewServer(opts *Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	s := &Server{opts: opts, app: echo.New()}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Logger = logging.New("api")
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if !s.opts.Debug {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit("32M"))

	s.app.HTTPErrorHandler = appHTTPErrorHandler
	s.app.Validator = requestValidator{}
	s.app.Debug = s.opts.Debug

	s.app.GET("/healthz", health)

	v1 := s.app.Group("/v1", bearerAuth(s.opts.Token))
	v1.GET("/events", s.opts.Hub.handleEvents)
	registerProjectAPI(v1, s.opts)
	registerAssetAPI(v1, s.opts.Assets)
	registerApprovalAPI(v1, s.opts.Approvals)

	if s.opts.MCP != nil {
		s.app.Any("/mcp", echo.WrapHandler(s.opts.MCP), bearerAuth(s.opts.Token))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.app }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	err := s.app.Start(s.opts.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.opts.Hub.Close()
	return s.app.Shutdown(ctx)
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// bearerAuth checks "Authorization: Bearer <token>". WebSocket clients that
// cannot set headers may pass ?token= instead. An empty token disables it.
func bearerAuth(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if token == "" {
			return next
		}
		return func(c echo.Context) error {
			got, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok {
				got = c.QueryParam("token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return errUnauthorized
			}
			return next(c)
		}
	}
}

// bind decodes and validates a request body.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	return c.Validate(v)
}
