// Package httpserver provides a configurable HTTP server implementation based on the Fiber framework.
package httpserver

import (
	"sort"

	"github.com/gofiber/fiber/v2"
)

// Server provides an HTTP server with configurable middleware.
//
// The server is built on top of the Fiber framework and supports prioritized
// middleware registration. Use New to create a new instance.
type Server struct {
	cfg        Config
	router     *fiber.App
	listenAddr string
}

// Middleware represents an HTTP middleware with a priority for ordering.
//
// Priority determines the order in which middlewares are applied: higher values
// are applied first. Handler is the Fiber-compatible middleware function.
type Middleware struct {
	Priority int
	Handler  fiber.Handler
}

// byOrder implements sort.Interface for []Middleware based on the Priority field.
type byOrder []Middleware

func (b byOrder) Len() int { return len(b) }

func (b byOrder) Swap(i, j int) { b[i], b[j] = b[j], b[i] }

func (b byOrder) Less(i, j int) bool { return b[i].Priority > b[j].Priority }

// New creates a new Server with the provided configuration and middleware.
//
// The middlewares slice is applied in order of descending priority. The server
// uses a custom error handler for consistent error responses.
func New(cfg Config, middlewares []Middleware) *Server {
	router := fiber.New(fiber.Config{
		ReadTimeout:              cfg.ReadTimeout,
		WriteTimeout:             cfg.WriteTimeout,
		IdleTimeout:              cfg.IdleTimeout,
		ErrorHandler:             customErrorHandler(cfg.HideErrorDetails),
		DisableStartupMessage:    true,
		Immutable:                true,
		BodyLimit:                cfg.BodyLimit,
		EnableSplittingOnParsers: true,
	})

	applyMiddlewares(router, middlewares)

	srv := &Server{
		cfg:        cfg,
		router:     router,
		listenAddr: cfg.Address(),
	}

	return srv
}

// RegisterRouter registers a router with the server using the provided register function.
func (s *Server) RegisterRouter(registerFunc func(r fiber.Router)) {
	registerFunc(s.router)
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.router
}

// Start begins listening for incoming HTTP requests on the configured address.
func (s *Server) Start() error {
	return s.router.Listen(s.listenAddr)
}

// Stop gracefully stops the server, allowing ongoing requests to complete.
func (s *Server) Stop() error {
	return s.router.Shutdown()
}

// applyMiddlewares registers the provided middlewares to the Fiber app in priority order.
//
// Middlewares with higher Priority are applied before those with lower Priority.
// Nil handlers are skipped.
func applyMiddlewares(app *fiber.App, middlewares []Middleware) {
	sort.Sort(byOrder(middlewares))
	for _, mw := range middlewares {
		if mw.Handler == nil {
			continue
		}
		app.Use(mw.Handler)
	}
}
