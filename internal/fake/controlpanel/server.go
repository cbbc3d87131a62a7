package controlpanel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kofuk/premises-sub000/internal/api/middleware"
	"github.com/kofuk/premises-sub000/internal/infrastructure/logging"
	"github.com/kofuk/premises-sub000/internal/infrastructure/monitoring"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

// Options configures a fake control panel.
type Options struct {
	Logger  *logging.Logger
	Metrics *monitoring.Metrics

	// StreamRetry is advertised to stream clients as their reconnect delay.
	StreamRetry time.Duration
	// KeepAlive is the interval between comment frames on idle streams.
	KeepAlive time.Duration
	// StepDelay spaces out simulated status transitions. Zero publishes
	// them before the command returns.
	StepDelay time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int

	RateLimit   *middleware.RateLimitConfig
	CORSOrigins []string
	Development bool
}

func (o *Options) setDefaults() {
	if o.StreamRetry <= 0 {
		o.StreamRetry = 3 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 5 * time.Second
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
}

// Server is an in-memory control panel speaking the same HTTP contract as
// the real one. It is safe for concurrent use.
type Server struct {
	opts   Options
	log    *logging.Logger
	router *gin.Engine
	hub    *hub

	mu        sync.Mutex
	users     map[string]*user
	sessions  map[string]*sessionState
	tokens    map[string]string
	config    *types.PendingConfig
	running   bool
	commands  []string
	worlds    []types.World
	versions  []types.MCVersion
	sysInfo   types.SystemInfo
	worldInfo types.WorldInfo
	snapshots map[int]bool
	storage   *objectStore

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a fake control panel with no users. Use AddUser to seed
// accounts.
func New(opts Options) *Server {
	opts.setDefaults()

	s := &Server{
		opts:      opts,
		log:       logging.OrNop(opts.Logger).Named("fake-panel"),
		hub:       newHub(),
		users:     make(map[string]*user),
		sessions:  make(map[string]*sessionState),
		tokens:    make(map[string]string),
		snapshots: make(map[int]bool),
		storage:   newObjectStore(),
		versions:  defaultVersions(),
		sysInfo: types.SystemInfo{
			PremisesVersion: "fake",
			HostOS:          "linux",
		},
		stop: make(chan struct{}),
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(s.log))
	router.Use(monitoring.Middleware(opts.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.CORSOrigins...)))
	if opts.RateLimit != nil {
		router.Use(middleware.RateLimit(*opts.RateLimit))
	}
	s.router = router
	s.routes()

	return s
}

func (s *Server) routes() {
	internal := s.router.Group("/api/internal")
	internal.POST("/login", s.handleLogin)
	internal.POST("/logout", s.handleLogout)
	internal.POST("/login/reset-password", s.handleResetPassword)
	internal.GET("/session-data", s.handleSessionData)

	s.router.GET("/api/streaming", s.requireToken, s.handleStream)

	v1 := s.router.Group("/api/v1", s.requireToken)
	v1.GET("/config", s.handleGetConfig)
	v1.PUT("/config", s.handleUpdateConfig)
	v1.POST("/launch", s.handleLaunch)
	v1.POST("/reconfigure", s.handleReconfigure)
	v1.POST("/stop", s.handleStop)
	v1.GET("/worlds", s.handleListWorlds)
	v1.DELETE("/worlds", s.handleDeleteWorld)
	v1.GET("/mcversions", s.handleMCVersions)
	v1.GET("/systeminfo", s.handleSystemInfo)
	v1.GET("/worldinfo", s.handleWorldInfo)
	v1.POST("/world-link/download", s.handleDownloadLink)
	v1.POST("/world-link/upload", s.handleUploadLink)
	v1.POST("/quickundo/snapshot", s.handleSnapshot)
	v1.POST("/quickundo/undo", s.handleUndo)
	v1.POST("/users/change-password", s.handleChangePassword)
	v1.POST("/users/add", s.handleAddUser)

	s.router.GET(storagePrefix+"*key", s.handleStorageGet)
	s.router.PUT(storagePrefix+"*key", s.handleStoragePut)

	s.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}

// Handler returns the HTTP handler serving the control panel API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close ends every open stream and waits for simulated transitions to
// finish.
func (s *Server) Close() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	s.hub.closeAll()
	s.wg.Wait()
}

// Commands returns the names of accepted commands in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Running reports whether a game server is considered launched.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PendingConfig returns a copy of the stored configuration, or the zero
// value before the first read.
func (s *Server) PendingConfig() types.PendingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return types.PendingConfig{}
	}
	return s.config.Clone()
}

// SetPendingConfig replaces the stored configuration, as another operator
// would.
func (s *Server) SetPendingConfig(cfg types.PendingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg = cfg.Clone()
	s.config = &cfg
}

// SetWorlds replaces the saved world list.
func (s *Server) SetWorlds(worlds []types.World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds = append([]types.World(nil), worlds...)
}

// SetVersions replaces the offered server versions.
func (s *Server) SetVersions(versions []types.MCVersion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append([]types.MCVersion(nil), versions...)
}

// SetWorldInfo sets what worldinfo reports while running.
func (s *Server) SetWorldInfo(info types.WorldInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worldInfo = info
}

// Object returns a world archive uploaded through a delegated URL.
func (s *Server) Object(key string) ([]byte, bool) {
	return s.storage.get(key)
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, types.Response[any]{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code types.ErrorCode) {
	c.AbortWithStatusJSON(status, types.ErrorResponse{ErrorCode: code})
}

// simulate publishes a sequence of status transitions, spaced by
// StepDelay. It runs inline when StepDelay is zero.
func (s *Server) simulate(steps []types.StatusEvent, then func()) {
	play := func(ctx context.Context) {
		for i, st := range steps {
			if i > 0 && s.opts.StepDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.opts.StepDelay):
				}
			}
			s.PublishStatus(st)
		}
		if then != nil {
			then()
		}
	}

	if s.opts.StepDelay <= 0 {
		play(context.Background())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		go func() {
			select {
			case <-s.stop:
				cancel()
			case <-ctx.Done():
			}
		}()
		play(ctx)
	}()
	s.log.Debug("simulating status transitions", zap.Int("steps", len(steps)))
}
