package agent

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/mohitkumar/intake/analytics"
	"github.com/mohitkumar/intake/cache"
	"github.com/mohitkumar/intake/config"
	"github.com/mohitkumar/intake/detector"
	"github.com/mohitkumar/intake/dispatch"
	"github.com/mohitkumar/intake/engine"
	"github.com/mohitkumar/intake/flow"
	"github.com/mohitkumar/intake/gallery"
	"github.com/mohitkumar/intake/gate"
	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/persistence"
	"github.com/mohitkumar/intake/persistence/memory"
	"github.com/mohitkumar/intake/persistence/redis"
	"github.com/mohitkumar/intake/persistence/sqlite"
	"github.com/mohitkumar/intake/recorder"
	"github.com/mohitkumar/intake/reminder"
	"github.com/mohitkumar/intake/rest"
	"github.com/mohitkumar/intake/util"
	"go.uber.org/zap"
)

type Option func(*Agent)

// WithFaceLocator enables in-process face detection.
func WithFaceLocator(locator detector.Locator) Option {
	return func(a *Agent) {
		a.locator = locator
	}
}

// WithNotifier replaces the default log notifier used for reminders.
func WithNotifier(notifier engine.Notifier) Option {
	return func(a *Agent) {
		a.notifier = notifier
	}
}

type Agent struct {
	Config       config.Config
	store        persistence.Store
	flows        *flow.Registry
	sessions     *persistence.SessionRepository
	recorder     *recorder.Recorder
	dispatcher   *dispatch.Dispatcher
	service      *engine.Service
	handles      *cache.HandleCache
	gallery      *gallery.Gallery
	reminder     *reminder.Reminder
	httpServer   *rest.Server
	locator      detector.Locator
	notifier     engine.Notifier
	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(config config.Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
		notifier:  reminder.LogNotifier{},
	}
	for _, opt := range opts {
		opt(a)
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupStorage,
		a.setupFlows,
		a.setupEngine,
		a.setupReminder,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.store = redis.NewRedisStore(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			Password:  a.Config.RedisConfig.Password,
			PoolSize:  a.Config.RedisConfig.PoolSize,
		})
	case config.STORAGE_TYPE_SQLITE:
		store, err := sqlite.Open(a.Config.SqliteConfig.Path)
		if err != nil {
			return err
		}
		a.store = store
	case config.STORAGE_TYPE_INMEM, "":
		a.store = memory.NewStore()
	default:
		return fmt.Errorf("unknown storage type %s", a.Config.StorageType)
	}
	codecName := string(a.Config.EncoderDecoderType)
	sessionCodec, err := util.NewEncoderDecoder[model.SessionState](codecName)
	if err != nil {
		return err
	}
	auditCodec, err := util.NewEncoderDecoder[model.AuditEvent](codecName)
	if err != nil {
		return err
	}
	profileCodec, err := util.NewEncoderDecoder[model.ProfileSnapshot](codecName)
	if err != nil {
		return err
	}
	a.sessions = persistence.NewSessionRepository(a.store, sessionCodec, a.Config.SessionHistoryLimit)
	a.recorder = recorder.NewRecorder(
		persistence.NewAuditRepository(a.store, auditCodec),
		persistence.NewProfileRepository(a.store, profileCodec),
	)
	logger.Info("storage ready", zap.String("type", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) setupFlows() error {
	flows, err := flow.LoadBuiltin()
	if err != nil {
		return err
	}
	a.flows = flow.NewRegistry(flows...)
	if a.Config.DefinitionsDir != "" {
		extra, err := flow.LoadDir(a.Config.DefinitionsDir)
		if err != nil {
			return err
		}
		for _, f := range extra {
			a.flows.Register(f)
		}
	}
	logger.Info("workflows loaded", zap.Strings("workflows", a.flows.Names()))
	return nil
}

func (a *Agent) setupEngine() error {
	alphabet, err := gate.Alphabet(a.Config.GateConfig.NameAlphabet)
	if err != nil {
		return err
	}
	det := detector.NewClient(detector.Config{
		Url:       a.Config.DetectorConfig.Url,
		Timeout:   a.Config.DetectorConfig.Timeout,
		Threshold: a.Config.DetectorConfig.FaceRatioThreshold,
	}, a.locator, http.DefaultClient)

	controller := engine.NewController(a.flows, a.sessions, a.recorder, det,
		engine.NewSessionMediaSource(a.flows, a.sessions),
		engine.Config{MaxMediaBytes: a.Config.GateConfig.MaxMediaBytes, Alphabet: alphabet})

	a.dispatcher = dispatch.NewDispatcher(dispatch.Config{
		Workers:        a.Config.DispatchConfig.Workers,
		PartitionCount: a.Config.DispatchConfig.PartitionCount,
		Capacity:       a.Config.DispatchConfig.Capacity,
	})
	a.dispatcher.Start()
	a.service = engine.NewService(controller, a.dispatcher)
	a.handles = cache.NewHandleCache(a.Config.HandleTTL)
	a.gallery = gallery.NewGallery(a.flows, a.sessions)
	return nil
}

func (a *Agent) setupReminder() error {
	if !a.Config.ReminderConfig.Enabled {
		return nil
	}
	a.reminder = reminder.NewReminder(a.service, a.notifier, reminder.Config{
		Interval: a.Config.ReminderConfig.Interval,
		Idle:     a.Config.ReminderConfig.Idle,
	}, &a.wg)
	a.reminder.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.service, a.flows, a.recorder, a.handles, a.gallery)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Service() *engine.Service {
	return a.service
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			if a.reminder == nil {
				return nil
			}
			return a.reminder.Stop()
		},
		a.dispatcher.Stop,
		a.store.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	_ = logger.Sync()
	return nil
}
