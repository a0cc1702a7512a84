// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, object storage) and
// wires the admission pipeline, render handlers and background workers.
package main

import (
	"context"
	"time"

	"github.com/screencraft/api/pkg/admission"
	"github.com/screencraft/api/pkg/billing/subscription"
	"github.com/screencraft/api/pkg/billing/subscription/subscriptioninfra"
	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/billing/tenant/tenantinfra"
	"github.com/screencraft/api/pkg/billing/usage"
	"github.com/screencraft/api/pkg/cachex"
	"github.com/screencraft/api/pkg/captureengine"
	"github.com/screencraft/api/pkg/config"
	"github.com/screencraft/api/pkg/fsx/fsxlocal"
	"github.com/screencraft/api/pkg/iam/apikey/apikeyinfra"
	"github.com/screencraft/api/pkg/iam/apikey/apikeysrv"
	"github.com/screencraft/api/pkg/iam/session/sessioninfra"
	"github.com/screencraft/api/pkg/iam/session/sessionsrv"
	"github.com/screencraft/api/pkg/iam/user/userinfra"
	"github.com/screencraft/api/pkg/jobs"
	"github.com/screencraft/api/pkg/jobs/jobsinfra"
	"github.com/screencraft/api/pkg/logx"
	"github.com/screencraft/api/pkg/objectstore"
	"github.com/screencraft/api/pkg/objectstore/objectstorelocal"
	"github.com/screencraft/api/pkg/objectstore/objectstores3"
	"github.com/screencraft/api/pkg/renderapi"
	"github.com/screencraft/api/pkg/renderqueue"
	"github.com/screencraft/api/pkg/renderqueue/renderqueueredis"
	"github.com/screencraft/api/pkg/renderworker"
	"github.com/screencraft/api/pkg/renderx"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the composed render API.
type Container struct {
	Config *config.Config

	DB    *sqlx.DB
	Redis *redis.Client
	Store objectstore.Store

	Pipeline           *admission.Pipeline
	ScreenshotHandlers *renderapi.Handlers
	PDFHandlers        *renderapi.Handlers
	Reconciler         *subscription.Reconciler
	Worker             *renderworker.Client

	jobsRepo    jobs.Repository
	tenantsRepo tenant.Repository
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("initializing application container")

	c := &Container{Config: cfg}
	c.initInfrastructure()
	c.initModules()

	logx.Info("application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis, object storage
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("database connected")

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("failed to connect to redis: %v (redis is required)", err)
	}
	logx.Info("redis connected")

	c.initObjectStore()

	renderx.AddBlockedCIDRs(c.Config.SSRF.ExtraBlockedCIDRs...)
}

func (c *Container) initObjectStore() {
	switch c.Config.S3.StorageMode {
	case "s3":
		awsCfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(c.Config.S3.Region))
		if err != nil {
			logx.Fatalf("unable to load AWS SDK config: %v", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if c.Config.S3.Endpoint != "" {
				o.BaseEndpoint = &c.Config.S3.Endpoint
				o.UsePathStyle = true
			}
		})
		c.Store = objectstores3.New(client, objectstores3.Config{
			Bucket:   c.Config.S3.Bucket,
			Region:   c.Config.S3.Region,
			Endpoint: c.Config.S3.Endpoint,
		})
		logx.Infof("s3 object store configured (bucket: %s, region: %s)", c.Config.S3.Bucket, c.Config.S3.Region)

	default:
		localFS, err := fsxlocal.NewLocalFileSystem(c.Config.S3.LocalUploadDir)
		if err != nil {
			logx.Fatalf("failed to initialize local file system: %v", err)
		}
		c.Store = objectstorelocal.New(localFS, c.Config.S3.LocalPublicURL, []byte(c.Config.S3.LocalSecret))
		logx.Infof("local object store configured (path: %s)", c.Config.S3.LocalUploadDir)
	}

	if err := c.Store.Initialize(context.Background()); err != nil {
		logx.Fatalf("failed to initialize object store: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Module composition
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	c.jobsRepo = jobsinfra.NewPostgresJobRepository(c.DB)
	c.tenantsRepo = tenantinfra.NewPostgresTenantRepository(c.DB)
	usersRepo := userinfra.NewPostgresUserRepository(c.DB)
	keysRepo := apikeyinfra.NewPostgresAPIKeyRepository(c.DB)
	sessionsRepo := sessioninfra.NewPostgresSessionRepository(c.DB)
	subsRepo := subscriptioninfra.NewPostgresSubscriptionRepository(c.DB)

	apiKeySvc := apikeysrv.NewService(keysRepo, c.tenantsRepo)
	sessionSvc := sessionsrv.NewService(sessionsRepo, usersRepo, c.tenantsRepo, c.DB)

	store := cachex.NewStore(c.Redis)
	c.Pipeline = admission.NewPipeline(
		apiKeySvc,
		sessionSvc,
		usersRepo,
		c.tenantsRepo,
		store,
		c.Config.Gateway,
		c.Config.CSRF,
		c.Config.Tier.Windows,
	)

	queue := renderqueueredis.NewBridge(c.Redis)
	accountant := usage.NewAccountant(c.DB)
	engine := captureengine.NewNoop()

	deps := renderapi.Deps{
		Jobs:   c.jobsRepo,
		Queue:  queue,
		Store:  c.Store,
		Engine: engine,
		Usage:  accountant,
	}
	c.ScreenshotHandlers = renderapi.NewHandlers(deps, jobs.KindScreenshot)
	c.PDFHandlers = renderapi.NewHandlers(deps, jobs.KindPDF)

	c.Reconciler = subscription.NewReconciler(subsRepo, c.tenantsRepo, logx.GetDefaultLogger())

	c.Worker = renderworker.NewClient(queue, c.jobsRepo, c.Store, engine,
		renderworker.WithPollInterval(c.Config.RenderQueue.PollInterval),
		renderworker.WithShutdownTimeout(c.Config.RenderQueue.ShutdownTimeout),
		renderworker.WithCleanGrace(c.Config.RenderQueue.CleanGrace),
		renderworker.WithCleanLimit(c.Config.RenderQueue.CleanLimit),
		renderworker.WithBaseURL(getEnv("PUBLIC_BASE_URL", "http://localhost:8080")),
	)
}

// queueSatisfiesBridge is a compile-time check that renderqueueredis.Bridge
// implements renderqueue.Bridge, the interface renderapi.Deps and
// renderworker.Client both depend on.
var _ renderqueue.Bridge = (*renderqueueredis.Bridge)(nil)

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices runs the render worker pool and the retention/
// billing sweeps (§4.6 cleanup_expired, §4.9 monthly rollover) until ctx is
// cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	logx.Info("starting background services")
	go c.Worker.Start(ctx)
	go c.retentionSweepLoop(ctx)
}

func (c *Container) retentionSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := c.jobsRepo.CleanupExpired(ctx); err != nil {
				logx.WithError(err).Warn("retention sweep: failed to clean up expired jobs")
			} else if n > 0 {
				logx.Infof("retention sweep: removed %d expired jobs", n)
			}

			stale, err := c.tenantsRepo.FindStaleForReset(ctx, 100)
			if err != nil {
				logx.WithError(err).Warn("retention sweep: failed to list tenants due for monthly reset")
				continue
			}
			now := time.Now().UTC()
			for _, t := range stale {
				t.ResetMonthly(now)
				if err := c.tenantsRepo.Save(ctx, *t); err != nil {
					logx.WithError(err).Warnf("retention sweep: failed to reset tenant %s", t.ID.String())
				}
			}
		}
	}
}

func (c *Container) Cleanup() {
	logx.Info("cleaning up resources")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("error closing database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing redis: %v", err)
		}
	}

	logx.Info("cleanup complete")
}
