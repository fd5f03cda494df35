// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/opportunityhub/internal/app/features/opportunities"
	opportunitystore "github.com/dalemusser/opportunityhub/internal/app/store/opportunities"
	savedstore "github.com/dalemusser/opportunityhub/internal/app/store/savedopportunities"
	userstore "github.com/dalemusser/opportunityhub/internal/app/store/users"
	"github.com/dalemusser/opportunityhub/internal/app/system/attachments"
	"github.com/dalemusser/opportunityhub/internal/app/system/events"
	"github.com/dalemusser/opportunityhub/internal/app/system/ratelimit"
	"github.com/dalemusser/opportunityhub/internal/app/system/timeouts"
	"github.com/dalemusser/opportunityhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// services is the app-wide state built once in Startup.
type services struct {
	opportunities *opportunitystore.Store
	saved         *savedstore.Store
	uploader      opportunities.Uploader
	files         storage.Store
	events        events.Publisher
	writeLimit    ratelimit.Limiter // nil when rate limiting is off
	sweep         *workers.OrphanSweep
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	svc := deps.services
	db := deps.MongoDatabase

	// The catalog and the save relation reference each other: saves check
	// the catalog, deletes cascade into saves.
	svc.opportunities = opportunitystore.New(db, userstore.New(db), logger)
	svc.saved = savedstore.New(db, svc.opportunities, logger)
	svc.opportunities.SetCascade(svc.saved)

	files, err := buildStorage(ctx, appCfg)
	if err != nil {
		logger.Error("attachment storage init failed", zap.Error(err))
		return err
	}
	svc.files = files
	svc.uploader = attachments.NewUploader(files, appCfg.StoragePrefix, logger)

	svc.events = events.Nop{}
	if deps.Redis != nil {
		svc.events = events.NewRedis(deps.Redis, appCfg.RedisChannelPrefix, logger)
	}

	if appCfg.RateLimitWrites > 0 {
		if deps.Redis != nil {
			svc.writeLimit = ratelimit.NewRedis(deps.Redis, appCfg.RedisChannelPrefix, appCfg.RateLimitWrites, appCfg.RateLimitWindow)
		} else {
			svc.writeLimit = ratelimit.NewMemory(appCfg.RateLimitWrites, appCfg.RateLimitWindow)
		}
	}

	if appCfg.OrphanSweepCron != "" {
		svc.sweep = workers.NewOrphanSweep(svc.saved, logger, appCfg.OrphanSweepCron, timeouts.Long())
		if err := svc.sweep.Start(); err != nil {
			return err
		}
	}

	logger.Info("startup complete",
		zap.String("storage_type", appCfg.StorageType),
		zap.Bool("events", deps.Redis != nil),
		zap.Bool("orphan_sweep", svc.sweep != nil),
		zap.Int("rate_limit_writes", appCfg.RateLimitWrites))
	return nil
}

func buildStorage(ctx context.Context, appCfg AppConfig) (storage.Store, error) {
	switch appCfg.StorageType {
	case "s3":
		return storage.NewS3(ctx, storage.S3Config{
			Region: appCfg.StorageS3Region,
			Bucket: appCfg.StorageS3Bucket,
			Prefix: appCfg.StorageS3Prefix,
		})
	case "local", "":
		return storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
	}
	return nil, fmt.Errorf("unknown storage type %q", appCfg.StorageType)
}
