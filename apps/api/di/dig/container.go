package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/blog"
	"github.com/trezcool/elimu/core/category"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/user"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/services/scheduler"
	"github.com/trezcool/elimu/storage/cache"
	"github.com/trezcool/elimu/storage/database"
	sqlxrepos "github.com/trezcool/elimu/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newConfig() *core.Config {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(errors.Wrap(err, "loading config").Error())
	}
	return conf
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// CacheParam gives the redis client, nil when the in-memory fallbacks are used.
type CacheParam struct {
	dig.Out
	Redis   *redis.Client
	Cache   core.Cache
	Limiter core.RateLimiter
}

// newCache connects to redis, falling back to process-local caching and rate limiting when it is unreachable.
func newCache(conf *core.Config, logger core.Logger) CacheParam {
	limit, window := conf.Server.RateLimitRequests, conf.Server.RateLimitWindow
	if conf.Redis.Address != "" {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		client, err := cache.NewRedisClient(ctx, conf)
		if err == nil {
			return CacheParam{
				Redis:   client,
				Cache:   cache.NewRedisCache(client),
				Limiter: cache.NewRedisLimiter(client, limit, window),
			}
		}
		logger.Warn(fmt.Sprintf("redis unavailable, using in-memory cache: %v", err), err)
	}
	return CacheParam{Cache: cache.NewMemoryCache(), Limiter: cache.NewMemoryLimiter(limit, window)}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidator registers the custom validators of every domain package.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	blog.InitValidators(validate, translator)
	return validate
}

type serverParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	Limiter       core.RateLimiter
	UserSvc       *user.Service
	CourseSvc     *course.Service
	BlogSvc       *blog.Service
	CategorySvc   *category.Service
	EnrollmentSvc *enrollment.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Limiter:       p.Limiter,
		UserSvc:       p.UserSvc,
		CourseSvc:     p.CourseSvc,
		BlogSvc:       p.BlogSvc,
		CategorySvc:   p.CategorySvc,
		EnrollmentSvc: p.EnrollmentSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(sqlxrepos.NewBlogRepository, dig.As(new(blog.Repository))))
	must(c.Provide(sqlxrepos.NewCategoryRepository, dig.As(new(category.Repository))))
	must(c.Provide(sqlxrepos.NewEnrollmentRepository, dig.As(new(enrollment.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(func(svc *course.Service) enrollment.CourseFinder { return svc }))
	must(c.Provide(blog.NewService))
	must(c.Provide(category.NewService))
	must(c.Provide(func(svc *category.Service) scheduler.CategorySyncer { return svc }))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(scheduler.New))

	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
