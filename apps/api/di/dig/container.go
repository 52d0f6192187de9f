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
	"go.uber.org/dig"

	echoapi "github.com/trezcool/pinkconnect/apps/api/echo"
	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
	emailsvc "github.com/trezcool/pinkconnect/services/email"
	logsvc "github.com/trezcool/pinkconnect/services/logger"
	"github.com/trezcool/pinkconnect/storage/cache"
	"github.com/trezcool/pinkconnect/storage/database"
	inmemdb "github.com/trezcool/pinkconnect/storage/database/inmem"
	sqlxrepos "github.com/trezcool/pinkconnect/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are the storage backends of the API services.
type Repositories struct {
	dig.Out
	Users    user.Repository
	Profiles profile.Repository
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Cache      cache.Cache
	UserSvc    *user.Service
	ProfileSvc *profile.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newDB sets up the postgres database; it is nil when the API runs in memory.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.InMemory {
		loggerParam.Logger.Info("using the in-memory database")
		return nil
	}

	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sqlx.DB) Repositories {
	if conf.Database.InMemory || db == nil {
		mem := inmemdb.Open()
		return Repositories{
			Users:    inmemdb.NewUserRepository(mem),
			Profiles: inmemdb.NewProfileRepository(mem),
		}
	}
	return Repositories{
		Users:    sqlxrepos.NewUserRepository(db),
		Profiles: sqlxrepos.NewProfileRepository(db),
	}
}

// newCache uses redis when an address is configured, the process memory otherwise.
func newCache(conf *core.Config, logger core.Logger) cache.Cache {
	if conf.Redis.Addr == "" {
		return cache.NewMemoryCache()
	}
	client, err := cache.OpenRedis(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return cache.NewRedisCache(client)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		std := log.New(os.Stdout, "MAIL : ", log.LstdFlags)
		return emailsvc.NewConsoleService(conf, std, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	return validate, translator
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Cache:      p.Cache,
		UserSvc:    p.UserSvc,
		ProfileSvc: p.ProfileSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(profile.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
