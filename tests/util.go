// Package testutil gathers the fixtures shared by the test suites.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/pinkconnect/apps/api/echo"
	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
	"github.com/trezcool/pinkconnect/services/email"
	"github.com/trezcool/pinkconnect/storage/cache"
	"github.com/trezcool/pinkconnect/storage/database"
	"github.com/trezcool/pinkconnect/storage/database/inmem"
)

// Password satisfies the password policy for every fixture user.
const Password = "Xy7!Qz9#Kw"

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = NopLogger{}

// Config returns the test configuration, with email templates parsed.
func Config() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.SecretKey = "test-secret"
	core.ParseEmailTemplates(conf, NopLogger{})
	return conf
}

// PrepareDB opens the postgres test database, migrates it and empties its tables.
// Tests are skipped unless TEST_DATABASE is set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE") == "" {
		t.Skip("TEST_DATABASE not set")
	}

	conf := Config()
	conf.Database.Name = os.Getenv("TEST_DATABASE")
	ctx := context.Background()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("database.CreateIfNotExist(): %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(ctx, db.DB); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}
	if _, err = db.ExecContext(ctx, `TRUNCATE "user", profiles CASCADE`); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
	return db
}

// CreateUser stores a user with Password as password.
func CreateUser(t *testing.T, repo user.Repository, email, fullName, role string, confirmed bool) user.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	usr := user.User{
		Email:     email,
		FullName:  fullName,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if confirmed {
		usr.Confirm(now)
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// API is an identity provider API backed by in-memory storage.
type API struct {
	Server   *echoapi.Server
	Users    user.Repository
	Profiles profile.Repository
	Mail     *emailsvc.ConsoleService
	Cache    *cache.MemoryCache
}

// NewAPI builds the API with conf, which defaults to Config().
func NewAPI(t *testing.T, conf *core.Config) *API {
	t.Helper()
	if conf == nil {
		conf = Config()
	}
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)

	db := inmemdb.Open()
	api := &API{
		Users:    inmemdb.NewUserRepository(db),
		Profiles: inmemdb.NewProfileRepository(db),
		Mail:     emailsvc.NewConsoleServiceMock(conf, NopLogger{}),
		Cache:    cache.NewMemoryCache(),
	}
	api.Server = echoapi.NewServer(&echoapi.Deps{
		Conf:       conf,
		Logger:     NopLogger{},
		Validate:   validate,
		Translator: translator,
		Cache:      api.Cache,
		UserSvc:    user.NewService(api.Users, api.Mail, validate, conf),
		ProfileSvc: profile.NewService(api.Profiles, validate),
	})
	return api
}
