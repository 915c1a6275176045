package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stderr, conf)
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

		if err = database.Migrate(db); err != nil {
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

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(os.Stdout, conf)
	}
	return emailsvc.NewSendgridService(conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

func newDispatcher(
	svc *notification.Service,
	users *user.Service,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) *notification.Dispatcher {
	return notification.NewDispatcher(svc, users, mailSvc, conf, logger)
}

func newAttendanceService(
	tx core.Transactor,
	repo attendance.Repository,
	schoolSvc *school.Service,
	sessSvc *session.Service,
	dispatcher *notification.Dispatcher,
	conf *core.Config,
	logger core.Logger,
) *attendance.Service {
	return attendance.NewService(tx, repo, schoolSvc, sessSvc, dispatcher, conf, logger)
}

type serverParams struct {
	dig.In

	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         *user.Service
	AttendanceSvc   *attendance.Service
	NotificationSvc *notification.Service
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		AttendanceSvc:   p.AttendanceSvc,
		NotificationSvc: p.NotificationSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// storage
	must(c.Provide(sqlxrepos.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(session.Repository))))
	must(c.Provide(sqlxrepos.NewSchoolRepository, dig.As(new(school.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewNotificationRepository, dig.As(new(notification.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(session.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(notification.NewService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
