package main

import (
	"fmt"
	"os"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/school"
	"github.com/trezcool/mahudhurio/core/session"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	"github.com/trezcool/mahudhurio/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(os.Stdout, conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:        db.DB,
		usrSvc:    user.NewService(sqlxrepos.NewUserRepository(db)),
		schoolSvc: school.NewService(sqlxrepos.NewSchoolRepository(db)),
		sessSvc:   session.NewService(sqlxrepos.NewTransactor(db), sqlxrepos.NewSessionRepository(db)),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin %v: %v", os.Args[1:], err), err)
		}
		os.Exit(1)
	}
}
