package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/elimu/apps/api/di/dig"
	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/scheduler"
	"github.com/trezcool/elimu/storage/database"
)

type appParams struct {
	dig.In
	Conf      *core.Config
	Logger    core.Logger
	DBLogger  core.Logger `name:"dbLogger"`
	DB        *sqlx.DB
	Redis     *redis.Client
	Scheduler *scheduler.Scheduler
	Server    *echoapi.Server
}

func main() {
	c := dig_container.New()
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(p appParams) {
	conf, logger := p.Conf, p.Logger

	// =========================================================================
	// Initialize App

	if closer, ok := logger.(interface{ Close() }); ok {
		defer closer.Close() // flush the queued reports
	}
	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)

	defer func() {
		if err := p.DB.Close(); err != nil {
			p.DBLogger.Error("Failed to close", err)
		}
	}()
	if p.Redis != nil {
		defer func() {
			if err := p.Redis.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing redis: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /debug/readiness - Reports whether the database answers.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.HandleFunc("/debug/readiness", func(w http.ResponseWriter, r *http.Request) {
		if err := database.StatusCheck(r.Context(), p.DB); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("OK"))
	})

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler & API Service

	p.Scheduler.Start()
	go p.Server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-p.Server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-p.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	}

	// give outstanding requests and jobs a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := p.Scheduler.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop scheduler gracefully: %v", err), err)
	}

	// asking listener to shut down and shed load
	if err := p.Server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

		if err = p.Server.Close(); err != nil {
			logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
		}
	}
}
