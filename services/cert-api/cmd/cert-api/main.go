package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pramaan/certmailer/internal/cert"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/dispatch"
	"github.com/pramaan/certmailer/internal/mailer"
	"github.com/pramaan/certmailer/internal/names"
	"github.com/pramaan/certmailer/internal/render"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/config"
	"github.com/pramaan/certmailer/pkg/db"
	"github.com/pramaan/certmailer/pkg/logx"
	"github.com/pramaan/certmailer/pkg/rmq"
	"github.com/pramaan/certmailer/services/cert-api/server"
)

func main() {
	logx.Init("cert-api")
	defer logx.Sync()

	cfg, err := config.LoadAPI()
	if err != nil {
		logx.L().Fatalw("config_load_error", "error", err)
	}

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logx.L().Warnw("db_close_error", "error", err)
		}
	}()

	st := store.New(sqlDB)

	var artifacts certstore.Store
	if cfg.S3.Bucket != "" {
		s3store, err := certstore.NewS3(context.Background(), certstore.S3Options{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			logx.L().Fatalw("certstore_init_error", "error", err)
		}
		artifacts = s3store
	} else {
		logx.L().Warnw("certstore_degraded_mode", "reason", "no S3 bucket configured, artifacts held in memory")
		artifacts = certstore.NewMemory()
	}

	renderer := render.Select(cfg.FontPath, logx.L())
	generator := cert.NewGenerator(renderer, artifacts, st)

	var sender mailer.Sender
	if cfg.SMTP.Host != "" {
		sender = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
	} else {
		logx.L().Warnw("mailer_degraded_mode", "reason", "no SMTP relay configured, emails are logged only")
		sender = mailer.NewLog(logx.L())
	}

	dispatcher := dispatch.New(st, generator, sender, logx.L(), dispatch.Options{
		Domain:      cfg.Domain,
		IssuerName:  cfg.Issuer,
		FromAddress: cfg.SMTP.From,
		CallTimeout: cfg.CallTimeout,
	})

	h := &server.Handlers{
		Store:      st,
		Artifacts:  artifacts,
		Dispatcher: dispatcher,
	}

	if cfg.AI.URL != "" {
		h.Validator = names.NewClient(cfg.AI.URL, cfg.AI.APIKey)
	}

	if cfg.RMQURL != "" {
		pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.Queue)
		if err != nil {
			logx.L().Fatalw("rmq_init_error", "error", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				logx.L().Warnw("rmq_publisher_close_error", "error", err)
			}
		}()
		h.Pub = pub
	}

	srv := server.NewHTTPServer(":"+cfg.Port, h)

	go func() {
		logx.L().Infow("api_listen_start", "addr", ":"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}
}
