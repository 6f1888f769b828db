package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pramaan/certmailer/internal/cert"
	"github.com/pramaan/certmailer/internal/certstore"
	"github.com/pramaan/certmailer/internal/dispatch"
	"github.com/pramaan/certmailer/internal/mailer"
	"github.com/pramaan/certmailer/internal/render"
	"github.com/pramaan/certmailer/internal/store"
	"github.com/pramaan/certmailer/pkg/config"
	"github.com/pramaan/certmailer/pkg/db"
	"github.com/pramaan/certmailer/pkg/logx"
	"github.com/pramaan/certmailer/pkg/rmq"
	"github.com/pramaan/certmailer/services/sender-worker/worker"
)

func main() {
	logx.Init("sender-worker")
	defer logx.Sync()

	cfg, err := config.LoadWorker()
	if err != nil {
		logx.L().Fatalw("config_load_error", "error", err)
	}

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer sqlDB.Close()

	st := store.New(sqlDB)

	var artifacts certstore.Store
	if cfg.S3.Bucket != "" {
		artifacts, err = certstore.NewS3(context.Background(), certstore.S3Options{
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

	cons, err := rmq.NewConsumer(cfg.RMQURL, cfg.Queue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer cons.Close()

	w := worker.New(st, dispatcher, cons)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		logx.L().Fatalw("worker_error", "error", err)
	}
}
