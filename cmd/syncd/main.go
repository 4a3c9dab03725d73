package main

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	api "github.com/prepsync/practice-sync/internal/api/http"
	"github.com/prepsync/practice-sync/internal/cloudstore"
	"github.com/prepsync/practice-sync/internal/config"
	"github.com/prepsync/practice-sync/internal/db"
	"github.com/prepsync/practice-sync/internal/localstore"
	"github.com/prepsync/practice-sync/internal/notify"
	"github.com/prepsync/practice-sync/internal/ratelimit"
	"github.com/prepsync/practice-sync/internal/session"
	"github.com/prepsync/practice-sync/internal/storage"
	"github.com/prepsync/practice-sync/internal/syncsvc"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	localDB, err := db.OpenLocal(ctx, cfg.LocalDSN)
	if err != nil {
		log.WithError(err).Fatal("open local db")
	}
	remoteDB, err := db.OpenRemote(ctx, db.Driver(cfg.RemoteDriver), cfg.RemoteDSN)
	if err != nil {
		log.WithError(err).Fatal("open remote db")
	}

	bus := notify.NewBus()
	bus.Subscribe(func() { log.Debug("wrong-question records changed") })

	local := localstore.New(localDB, bus, log)
	if err := local.Open(ctx); err != nil {
		log.WithError(err).Fatal("open local store")
	}

	remote := cloudstore.New(remoteDB)
	limiter := ratelimit.New(remoteDB, nil, log)
	tokens := session.NewTokenService(cfg.JWTSecret)
	sessions := session.NewService(remoteDB, tokens, limiter, log)

	snapshots, err := storage.NewFSStore(cfg.ExportDir)
	if err != nil {
		log.WithError(err).Fatal("snapshot store")
	}

	// Remember the most recent authenticated user so the background
	// reconciliation can run on their behalf between requests.
	var lastUser atomic.Value
	lastUser.Store("")

	syncer := syncsvc.New(local, remote,
		syncsvc.SessionFunc(session.CurrentUserID), limiter, time.Now, log)
	syncer.AutoResolveWindow = cfg.AutoResolveWindow
	syncer.ConflictWindow = cfg.ConflictWindow

	sched := gocron.NewScheduler(time.UTC)
	_, err = sched.Every(cfg.SyncInterval).Do(func() {
		userID, _ := lastUser.Load().(string)
		if userID == "" {
			return
		}
		jobCtx, jobCancel := context.WithTimeout(context.Background(), time.Minute)
		defer jobCancel()
		res := syncer.BidirectionalSync(session.WithIdentity(jobCtx, userID, ""))
		log.WithFields(logrus.Fields{
			"synced": res.Synced, "conflicts": len(res.Conflicts), "success": res.Success,
		}).Info("periodic sync")
	})
	if err != nil {
		log.WithError(err).Fatal("schedule periodic sync")
	}
	sched.StartAsync()
	defer sched.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "X-Snapshot-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", api.RegisterHandler(sessions))
	r.Post("/auth/login", api.LoginHandler(sessions))

	r.Group(func(pr chi.Router) {
		pr.Use(session.Middleware(tokens))
		pr.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id := session.CurrentUserID(r.Context()); id != "" {
					lastUser.Store(id)
				}
				next.ServeHTTP(w, r)
			})
		})

		pr.Post("/auth/logout", api.LogoutHandler(sessions))

		pr.Get("/wrong-questions", api.ListWrongQuestionsHandler(local))
		pr.Delete("/wrong-questions/{externalID}", api.DeleteWrongQuestionHandler(local, syncer))
		pr.Delete("/wrong-questions", api.ClearWrongQuestionsHandler(local))

		pr.Post("/practice/answers", api.SubmitAnswerHandler(local, syncer))
		pr.Post("/practice/explanation", api.ExplanationHandler())
		pr.Get("/practice/progress", api.ProgressHandler(local))
		pr.Post("/practice/progress", api.SaveProgressHandler(local))
		pr.Get("/practice/stats", api.SessionStatsHandler(local))

		pr.Post("/sync", api.TriggerSyncHandler(syncer))
		pr.Get("/sync/status", api.SyncStatusHandler(local, syncer))
		pr.Post("/sync/resolve", api.ResolveConflictsHandler(syncer))

		pr.Get("/data/export", api.ExportHandler(local, snapshots))
		pr.Post("/data/import", api.ImportHandler(local))
		pr.Get("/data/snapshots", api.ListSnapshotsHandler(snapshots))
		pr.Post("/data/snapshots/{key}/restore", api.RestoreSnapshotHandler(local, snapshots))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode}).Info("listening")
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
