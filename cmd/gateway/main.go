package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	api "github.com/Vaibhav2824/IntegriGuard/internal/api/http"
	"github.com/Vaibhav2824/IntegriGuard/internal/auth"
	"github.com/Vaibhav2824/IntegriGuard/internal/config"
	"github.com/Vaibhav2824/IntegriGuard/internal/db"
	"github.com/Vaibhav2824/IntegriGuard/internal/events"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
	"github.com/Vaibhav2824/IntegriGuard/internal/metrics"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
	"github.com/Vaibhav2824/IntegriGuard/internal/submission"
	syncx "github.com/Vaibhav2824/IntegriGuard/internal/sync"
	"github.com/Vaibhav2824/IntegriGuard/internal/user"
)

// session keys outlive a 90 minute exam with room to spare
const sessionKeyTTL = 6 * time.Hour

type stores struct {
	users    user.Store
	exams    exam.Store
	results  result.Store
	attempts result.StudentExamStore
	events   submission.EventLog
	ready    map[string]func(context.Context) error
	closers  []func() error
}

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := proctor.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("proctor policy: %v", err)
	}

	// --- KV (Redis when configured, otherwise in-process) ---
	var (
		kvStore kv.Store = kv.NewMemoryStore()
		locker  proctor.Locker
	)
	if cfg.RedisAddr != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rs, err := kv.NewRedisStore(rctx, kv.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		cancel()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rs.Close()
		kvStore, locker = rs, rs
	}

	st, err := openStores(ctx, cfg, kvStore)
	if err != nil {
		log.Fatalf("stores: %v", err)
	}
	defer func() {
		for _, c := range st.closers {
			_ = c()
		}
	}()

	bs, err := storage.NewFSStore(cfg.BlobBasePath, "/assets/")
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Events ---
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Fatalf("amqp: %v", err)
	}
	defer pub.Close()
	evObserver := events.NewObserver(pub)

	// --- Services ---
	exams := exam.NewService(st.exams)
	writer := submission.NewWriter(submission.Deps{
		Exams:      exams,
		Blobs:      bs,
		Results:    st.results,
		Attempts:   st.attempts,
		Events:     st.events,
		IdleWindow: policy.IdleWindow,
	})

	opts := []proctor.Option{
		proctor.WithObservers(
			metrics.Observer{},
			submission.NewAttemptTracker(st.attempts),
			submission.NewSessionKeys(kvStore, sessionKeyTTL),
			evObserver,
		),
	}
	if locker != nil {
		opts = append(opts, proctor.WithLocker(locker))
	}
	mgr := proctor.NewManager(policy, writer, opts...)

	st.ready["kv"] = kvStore.Ping

	router := api.NewRouter(api.Deps{
		Users:        user.NewService(st.users),
		Exams:        exams,
		Results:      st.results,
		Attempts:     st.attempts,
		Sessions:     mgr,
		Blobs:        bs,
		Issuer:       auth.NewIssuer(cfg.AuthSecret, cfg.TokenTTL),
		EnableSignup: cfg.EnableSignup,
		CORSOrigins:  cfg.CORSOrigins(),
		Ready:        st.ready,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s (mode=%s, store=%s, db=%s, events=%t)",
			cfg.HTTPAddr, cfg.Mode, cfg.Store, cfg.DBDriver, pub.Enabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		// sessions still finishing drop their events once the observer closes
		log.Printf("session shutdown: %v", err)
	}
	evObserver.Close()
	log.Println("exited cleanly")
}

// openStores builds the repositories for cfg.Store. SQL mode also keeps the
// event log; KV mode keeps everything under the local-storage keys.
func openStores(ctx context.Context, cfg config.Config, kvStore kv.Store) (stores, error) {
	st := stores{ready: map[string]func(context.Context) error{}}

	if cfg.Store == config.StoreKV {
		st.users = user.NewKVStore(kvStore)
		st.exams = exam.NewKVStore(kvStore)
		st.results = result.NewKVStore(kvStore)
		st.attempts = result.NewKVStudentExamStore(kvStore)
		return st, nil
	}

	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(dctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return stores{}, err
	}
	st.users = user.NewSQLStore(dbh)
	st.exams = exam.NewSQLStore(dbh)
	st.results = result.NewSQLStore(dbh)
	st.attempts = result.NewSQLStudentExamStore(dbh)
	st.events = syncx.NewEventRepo(dbh, "")
	st.ready["db"] = dbh.PingContext
	st.closers = append(st.closers, dbh.Close)
	return st, nil
}
