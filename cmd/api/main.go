package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"servehours.org/internal/auth"
	"servehours.org/internal/hours"
	"servehours.org/internal/httpapi"
	"servehours.org/internal/obs"
	"servehours.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

type config struct {
	Addr        string `env:"SERVEHOURS_ADDR" envDefault:":8080"`
	PGDSN       string `env:"SERVEHOURS_PG_DSN"`
	EmailDomain string `env:"SERVEHOURS_EMAIL_DOMAIN" envDefault:"@wws.k12.in.us"`
	DevSeed     bool   `env:"SERVEHOURS_DEV_SEED" envDefault:"false"`
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	_ = godotenv.Load()
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}

	var (
		db       *sql.DB
		store    hours.Store
		profiles auth.ProfileStore
		writer   auth.ProfileWriter
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgStore.DB()
		store = pgStore
		profiles = pgStore
		writer = pgStore
	} else {
		log.Println("SERVEHOURS_PG_DSN not set, using in-memory store")
		mem := auth.NewMemoryProfiles()
		store = hours.NewInMemory()
		profiles = mem
		writer = mem
	}

	provider := auth.NewLocalProvider(auth.WithProfileWriter(writer))
	resolver := auth.NewResolver(profiles)
	service := hours.NewService(store)
	workflow := hours.NewWorkflow(store)

	if cfg.DevSeed {
		seedDevAccounts(provider, writer, cfg.EmailDomain)
	}

	// Finish any archive left half-done by a crash before taking traffic.
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := workflow.Reconcile(ctx); err != nil {
			log.Fatalf("reconcile archives: %v", err)
		}
		cancel()
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, provider, resolver, service, workflow, cfg.EmailDomain)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting servehours-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// seedDevAccounts registers one student and one reviewer so a fresh checkout
// is usable without a signup round trip. Works against any profile writer,
// including the Postgres store.
func seedDevAccounts(provider *auth.LocalProvider, writer auth.ProfileWriter, domain string) {
	ctx := context.Background()
	accounts := []auth.SignUpInput{
		{Email: "student" + domain, Password: "devpassword", FullName: "Dev Student", Grade: "10"},
		{Email: "admin" + domain, Password: "devpassword", FullName: "Dev Reviewer"},
	}
	for _, in := range accounts {
		if err := provider.SignUp(ctx, in); err != nil {
			log.Printf("dev seed %s: %v", in.Email, err)
		}
	}
	if id, ok := provider.AccountID("admin" + domain); ok {
		err := writer.Save(ctx, auth.Profile{ID: id, Email: "admin" + domain, FullName: "Dev Reviewer", IsAdmin: true})
		if err != nil {
			log.Printf("dev seed admin profile: %v", err)
		}
	}
	log.Println("dev accounts seeded (student/admin, password devpassword)")
}
