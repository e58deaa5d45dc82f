package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"studioboard/api"
	"studioboard/board"
	"studioboard/domain"
	"studioboard/notify"
	"studioboard/quota"
	"studioboard/rollover"
	"studioboard/storage"
)

func main() {
	// Local development keeps its config in .env; deployments set real
	// environment variables and have no such file.
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tables := storage.Tables{
		Tasks:    os.Getenv("TASKS_TABLE"),
		Quotas:   os.Getenv("QUOTAS_TABLE"),
		Catalogs: os.Getenv("CATALOGS_TABLE"),
		Comments: os.Getenv("COMMENTS_TABLE"),
		Changes:  os.Getenv("CHANGES_QUEUE"),
	}
	if connStr == "" || tables.Tasks == "" || tables.Quotas == "" ||
		tables.Catalogs == "" || tables.Comments == "" || tables.Changes == "" {
		log.Fatal("missing storage config")
	}
	store, err := storage.New(connStr, tables)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	boardID := os.Getenv("BOARD_ID")
	if boardID == "" {
		boardID = "main"
	}
	managers := splitList(os.Getenv("MANAGER_EMAILS"))

	testMode := os.Getenv("AUTH0_TEST_MODE") == "1"
	var auth *api.Auth
	if testMode {
		auth = api.NewAuth(nil, "", "", managers)
	} else {
		jwtAudience := os.Getenv("AUTH0_AUDIENCE")
		domain := os.Getenv("AUTH0_DOMAIN")
		if jwtAudience == "" || domain == "" {
			log.Fatal("missing Auth0 config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domain+"/", managers)
	}

	otel.SetTracerProvider(sdktrace.NewTracerProvider())

	quotas := quota.New(store, boardID)
	tasks := board.NewService(store, quotas, boardID)
	watcher := board.NewWatcher(rc, store, boardID)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go notify.New(store, rc, boardID).Run(ctx)

	schedule := os.Getenv("ROLLOVER_SCHEDULE")
	if schedule == "" {
		schedule = "@hourly"
	}
	sweeper := rollover.New(store, boardID)
	if err := sweeper.Start(schedule); err != nil {
		log.Fatalf("rollover schedule: %v", err)
	}
	defer sweeper.Stop()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	logger := log.New()
	api.Register(e, api.Services{
		Tasks:     tasks,
		Quotas:    quotas,
		Catalogs:  store,
		Streams:   watcher,
		Designers: loadDesigners(),
	}, auth, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// loadDesigners reads the fixed team roster from DESIGNERS, a JSON array of
// {id, name, avatar} objects.
func loadDesigners() []domain.Designer {
	raw := os.Getenv("DESIGNERS")
	if raw == "" {
		return nil
	}
	var designers []domain.Designer
	if err := sonic.ConfigStd.Unmarshal([]byte(raw), &designers); err != nil {
		log.Fatalf("invalid DESIGNERS: %v", err)
	}
	return designers
}
