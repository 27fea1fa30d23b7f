package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const version = "1.0.0"

type config struct {
	port int
	env  string
	db   struct {
		dsn                string
		maxOpenConnections int
		maxIdleConnections int
		maxIdleTime        time.Duration
		migrationsDir      string
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	jwt struct {
		secret string
	}
	limiter struct {
		enabled             bool
		maxRequestPerSecond float64
		burst               int
	}
	cors struct {
		trustedOrigins []string
	}
	redis struct {
		addr     string
		password string
		db       int
		ttl      time.Duration
	}
	jira jiraConfig
}

type application struct {
	config     config
	storage    dataStore
	mailer     *mailer
	board      *boardCache
	boardGroup singleflight.Group
	jiraStates *stateCache
	jiraClient *http.Client
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	var cfg config
	flag.IntVar(&cfg.port, "port", 3000, "Server Port")
	flag.StringVar(&cfg.env, "env", "development", "Environment [development|production]")

	flag.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConnections, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.IntVar(&cfg.db.maxIdleConnections, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	var maxIdleTime string
	flag.StringVar(&maxIdleTime, "db-max-idle-time", "15m", "PostgreSQL max connection idle time")
	flag.StringVar(&cfg.db.migrationsDir, "db-migrations", "migrations", "Directory with goose migrations, empty to skip")

	flag.StringVar(&cfg.smtp.host, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host")
	smtpPort := 25
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
		smtpPort = p
	}
	flag.IntVar(&cfg.smtp.port, "smtp-port", smtpPort, "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", os.Getenv("SMTP_SENDER"), "SMTP sender")

	flag.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("JWT_SECRET"), "JWT secret")

	flag.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable per-IP rate limiting")
	flag.Float64Var(&cfg.limiter.maxRequestPerSecond, "limiter-rps", 4, "Rate limiter max requests per second")
	flag.IntVar(&cfg.limiter.burst, "limiter-burst", 8, "Rate limiter burst")

	var trustedOrigins string
	flag.StringVar(&trustedOrigins, "cors-trusted-origins", os.Getenv("CORS_TRUSTED_ORIGINS"), "Trusted CORS origins, space separated")

	flag.StringVar(&cfg.redis.addr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address, empty to disable the board cache")
	flag.StringVar(&cfg.redis.password, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	flag.IntVar(&cfg.redis.db, "redis-db", 0, "Redis database")
	var redisTTL string
	flag.StringVar(&redisTTL, "redis-ttl", "1m", "Board cache TTL")

	flag.StringVar(&cfg.jira.authURL, "jira-auth-url", os.Getenv("ATLASSIAN_AUTH_URL"), "Atlassian authorization base URL")
	flag.StringVar(&cfg.jira.clientID, "jira-client-id", os.Getenv("ATLASSIAN_CLIENT_ID"), "Atlassian OAuth client id")
	flag.StringVar(&cfg.jira.clientSecret, "jira-client-secret", os.Getenv("ATLASSIAN_CLIENT_SECRET"), "Atlassian OAuth client secret")
	flag.StringVar(&cfg.jira.redirectURL, "jira-redirect-url", os.Getenv("ATLASSIAN_AUTH_REDIRECT_URL"), "Atlassian OAuth redirect URL")
	flag.StringVar(&cfg.jira.apiBaseURL, "jira-api-base-url", os.Getenv("ATLASSIAN_API_BASE_URL"), "Atlassian API base URL")
	flag.StringVar(&cfg.jira.apiPrefix, "jira-api-prefix", os.Getenv("ATLASSIAN_API_PREFIX"), "Atlassian API prefix")
	flag.StringVar(&cfg.jira.apiVersion, "jira-api-version", os.Getenv("ATLASSIAN_API_VERSION"), "Atlassian API version")
	flag.Parse()

	d, err := time.ParseDuration(maxIdleTime)
	if err != nil {
		cfg.db.maxIdleTime = 15 * time.Minute
		log.Printf(`invalid value %s for flag "db-max-idle-time" defaulting to %s`, maxIdleTime, cfg.db.maxIdleTime)
	} else {
		cfg.db.maxIdleTime = d
	}
	cfg.redis.ttl, err = time.ParseDuration(redisTTL)
	if err != nil {
		cfg.redis.ttl = time.Minute
		log.Printf(`invalid value %s for flag "redis-ttl" defaulting to %s`, redisTTL, cfg.redis.ttl)
	}
	if trustedOrigins != "" {
		cfg.cors.trustedOrigins = strings.Fields(trustedOrigins)
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Println("established a connection with database")

	if cfg.db.migrationsDir != "" {
		if err := goose.SetDialect("postgres"); err != nil {
			log.Fatal(err)
		}
		if err := goose.Up(db, cfg.db.migrationsDir); err != nil {
			log.Fatal(err)
		}
		log.Println("database migrations are up to date")
	}

	if cfg.jwt.secret == "" {
		secret := make([]byte, 32)
		_, err = rand.Read(secret[:])
		if err != nil {
			log.Fatal(err)
		}
		cfg.jwt.secret = string(secret)
	}

	app := &application{
		config:     cfg,
		storage:    newStorage(db),
		jiraStates: newStateCache(),
		jiraClient: &http.Client{Timeout: 10 * time.Second},
	}
	if cfg.smtp.host != "" {
		app.mailer = newMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)
	}
	if cfg.redis.addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.redis.addr,
			Password: cfg.redis.password,
			DB:       cfg.redis.db,
		})
		app.board = newBoardCache(rdb, cfg.redis.ttl)
		log.Println("board cache enabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.port),
		Handler:      composeRoutes(app),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.Printf("Starting %s server on port %d\n", cfg.env, cfg.port)
	err = srv.ListenAndServe()
	log.Fatal(err)
}
