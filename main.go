package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/openbank/authcore/internal/audit"
	"github.com/openbank/authcore/internal/common"
	"github.com/openbank/authcore/internal/config"
	"github.com/openbank/authcore/internal/credentials"
	"github.com/openbank/authcore/internal/guard"
	"github.com/openbank/authcore/internal/handlers/api"
	"github.com/openbank/authcore/internal/middlewares"
	"github.com/openbank/authcore/internal/notify"
	"github.com/openbank/authcore/internal/ratelimit"
	"github.com/openbank/authcore/internal/rbac"
	"github.com/openbank/authcore/internal/store"
	"github.com/openbank/authcore/internal/token"
	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "authcore - client credentials authorization server for the OpenBank API"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if dbConfig.ReplicaDsn != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(dbConfig.ReplicaDsn)},
		}))
		if err != nil {
			slog.Error("Failed to register read replica", "error", err)
			os.Exit(1)
		}
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitRedis(redisCfg config.RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    redisCfg.Addrs,
		Username: redisCfg.Username,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
		PoolSize: redisCfg.PoolSize,
	})
}

func initMailSender(alertsCfg config.AlertsConfig) notify.MailSender {
	if !alertsCfg.Enabled {
		return notify.NullSender{}
	}
	return notify.NewSMTPMailSender(alertsCfg.SMTP)
}

func setupAPIRoutes(
	router fiber.Router,
	engine *token.Engine,
	credentialService *credentials.Service,
	resolver *rbac.Resolver,
	accountGuard *guard.Guard,
	eventRepo audit.SecurityEventRepository) {

	// handlers
	var (
		tokenHandler     = api.NewTokenHandler(engine)
		developerHandler = api.NewDeveloperHandler(credentialService)
		adminHandler     = api.NewAdminHandler(resolver, accountGuard, eventRepo)
	)

	// routes
	router.Post("/oauth/token", tokenHandler.PostToken)
	router.Post("/oauth/refresh", tokenHandler.PostRefresh)
	router.Post("/oauth/revoke", tokenHandler.PostRevoke)
	router.Get("/oauth/scopes", tokenHandler.GetScopes)
	router.Post("/developers", developerHandler.PostRegister)

	authed := router.Group("", middlewares.BearerAuth(engine))
	authed.Get("/oauth/introspect", tokenHandler.GetIntrospect)
	authed.Get("/oauth/me", tokenHandler.GetIntrospect)
	authed.Post("/developers/me/projects", developerHandler.PostProject)
	authed.Get("/developers/me/projects", developerHandler.GetProjects)
	authed.Post("/developers/me/projects/:id/rotate", developerHandler.PostRotateSecret)
	authed.Post("/admin/roles", adminHandler.PostGrantRole)
	authed.Delete("/admin/roles", adminHandler.DeleteRole)
	authed.Post("/admin/permissions", adminHandler.PostGrantPermission)
	authed.Delete("/admin/permissions/:id", adminHandler.DeletePermission)
	authed.Post("/admin/accounts/:id/unlock", adminHandler.PostUnlock)
	authed.Get("/admin/audit", adminHandler.GetAuditEvents)
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(config.MySQL)
	rdb := mustInitRedis(config.Redis)
	cacheStorage := store.NewRedisStorage(rdb)
	mailSender := initMailSender(config.Alerts)

	signer, err := token.NewSigner(config.Token)
	if err != nil {
		slog.Error("Invalid token config", "error", err)
		return err
	}

	// repositories
	var (
		developerRepo = credentials.NewDeveloperRepository(db)
		projectRepo   = credentials.NewProjectRepository(db)
		userRoleRepo  = rbac.NewUserRoleRepository(db)
		userPermRepo  = rbac.NewUserPermissionRepository(db)
		securityRepo  = guard.NewAccountSecurityRepository(db)
		tokenRepo     = token.NewTokenRepository(db)
		eventRepo     = audit.NewSecurityEventRepository(db)
	)

	// services
	var (
		emitter           = audit.NewEmitter(eventRepo, config.Audit.QueueSize)
		resolver          = rbac.NewResolver(userRoleRepo, userPermRepo, cacheStorage).WithEmitter(emitter)
		credentialService = credentials.NewService(developerRepo, projectRepo, cacheStorage).WithEmitter(emitter).WithRoles(resolver)
		accountGuard      = guard.NewGuard(securityRepo, developerRepo, emitter, mailSender, config.Security)
		limiter           = ratelimit.NewLimiter(cacheStorage, config.RateLimit.Window, config.RateLimit.DefaultCeiling)
		engine            = token.NewEngine(credentialService, resolver, accountGuard, limiter, tokenRepo, signer, emitter)
	)
	defer emitter.Close()

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.HandleError,
	})

	router.Use(recover.New())
	router.Use(requestid.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(config.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupAPIRoutes(router, engine, credentialService, resolver, accountGuard, eventRepo)

	bgCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go token.SweepExpired(bgCtx, tokenRepo)
	go common.StartHealthCheckServer(bgCtx, done, rdb, db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
