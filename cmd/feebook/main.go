package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"

	"github.com/ManuelReschke/FeeBook/app/controllers"
	"github.com/ManuelReschke/FeeBook/app/repository"
	"github.com/ManuelReschke/FeeBook/internal/pkg/apiclient"
	"github.com/ManuelReschke/FeeBook/internal/pkg/apidoc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/billing"
	"github.com/ManuelReschke/FeeBook/internal/pkg/cache"
	"github.com/ManuelReschke/FeeBook/internal/pkg/database"
	"github.com/ManuelReschke/FeeBook/internal/pkg/docpreview"
	"github.com/ManuelReschke/FeeBook/internal/pkg/docstore"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
	"github.com/ManuelReschke/FeeBook/internal/pkg/feeplan"
	"github.com/ManuelReschke/FeeBook/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/FeeBook/internal/pkg/jobqueue"
	"github.com/ManuelReschke/FeeBook/internal/pkg/kyc"
	"github.com/ManuelReschke/FeeBook/internal/pkg/mail"
	"github.com/ManuelReschke/FeeBook/internal/pkg/membership"
	"github.com/ManuelReschke/FeeBook/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/FeeBook/internal/pkg/router"
	"github.com/ManuelReschke/FeeBook/internal/pkg/statistics"
	"github.com/ManuelReschke/FeeBook/internal/pkg/viewmodel"
)

func main() {
	app := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		jobqueue.GetManager().Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/feebook to project root
		"../../../", // Fallback
	}

	// Find the correct base path
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "views"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	if basePath == "" {
		panic("Could not find project root directory")
	}

	engine := html.New(basePath+"views", ".html")
	engine.AddFuncMap(viewmodel.Funcs())

	// init fiber app
	app := fiber.New(fiber.Config{
		Views:     engine,
		BodyLimit: 12 * 1024 * 1024, // KYC uploads: three documents of up to 4 MiB
	})

	// ignore and cache favicon
	app.Use(favicon.New(favicon.Config{
		File:         basePath + "public/assets/icons/favicon.ico",
		URL:          "/favicon.ico",
		CacheControl: "public, max-age=604800",
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// static files
	app.Static("/", basePath+"public/assets", fiber.Static{
		CacheDuration: 15 * time.Second,
		Compress:      true,
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))
	if err := apidoc.Setup(openAPICfg.FilePath); err != nil {
		log.Printf("openapi request validation disabled: %v", err)
	}

	setupServices()

	// ROUTER
	router.InstallRouter(app)

	return app
}

// setupServices builds the domain services, hands them to the controllers
// and starts the background workers.
func setupServices() {
	db := database.GetDB()
	repos := repository.NewRepositories(db)
	store := cache.JSON()
	docs := docstore.Setup()
	apiUsage := counter.NewAPIKeyRequests(cache.GetClient(), db)

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()
	orderJobs := jobqueue.NewOrderJobs(queue)

	feePlans := feeplan.NewServiceFromDB(db)
	payments := billing.NewServiceFromDB(db, billing.NewGatewayClientFromEnv())
	kycService := kyc.NewServiceFromDB(db, docs, jobqueue.NewKYCJobs(queue))
	notifier := kyc.NewNotifier(kyc.NewRepository(db), mail.NewSMTPSender(mail.SMTPConfigFromEnv()),
		env.GetEnv("PUBLIC_DOMAIN", "http://localhost:"+env.GetEnv("APP_PORT", "4000")))

	manager.Configure(jobqueue.Processors{
		Orders:   payments,
		Notifier: notifier,
		Previews: docpreview.NewRenderer(docs),
	}, jobqueue.Sweepers{
		Overdue:   feePlans,
		Reconcile: payments,
		Counters:  apiUsage,
	})

	// Registration skips the captcha when no secret is configured.
	var captcha controllers.CaptchaVerifier
	if v := hcaptcha.NewVerifier(); v.Secret != "" {
		captcha = v
	}

	controllers.Initialize(controllers.Deps{
		Repos:           repos,
		FeePlans:        feePlans,
		Editors:         feeplan.NewEditorStore(store),
		Payments:        payments,
		KYC:             kycService,
		Memberships:     membership.NewServiceFromDB(db, store),
		Stats:           statistics.NewService(repository.DashboardCounts{Repos: repos}, queue, store),
		OrderJobs:       orderJobs,
		Captcha:         captcha,
		Sweeps:          manager,
		APIUsage:        apiUsage,
		WebhookSecret:   env.GetEnv("PG_SECRET_KEY", ""),
		DocumentSecret:  env.GetEnv("DOCUMENT_LINK_SECRET", env.GetEnv("SESSION_SECRET", "")),
		CheckoutMode:    env.GetEnv("PG_CHECKOUT_MODE", "sandbox"),
		HCaptchaSiteKey: env.GetEnv("HCAPTCHA_SITEKEY", ""),
		PortalAPI:       apiclient.NewFromEnv(),
	})

	manager.Start()
}
