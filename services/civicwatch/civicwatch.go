package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/civicwatch/backend/auth"
	"github.com/civicwatch/backend/core/access"
	"github.com/civicwatch/backend/core/csql"
	"github.com/civicwatch/backend/core/events"
	"github.com/civicwatch/backend/core/filestore"
	"github.com/civicwatch/backend/core/logger"
	"github.com/civicwatch/backend/core/rest"
	"github.com/civicwatch/backend/incident"
	"github.com/civicwatch/backend/notifications"
	"github.com/civicwatch/backend/recycling"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="password=docker"
type Service struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema           string `env:"SCHEMA,default civicwatch" description:"the database schema"`
	Port             int    `env:"PORT,default 3000" description:"the port to listen on"`
	JWTSecret        string `env:"JWT_SECRET,required" description:"the symmetric signing key for bearer tokens"`
	JWTIssuer        string `env:"JWT_ISSUER,default civicwatch" description:"the accepted token issuer"`
	JWTAudience      string `env:"JWT_AUDIENCE,default civicwatch-app" description:"the accepted token audience"`
	StaticRoot       string `env:"STATIC_ROOT,optional" description:"the static web root; uploads go to its uploads subfolder"`
	PhotoDriver      string `env:"PHOTO_DRIVER,default Local" description:"photo storage driver: Local or AWSS3"`
	KafkaBrokers     string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers for incident events; empty disables publishing"`
	S3               filestore.S3Configuration
}

func main() {
	logger.InitLogger(logrus.InfoLevel)

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		logger.Default().WithError(err).Fatalln("cannot decode configuration")
	}

	db, err := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
	if err != nil {
		logger.Default().WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()

	accountStore, err := auth.NewSQLStore(db)
	if err != nil {
		logger.Default().WithError(err).Fatalln("cannot create account store")
	}
	reportStore, err := incident.NewSQLStore(db)
	if err != nil {
		logger.Default().WithError(err).Fatalln("cannot create report store")
	}
	deviceStore, err := notifications.NewSQLStore(db)
	if err != nil {
		logger.Default().WithError(err).Fatalln("cannot create device store")
	}
	siteStore, err := recycling.NewSQLStore(db)
	if err != nil {
		logger.Default().WithError(err).Fatalln("cannot create site store")
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)
	router.Use(func(h http.Handler) http.Handler {
		return handlers.CompressHandler(h)
	})

	var blobs filestore.Driver
	switch filestore.DriverType(service.PhotoDriver) {
	case filestore.DriverTypeAWSS3:
		blobs, err = filestore.NewS3(service.S3)
		if err != nil {
			logger.Default().WithError(err).Fatalln("cannot create S3 filestore")
		}
	default:
		local, lerr := filestore.NewLocalFilesystem(service.StaticRoot)
		if lerr != nil {
			logger.Default().WithError(lerr).Fatalln("cannot create local filestore")
		}
		local.HandleRoutes(router)
		blobs = local
	}

	var sink incident.EventSink
	if service.KafkaBrokers != "" {
		publisher := events.NewPublisher(strings.Split(service.KafkaBrokers, ","))
		defer publisher.Close()
		sink = publisher
	}

	tokens := access.NewTokenService([]byte(service.JWTSecret), service.JWTIssuer, service.JWTAudience)

	auth.NewAPI(accountStore, tokens).HandleRoutes(router)
	recycling.NewAPI(siteStore).HandleRoutes(router)

	protected := router.NewRoute().Subrouter()
	protected.Use(tokens.Middleware())
	incident.NewAPI(reportStore, blobs, sink).HandleRoutes(protected)
	notifications.NewAPI(deviceStore).HandleRoutes(protected)

	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		rest.WriteJSON(w, http.StatusOK, map[string]string{"version": Version})
	}).Methods(http.MethodGet)

	server := &http.Server{
		Handler: router,
		Addr:    ":" + strconv.Itoa(service.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Default().Infoln("listen on port", service.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Default().WithError(err).Fatalln("server closed")
	}
}
