package main

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"caseflow/db"
	"caseflow/delivery"
	"caseflow/httpapi"
	"caseflow/objectstore"
	"caseflow/research"
	"caseflow/tenant"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	jwtSecret := os.Getenv("APP_SECRET_KEY")
	if jwtSecret == "" {
		log.Fatal("APP_SECRET_KEY is required")
	}

	var store objectstore.Store
	if endpoint := os.Getenv("OBJECT_STORE_ENDPOINT"); endpoint != "" {
		useSSL, _ := strconv.ParseBool(os.Getenv("OBJECT_STORE_USE_SSL"))
		s, err := objectstore.NewMinIOStore(objectstore.Config{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
			SecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
			Bucket:    os.Getenv("OBJECT_STORE_BUCKET"),
			UseSSL:    useSSL,
		})
		if err != nil {
			log.Fatal("bootstrap object store", zap.Error(err))
		}
		store = s
	} else {
		log.Warn("no object store configured, documents will carry raw references")
	}

	tenants := tenant.NewService(tenant.NewRepository(pool), jwtSecret)
	researchSvc := research.NewService(pool, research.NewRepository(pool))
	gateway := delivery.NewService(delivery.NewRepository(pool), store, log)

	server := httpapi.NewServer(tenants, researchSvc, gateway, log)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Info("api listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, server.Router()); err != nil {
		log.Fatal("serve", zap.Error(err))
	}
}
