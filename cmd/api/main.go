package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/config"
	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	"github.com/Kccollections/kc-collections-sub000/internal/handler"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/db"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/mail"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/payment"
	infraRepo "github.com/Kccollections/kc-collections-sub000/internal/infra/repository"
	"github.com/Kccollections/kc-collections-sub000/internal/infra/shipping"
	"github.com/Kccollections/kc-collections-sub000/internal/server"
	"github.com/Kccollections/kc-collections-sub000/internal/usecase"
	"github.com/Kccollections/kc-collections-sub000/internal/worker"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	logger := log.StandardLogger()

	//.envはローカル用。なくても環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config failed")
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.WithError(err).Fatal("db connect failed")
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.TempOrder{},
	); err != nil {
		logger.WithError(err).Fatal("migrate failed")
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	tempRepo := infraRepo.NewTempOrderGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)

	//外部サービスのclient
	gateway, err := payment.NewHTTPClient(cfg.PaymentBaseURL, cfg.PaymentKeyID, cfg.PaymentKeySecret, logger)
	if err != nil {
		logger.WithError(err).Fatal("payment client init failed")
	}
	shippingClient, err := shipping.NewHTTPClient(cfg.ShippingBaseURL, cfg.ShippingEmail, cfg.ShippingPassword, logger)
	if err != nil {
		logger.WithError(err).Fatal("shipping client init failed")
	}

	var mailer mail.Dispatcher = mail.NopDispatcher{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}

	clock := usecase.NewRealClock()

	//Usecase生成
	verifier := usecase.NewPaymentVerifier(cfg.PaymentKeySecret)
	coordinator := usecase.NewShipmentCoordinator(shippingClient, orderRepo, addressRepo, cfg.ShippingPickupLocation, clock, logger)
	orderUC := usecase.NewOrderUsecase(
		orderRepo, tempRepo, addressRepo, productRepo, userRepo,
		gateway, verifier, coordinator, mailer,
		cfg.TempOrderTTL, clock, logger,
	)
	cancelUC := usecase.NewCancelUsecase(orderRepo, userRepo, coordinator, mailer, clock, logger)
	authUC := usecase.NewAuthUsecase(userRepo, cfg.JWTSecret, clock)
	addressUC := usecase.NewAddressUsecase(addressRepo, clock)

	//courier未割当の注文を拾い直すworker
	reconciler := worker.NewShipmentReconciler(orderRepo, tempRepo, coordinator, clock, cfg.ReconcileInterval, logger)
	reconciler.Start(context.Background())
	defer reconciler.Stop()

	//Handler生成とルート登録
	e := server.New()
	handler.NewAuthHandler(authUC).RegisterRoutes(e)
	handler.NewAddressHandler(addressUC).RegisterRoutes(e, cfg, userRepo)
	handler.NewOrderHandler(orderUC, cancelUC).RegisterRoutes(e, cfg, userRepo)

	//Server起動
	go func() {
		if err := server.Start(e, ":"+cfg.Port); err != nil {
			logger.WithError(err).Info("server stopped")
		}
	}()

	//SIGINT/SIGTERMでgraceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx, e); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
}
