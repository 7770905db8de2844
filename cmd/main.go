package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	escrow "p2p_escrow_back"

	"p2p_escrow_back/pkg/handler"
	"p2p_escrow_back/pkg/repository"
	"p2p_escrow_back/pkg/service"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Infoln("Запуск сервера")
	if err := godotenv.Load(); err != nil {
		logrus.Infof("Ошибка инициализации переменных окружения .env: %s \n", err)
	}

	if err := InitConfig(); err != nil {
		logrus.Fatalf("Ошибка (viper) при инициализации конфига .yaml: %s \n", err.Error())
	}
	logrus.Infoln("Конфиг YAML инициализирован")

	db, err := repository.NewPostgresDB(repository.Config{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: os.Getenv("DB_PASS_LOCAL"),
		DBName:   viper.GetString("db.dbname"),
		SSLMode:  viper.GetString("db.sslmode"),
	})
	if err != nil {
		logrus.Fatalf("Ошибка при инициализации базы данных: %s \n", err.Error())
	}
	logrus.Info("База данных подключена")

	if err := repository.ApplySchema(db); err != nil {
		logrus.Fatalf("Ошибка при применении схемы базы данных: %s \n", err.Error())
	}

	repos := repository.NewRepository(db)
	services := service.NewService(repos, loadServiceConfig())
	handlers := handler.NewHandler(services)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go services.DeadlineSweeper.Run(ctx)

	srv := new(escrow.Server)
	if err := srv.Run(os.Getenv("PORT"), handlers.InitRoute()); err != nil {
		logrus.Fatalf("Ошибка при запуске сервера: %s \n", err)
	}
}

func InitConfig() error {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func loadServiceConfig() service.Config {
	cfg := service.DefaultConfig()
	if v := viper.GetInt64("fees.marketplace_percent"); v > 0 {
		cfg.Fees.MarketplacePercent = decimal.NewFromInt(v)
	}
	if v := viper.GetInt64("fees.loader_percent"); v > 0 {
		cfg.Fees.LoaderPercent = decimal.NewFromInt(v)
	}
	if v := viper.GetInt64("fees.receiver_percent"); v > 0 {
		cfg.Fees.ReceiverPercent = decimal.NewFromInt(v)
	}
	if v := viper.GetInt64("fees.cancel_penalty_percent"); v > 0 {
		cfg.Fees.CancelPenalty = decimal.NewFromInt(v)
	}
	if v := viper.GetDuration("orders.auto_release_window"); v > 0 {
		cfg.AutoReleaseWindow = v
	}
	if v := viper.GetDuration("sweeper.interval"); v > 0 {
		cfg.SweepInterval = v
	}
	if v := viper.GetString("twofa.issuer"); v != "" {
		cfg.TOTPIssuer = v
	}
	cfg.CoingeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
	return cfg
}
