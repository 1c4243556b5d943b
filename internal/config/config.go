package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Configはアプリ全体の設定
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	//DATABASE_URLがあれば最優先。なければ個別のPOSTGRES_*を組み立てる
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"app"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	//決済ゲートウェイ
	PaymentBaseURL   string `envconfig:"PAYMENT_BASE_URL" default:"https://api.razorpay.com"`
	PaymentKeyID     string `envconfig:"PAYMENT_KEY_ID" required:"true"`
	PaymentKeySecret string `envconfig:"PAYMENT_KEY_SECRET" required:"true"`

	//配送プロバイダ
	ShippingBaseURL        string `envconfig:"SHIPPING_BASE_URL" default:"https://apiv2.shiprocket.in"`
	ShippingEmail          string `envconfig:"SHIPPING_EMAIL" required:"true"`
	ShippingPassword       string `envconfig:"SHIPPING_PASSWORD" required:"true"`
	ShippingPickupLocation string `envconfig:"SHIPPING_PICKUP_LOCATION" default:"Primary"`

	//通知メール。SMTPHostが空なら送信はスキップされる
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM"`

	//放置された決済フローの掃除期限
	TempOrderTTL time.Duration `envconfig:"TEMP_ORDER_TTL" default:"24h"`
	//配送リトライworkerの間隔
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`

	GoEnv string `envconfig:"GO_ENV" default:"dev"`
}

// Loadは環境変数から設定を読む
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	if cfg.TempOrderTTL <= 0 {
		return Config{}, fmt.Errorf("TEMP_ORDER_TTL must be positive")
	}
	if cfg.ReconcileInterval <= 0 {
		return Config{}, fmt.Errorf("RECONCILE_INTERVAL must be positive")
	}

	return cfg, nil
}

// DSNはgorm/postgres用の接続文字列を返す
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}
