package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string
	SiteID   string `mapstructure:"site_id"` // ID сайта, от имени которого выполняется выгрузка

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	Redis struct {
		Host              string
		Port              int
		Password          string
		DB                int
		DefaultExpiration time.Duration // срок действия кэша по умолчанию
	}

	Kafka struct {
		Brokers       []string `mapstructure:"brokers"`
		GroupID       string   `mapstructure:"group_id"`
		CommandTopic  string   `mapstructure:"command_topic"`  // топик команд экспорта
		CatalogTopic  string   `mapstructure:"catalog_topic"`  // топик событий каталога
		ResultTopic   string   `mapstructure:"result_topic"`   // топик результатов джобов
	}

	Metrics struct {
		Enabled bool
		Port    int `mapstructure:"port"`
	}

	// Ingest описывает подключение к сервису Brain Commerce
	Ingest struct {
		Enabled   bool          // включена ли выгрузка в Brain Commerce
		BaseURL   string        `mapstructure:"base_url"`
		APIKey    string        `mapstructure:"api_key"`
		Timeout   time.Duration // таймаут одного HTTP вызова
		ChunkSize int           `mapstructure:"chunk_size"` // размер батча записей
	}

	// Export описывает параметры формирования выгружаемых записей
	Export struct {
		ListPriceBookID   string   `mapstructure:"list_price_book_id"`
		ImageViewTypes    []string `mapstructure:"image_view_types"` // порядок выбора изображения
		FaqObjectID       string   `mapstructure:"faq_object_id"`
		StorefrontBaseURL string   `mapstructure:"storefront_base_url"`
		DefaultCurrency   string   `mapstructure:"default_currency"`
	}

	// SDK описывает настройки клиентского сниппета Brain Commerce
	SDK struct {
		URL        string `mapstructure:"url"`
		APIBaseURL string `mapstructure:"api_base_url"`
		APIKey     string `mapstructure:"api_key"`
	}

	Security struct {
		AdminAPIKey      string   `mapstructure:"admin_api_key"` // ключ доступа к админ-эндпоинтам
		CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	}

	Resilience struct {
		CircuitTimeout  time.Duration // таймаут для размыкания цепи
		HalfOpenMaxReqs int           // макс. запросов в полуоткрытом состоянии
		TripThreshold   int           // порог последовательных ошибок для размыкания
	}
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	var cfg Config

	// Настройка Viper
	viper.SetConfigName(configFile)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("../../config")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Чтение конфигурационного файла
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	// Установка значений по умолчанию
	setDefaults()

	// Привязка переменных окружения
	bindEnvVariables()

	// Чтение конфигурации в структуру
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	// Получаем окружение
	cfg.ENV = viper.GetString("env")
	if cfg.ENV == "" {
		cfg.ENV = "development"
		if envVar := os.Getenv("APP_ENV"); envVar != "" {
			cfg.ENV = envVar
		}
	}

	return &cfg, nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults() {
	// Основные настройки
	viper.SetDefault("appName", "brain-commerce-export")
	viper.SetDefault("version", "1.0.0")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("env", "development")
	viper.SetDefault("site_id", "default")

	// Настройки сервера
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.writeTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	// Настройки Postgres
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")
	viper.SetDefault("postgres.dbname", "postgres")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.timeout", "5s")
	viper.SetDefault("postgres.poolSize", 10)

	// Настройки Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.defaultExpiration", "10m")

	// Настройки Kafka
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "brain-commerce-export")
	viper.SetDefault("kafka.command_topic", "export-commands")
	viper.SetDefault("kafka.catalog_topic", "catalog-events")
	viper.SetDefault("kafka.result_topic", "export-results")

	// Настройки метрик
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Настройки Brain Commerce
	viper.SetDefault("ingest.enabled", false)
	viper.SetDefault("ingest.base_url", "")
	viper.SetDefault("ingest.api_key", "")
	viper.SetDefault("ingest.timeout", "30s")
	viper.SetDefault("ingest.chunk_size", 100)

	// Настройки выгрузки
	viper.SetDefault("export.list_price_book_id", "")
	viper.SetDefault("export.image_view_types", []string{"large", "medium", "small"})
	viper.SetDefault("export.faq_object_id", "brain_commerce_faq_list")
	viper.SetDefault("export.storefront_base_url", "")
	viper.SetDefault("export.default_currency", "USD")

	// Настройки SDK сниппета
	viper.SetDefault("sdk.url", "")
	viper.SetDefault("sdk.api_base_url", "")
	viper.SetDefault("sdk.api_key", "")

	// Настройки безопасности
	viper.SetDefault("security.admin_api_key", "")
	viper.SetDefault("security.cors_allow_origins", []string{"*"})

	// Настройки устойчивости
	viper.SetDefault("resilience.circuitTimeout", "60s")
	viper.SetDefault("resilience.halfOpenMaxReqs", 1)
	viper.SetDefault("resilience.tripThreshold", 5)
}

// bindEnvVariables привязывает переменные окружения к ключам конфигурации
func bindEnvVariables() {
	_ = viper.BindEnv("site_id", "SITE_ID")
	_ = viper.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = viper.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = viper.BindEnv("postgres.user", "POSTGRES_USER")
	_ = viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("postgres.dbname", "POSTGRES_DB")
	_ = viper.BindEnv("redis.host", "REDIS_HOST")
	_ = viper.BindEnv("redis.port", "REDIS_PORT")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = viper.BindEnv("ingest.enabled", "INGEST_ENABLED")
	_ = viper.BindEnv("ingest.base_url", "INGEST_BASE_URL")
	_ = viper.BindEnv("ingest.api_key", "INGEST_API_KEY")
	_ = viper.BindEnv("sdk.api_key", "SDK_API_KEY")
	_ = viper.BindEnv("security.admin_api_key", "ADMIN_API_KEY")
}
