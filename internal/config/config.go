package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	MercadoPago MercadoPago `envPrefix:"MERCADOPAGO_"`
	Auth        Auth        `envPrefix:"AUTH_"`
	Kafka       Kafka       `envPrefix:"KAFKA_"`
}

type MercadoPago struct {
	BaseApiURL  string `env:"BASE_API_URL" envDefault:"https://api.mercadopago.com"`
	AccessToken string `env:"ACCESS_TOKEN"`
	Descriptor  string `env:"STATEMENT_DESCRIPTOR" envDefault:"AMBOS NORTE"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	Topic   string   `env:"ORDER_EVENTS_TOPIC" envDefault:"order-events"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
