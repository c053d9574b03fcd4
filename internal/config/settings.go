package config

// Settings holds the environment-variable overlay applied on top of the
// config file. It is populated with github.com/sethvargo/go-envconfig via
// envconfig.Process(ctx, &settings).
type Settings struct {
	HTTPPort   int    `env:"GATEWAY_HTTP_PORT, default=8080"`
	HTTPSPort  int    `env:"GATEWAY_HTTPS_PORT, default=4443"`
	AdminToken string `env:"GATEWAY_ADMIN_TOKEN"`
	NodeEnv    string `env:"NODE_ENV, default=production"`
	LogLevel   string `env:"GATEWAY_LOG_LEVEL, default=info"`
	ConfigPath string `env:"GATEWAY_CONFIG_PATH, default=./gatewayd.json"`
}
