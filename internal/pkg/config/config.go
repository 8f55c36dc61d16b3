package config

import (
	"fmt"

	micro "github.com/micro/go-config"
	"github.com/micro/go-config/source/env"
	"github.com/micro/go-config/source/file"
)

// WebserverConfig configuration for the webserver
type WebserverConfig struct {
	Port    string `json:"port"`
	Address string `json:"address"`
}

// SessionConfig configuration for the session
type SessionConfig struct {
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	MaxAge   int    `json:"maxage"`
	HTTPOnly bool   `json:"httponly"`
	Secret   string `json:"secret"`
}

// DbConnection stores connection information for the database
type DbConnection struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Name     string `json:"name"`
	Timeout  string `json:"timeout"`
}

// FluxConfig is the gateway account the proxy drives readers under
type FluxConfig struct {
	APIKey string `json:"apikey"`
	// BaseURL overrides the production gateway, used for sandbox accounts
	BaseURL  string `json:"baseurl"`
	Location string `json:"location"`
}

// HostConfig data structure that represent a valid configuration file
type HostConfig struct {
	Webserver WebserverConfig `json:"webserver"`
	Database  DbConnection    `json:"database"`
	Session   SessionConfig   `json:"session"`
	Flux      FluxConfig      `json:"flux"`
	LogLevel  string          `json:"loglevel"`
}

// ReadApplicationConfig will load the application configuration from known places on the disk or environment
func ReadApplicationConfig(configFile string) (HostConfig, error) {

	conf := micro.NewConfig()
	// Load json file with encoder
	err := conf.Load(
		file.NewSource(file.WithPath(configFile)),
		// allow env overrides,
		// keys can't have _ as this is how it deals with nesting
		env.NewSource(),
	)
	var hostConfiguration HostConfig

	if err != nil {
		return hostConfiguration, err
	}

	errs := validate(conf)
	if len(errs) > 0 {
		return hostConfiguration, errs[0]
	}
	err = conf.Scan(&hostConfiguration)

	return hostConfiguration, err
}

// validate ensure we have some basic validation of the configuration
func validate(myconfig micro.Config) []error {
	required := [4]string{"webserver", "database", "session", "flux"}
	var errs []error

	for _, entry := range required {
		var tmpMap map[string]string
		configValue := myconfig.Get(entry).StringMap(tmpMap)
		if configValue == nil {
			newErr := fmt.Errorf("Config is missing a definition for %s", entry)
			errs = append(errs, newErr)
		}
	}

	return errs
}
