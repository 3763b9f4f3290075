package app

import "github.com/charlesng35/jobboard/pkg/logger"

// ServiceName tags every log entry written by the server.
const ServiceName = "jobboard"

// ConfigureLogging installs the global logger described by the server
// settings. Unknown levels or formats are configuration errors.
func ConfigureLogging(cfg ServerConfig) error {
	return logger.InitWithOptions(logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: ServiceName,
	})
}
