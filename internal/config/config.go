// Package config defines the composed service configuration.
package config

import (
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/internal/session"
	"github.com/rise-and-shine/filevault/internal/worker"
	"github.com/rise-and-shine/filevault/pkg/cfgloader"
	"github.com/rise-and-shine/filevault/pkg/httpserver"
	"github.com/rise-and-shine/filevault/pkg/logger"
	"github.com/rise-and-shine/filevault/pkg/pg"
)

// Config is the root configuration loaded from ./config/${ENVIRONMENT}.yaml.
type Config struct {
	ServiceName    string `yaml:"service_name"    default:"filevault"`
	ServiceVersion string `yaml:"service_version" default:"0.1.0"`

	Logger     logger.Config     `yaml:"logger"`
	HTTPServer httpserver.Config `yaml:"http_server"`
	Postgres   pg.Config         `yaml:"postgres"`
	Redis      session.Config    `yaml:"redis"`
	Storage    content.Config    `yaml:"storage"`
	Queue      queue.Config      `yaml:"queue"`
	Worker     worker.Config     `yaml:"worker"`
}

// MustLoad reads and validates the configuration, exiting on failure.
func MustLoad() Config {
	return cfgloader.MustLoad[Config]()
}
