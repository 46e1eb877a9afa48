package monitoring

import (
	"github.com/akeren/waitlist-api/config/router"
	"github.com/akeren/waitlist-api/internal/log"
	"gorm.io/gorm"
)

type MonitoringControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultMonitoringControllerFactory struct {
	db               *gorm.DB
	logger           *log.Logger
	cache            Cache
	mailerConfigured bool
}

func NewMonitoringControllerFactory(db *gorm.DB, logger *log.Logger, cache Cache, mailerConfigured bool) MonitoringControllerFactory {
	return &DefaultMonitoringControllerFactory{
		db:               db,
		logger:           logger,
		cache:            cache,
		mailerConfigured: mailerConfigured,
	}
}

func (f *DefaultMonitoringControllerFactory) CreateController() *router.RESTController {
	return NewMonitoringController(f.db, f.logger, f.cache, f.mailerConfigured)
}
