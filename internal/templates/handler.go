package templates

import (
	"herald/internal/config_handler"
	"herald/internal/logger"
	"herald/pkg/models"
)

type Handler = config_handler.Handler

func NewHandler(service *Service, log logger.Logger) *Handler {
	return config_handler.NewHandlerWithReloader(
		models.EventTypeTemplateUpdated,
		models.ServiceTypeDispatch,
		service,
		log,
	)
}
