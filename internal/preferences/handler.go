package preferences

import (
	"herald/internal/config_handler"
	"herald/internal/logger"
	"herald/pkg/models"
)

type Handler = config_handler.Handler

func NewHandler(cache *CachedRepository, log logger.Logger) *Handler {
	return config_handler.NewHandlerWithInvalidator(
		models.EventTypePreferenceUpdated,
		models.ServiceTypeDispatch,
		cache,
		log,
	)
}
