package handler

import (
	"log/slog"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
)

// Resources returns a handler for every content collection, in the order
// of model.Collections.
func Resources(store *config.Store, logger *slog.Logger, m *metrics.Manager) []Resource {
	return []Resource{
		NewContentHandler[model.Cause](model.CollectionCauses, store, logger, Hooks[*model.Cause]{}),
		NewContentHandler[model.Event](model.CollectionEvents, store, logger, Hooks[*model.Event]{}),
		NewContentHandler[model.Blog](model.CollectionBlogs, store, logger, Hooks[*model.Blog]{}),
		NewContentHandler[model.Donation](model.CollectionDonations, store, logger, DonationHooks(m)),
		NewContentHandler[model.Volunteer](model.CollectionVolunteers, store, logger, Hooks[*model.Volunteer]{}),
		NewContentHandler[model.Contact](model.CollectionContacts, store, logger, Hooks[*model.Contact]{}),
	}
}
