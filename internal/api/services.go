package api

import (
	"evalgo.org/mdm/internal/auth"
	"evalgo.org/mdm/internal/catalog"
	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/integrity"
	"evalgo.org/mdm/internal/localization"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/registry"
	"evalgo.org/mdm/internal/relationship"
	"evalgo.org/mdm/internal/storage"
)

// Services bundles the domain services the HTTP layer calls.
type Services struct {
	Storage       *storage.Storage
	Registry      *registry.Service
	Localization  *localization.Service
	History       *history.Service
	Catalog       *catalog.Service
	Relationships *relationship.Service
	Integrity     *integrity.Service
	Auth          *auth.Service
	AuthMW        *auth.Middleware
	Metrics       *metrics.Metrics
}

// BuildServices wires every domain service on top of store. Registry
// options add the optional Redis cache.
func BuildServices(cfg *config.Config, store *storage.Storage, m *metrics.Metrics, regOpts ...registry.Option) *Services {
	regOpts = append([]registry.Option{registry.WithMetrics(m)}, regOpts...)
	reg := registry.NewService(store, regOpts...)
	loc := localization.NewService(store, cfg.Catalog.DefaultLanguage)
	hist := history.NewService(store, reg, m, cfg.Catalog.HistoryDefaultLimit)
	cat := catalog.New(store, loc, hist, m)

	jwtService := auth.NewJWTService(cfg.Security)
	versions := auth.NewPermissionVersionService(store)

	return &Services{
		Storage:       store,
		Registry:      reg,
		Localization:  loc,
		History:       hist,
		Catalog:       cat,
		Relationships: relationship.NewService(store, m),
		Integrity:     integrity.NewService(cat),
		Auth:          auth.NewService(store, jwtService, versions),
		AuthMW:        auth.NewMiddleware(cfg.Security, jwtService, versions),
		Metrics:       m,
	}
}
