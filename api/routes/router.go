package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkastler/poolcart-backend/api/controllers"
	"github.com/mkastler/poolcart-backend/api/middleware"
	"github.com/mkastler/poolcart-backend/internal/availability"
	"github.com/mkastler/poolcart-backend/internal/bids"
	"github.com/mkastler/poolcart-backend/internal/export"
	"github.com/mkastler/poolcart-backend/internal/reassignment"
	"github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/shopping"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/config"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	"github.com/mkastler/poolcart-backend/pkg/logger"
	"github.com/mkastler/poolcart-backend/pkg/metrics"
	"github.com/mkastler/poolcart-backend/pkg/redis"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   storage.Store
	Redis   *redis.Client
	Metrics *metrics.HTTPMetrics

	Pingers map[string]controllers.Pinger

	Runs          runs.Service
	Bids          bids.Service
	Shopping      shopping.Service
	Reassignments reassignment.Service
	Availability  availability.Service
	Export        export.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		var idempotencyStore redis.IdempotencyStore
		if deps.Redis != nil {
			idempotencyStore = deps.Redis
		}
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/groups/{groupId}/runs", func(r chi.Router) {
			r.Get("/", controllers.ListGroupRuns(deps.Runs, logg))
		})

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", controllers.CreateRun(deps.Runs, logg))

			r.Route("/{runId}", func(r chi.Router) {
				r.Get("/", controllers.GetRun(deps.Runs, logg))
				r.Post("/transition", controllers.TransitionRun(deps.Runs, logg))
				r.Post("/join", controllers.JoinRun(deps.Runs, logg))
				r.Post("/leave", controllers.LeaveRun(deps.Runs, logg))
				r.Post("/ready", controllers.ToggleReady(deps.Runs, logg))
				r.Patch("/comment", controllers.UpdateRunComment(deps.Runs, logg))
				r.Put("/participants/{userId}/helper", controllers.SetHelper(deps.Runs, logg))

				r.Route("/bids", func(r chi.Router) {
					r.Get("/", controllers.ListRunBids(deps.Bids, logg))
					r.Put("/", controllers.PlaceBid(deps.Bids, logg))
					r.Delete("/{productId}", controllers.RetractBid(deps.Bids, logg))
					r.Post("/{bidId}/pickup", controllers.MarkPickedUp(deps.Shopping, logg))
				})
				r.Get("/products/{productId}/total", controllers.ProductTotal(deps.Bids, logg))

				r.Route("/shopping-list", func(r chi.Router) {
					r.Get("/", controllers.ShoppingList(deps.Shopping, logg))
					r.Route("/{productId}", func(r chi.Router) {
						r.Patch("/requested", controllers.CorrectRequestedQuantity(deps.Shopping, logg))
						r.Post("/purchase", controllers.MarkPurchased(deps.Shopping, logg))
						r.Post("/purchase/add", controllers.AddMorePurchased(deps.Shopping, logg))
						r.Put("/purchase", controllers.UpdateItemPurchase(deps.Shopping, logg))
						r.Delete("/purchase", controllers.UnpurchaseItem(deps.Shopping, logg))
					})
				})
				r.Post("/finish-adjusting", controllers.FinishAdjusting(deps.Shopping, logg))
				r.Get("/distribution", controllers.Distribution(deps.Shopping, logg))
				r.Post("/complete", controllers.CompleteDistribution(deps.Shopping, logg))

				r.Route("/reassignments", func(r chi.Router) {
					r.Post("/", controllers.RequestReassignment(deps.Reassignments, logg))
					r.Get("/", controllers.ReassignmentHistory(deps.Reassignments, logg))
					r.Get("/pending", controllers.PendingReassignment(deps.Reassignments, logg))
					r.Post("/{requestId}/accept", controllers.ResolveReassignment(deps.Reassignments, logg, "accept"))
					r.Post("/{requestId}/decline", controllers.ResolveReassignment(deps.Reassignments, logg, "decline"))
					r.Post("/{requestId}/cancel", controllers.ResolveReassignment(deps.Reassignments, logg, "cancel"))
				})

				r.Get("/breakdown", controllers.RunBreakdown(deps.Export, logg))
				r.Get("/notifications", controllers.RunNotifications(deps.Store, logg))
			})
		})

		r.Post("/availability", controllers.ObservePrice(deps.Availability, logg))
		r.Route("/products/{productId}/stores/{storeId}", func(r chi.Router) {
			r.Get("/price", controllers.CurrentPrice(deps.Availability, logg))
			r.Get("/price/history", controllers.PriceHistory(deps.Availability, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		// Admin mirrors of state repair operations.
		r.Patch("/runs/{runId}/shopping-list/{productId}/requested", controllers.CorrectRequestedQuantity(deps.Shopping, logg))
		r.Get("/runs/{runId}/breakdown", controllers.RunBreakdown(deps.Export, logg))
	})

	return r
}
