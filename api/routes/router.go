package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/libris-app/libris-backend/api/controllers"
	"github.com/libris-app/libris-backend/api/middleware"
	authsvc "github.com/libris-app/libris-backend/internal/auth"
	"github.com/libris-app/libris-backend/internal/booklookup"
	catalogsvc "github.com/libris-app/libris-backend/internal/catalog"
	membersvc "github.com/libris-app/libris-backend/internal/members"
	recommendsvc "github.com/libris-app/libris-backend/internal/recommend"
	rentalsvc "github.com/libris-app/libris-backend/internal/rentals"
	reservationsvc "github.com/libris-app/libris-backend/internal/reservations"
	"github.com/libris-app/libris-backend/pkg/config"
	"github.com/libris-app/libris-backend/pkg/db"
	"github.com/libris-app/libris-backend/pkg/enums"
	"github.com/libris-app/libris-backend/pkg/logger"
	"github.com/libris-app/libris-backend/pkg/redis"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config             *config.Config
	Logger             *logger.Logger
	DBPinger           db.Pinger
	RedisClient        *redis.Client
	SessionChecker     middleware.SessionChecker
	AuthService        authsvc.Service
	CatalogService     catalogsvc.Service
	MemberService      membersvc.Service
	RentalService      rentalsvc.Service
	ReservationService reservationsvc.Service
	LookupService      booklookup.Service
	RecommendService   recommendsvc.Service
}

// NewRouter builds the chi handler for the whole API.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DBPinger, p.RedisClient))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.RedisClient, logg)).Post("/login", controllers.Login(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.RedisClient, logg)).Post("/register", controllers.Register(p.AuthService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Post("/auth/logout", controllers.Logout(p.AuthService, logg))
		r.Get("/auth/me", controllers.Me(p.AuthService, logg))

		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.ListBooks(p.CatalogService, logg))
			r.Get("/search", controllers.SearchBooks(p.CatalogService, logg))
			r.Get("/{id}", controllers.GetBook(p.CatalogService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Post("/", controllers.CreateBook(p.CatalogService, logg))
				r.Patch("/{id}", controllers.UpdateBook(p.CatalogService, logg))
				r.Delete("/{id}", controllers.DeleteBook(p.CatalogService, logg))
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Get("/", controllers.ListUsers(p.MemberService, logg))
			r.Post("/", controllers.CreateUser(p.MemberService, logg))
			r.Get("/{id}", controllers.GetUser(p.MemberService, logg))
			r.Patch("/{id}", controllers.UpdateUser(p.MemberService, logg))
			r.Delete("/{id}", controllers.DeactivateUser(p.MemberService, logg))
		})

		r.Route("/rentals", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
			r.Get("/", controllers.ListRentals(p.RentalService, logg))
			r.Post("/", controllers.CheckoutRental(p.RentalService, logg))
			r.Get("/active", controllers.ListActiveRentals(p.RentalService, logg))
			r.Get("/overdue", controllers.ListOverdueRentals(p.RentalService, logg))
			r.Get("/stats", controllers.RentalStats(p.RentalService, logg))
			r.Get("/most-rented", controllers.MostRentedBooks(p.RentalService, logg))
			r.Get("/{id}", controllers.GetRental(p.RentalService, logg))
			r.Put("/{id}/return", controllers.ReturnRental(p.RentalService, logg))
			r.Patch("/{id}/extend", controllers.ExtendRental(p.RentalService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/my", controllers.ListMyReservations(p.ReservationService, logg))
			r.Post("/", controllers.CreateReservation(p.ReservationService, logg))
			r.Put("/{id}/cancel", controllers.CancelReservation(p.ReservationService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
				r.Get("/", controllers.ListReservations(p.ReservationService, logg))
				r.Get("/pending", controllers.ListPendingReservations(p.ReservationService, logg))
				r.Get("/approved", controllers.ListApprovedReservations(p.ReservationService, logg))
				r.Get("/stats", controllers.ReservationStats(p.ReservationService, logg))
				r.Get("/{id}", controllers.GetReservation(p.ReservationService, logg))
				r.Put("/{id}/approve", controllers.ApproveReservation(p.ReservationService, logg))
				r.Put("/{id}/reject", controllers.RejectReservation(p.ReservationService, logg))
				r.Post("/{id}/convert", controllers.ConvertReservation(p.ReservationService, logg))
			})
		})

		r.Route("/lookup", func(r chi.Router) {
			r.Get("/search", controllers.LookupSearch(p.LookupService, logg))
			r.Get("/isbn/{isbn}", controllers.LookupByISBN(p.LookupService, logg))
			r.Get("/volumes/{id}", controllers.LookupVolume(p.LookupService, logg))
		})

		r.Route("/recommend", func(r chi.Router) {
			r.Post("/chat", controllers.RecommendChat(p.RecommendService, logg))
			r.Get("/welcome", controllers.RecommendWelcome(p.RecommendService, logg))
			r.Get("/quick-replies", controllers.RecommendQuickReplies(p.RecommendService, logg))
		})
	})

	return r
}
