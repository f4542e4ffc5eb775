package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/leafbook/internal/application/account"
	"github.com/leafbook/internal/application/book"
	"github.com/leafbook/internal/application/category"
	"github.com/leafbook/internal/application/media"
	"github.com/leafbook/internal/application/review"
	"github.com/leafbook/internal/application/session"
	"github.com/leafbook/internal/application/signup"
	"github.com/leafbook/internal/config"
	"github.com/leafbook/internal/domain"
	"github.com/leafbook/internal/transport/http/handler"
	appmiddleware "github.com/leafbook/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.TrustedRealIP(cfg.TrustedProxies))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	optionalAuthMw := appmiddleware.OptionalAuth(deps.JWTProvider)

	// 5 requests/second, burst of 10. Applied to signup, passcode and credential endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	cookies := handler.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.JWTExpiry,
		PendingTTL: cfg.PendingTokenTTL,
	}

	sessionSvc := session.NewService(session.ServiceDeps{
		AccountRepo:     deps.AccountRepo,
		SessionRepo:     deps.SessionRepo,
		JWTProvider:     deps.JWTProvider,
		GoogleVerifier:  newGoogleTokens(deps.Google),
		RefreshTokenDur: cfg.RefreshTokenExpiry,
	})
	signupSvc := signup.NewService(signup.ServiceDeps{
		AccountRepo:   deps.AccountRepo,
		PasscodeRepo:  deps.PasscodeRepo,
		Gate:          deps.BotGate,
		Mailer:        deps.Mailer,
		PendingTokens: deps.JWTProvider,
		Sessions:      sessionSvc,
		ProductName:   cfg.ProductName,
		PublicBaseURL: cfg.PublicBaseURL,
		PasscodeTTL:   cfg.OTPTTL,
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: deps.AccountRepo,
		SessionRepo: deps.SessionRepo,
	})
	categorySvc := category.NewService(deps.CategoryRepo)
	mediaSvc := media.NewService(deps.S3Store)
	bookSvc := book.NewService(book.ServiceDeps{
		BookRepo:     deps.BookRepo,
		LeafRepo:     deps.LeafRepo,
		SavedRepo:    deps.SavedBookRepo,
		CategoryRepo: deps.CategoryRepo,
		ReviewRepo:   deps.ReviewRepo,
		Media:        mediaSvc,
	})
	reviewSvc := review.NewService(deps.ReviewRepo, deps.BookRepo)

	healthH := handler.NewHealthHandler()
	signupH := handler.NewSignupHandler(signupSvc, handler.SignupConfig{
		RecaptchaSiteKey: cfg.RecaptchaSiteKey,
		RecaptchaAction:  cfg.RecaptchaAction,
		AppRootURL:       cfg.AppRootURL,
		Cookies:          cookies,
	})
	sessionH := handler.NewSessionHandler(sessionSvc, cookies)
	accountH := handler.NewAccountHandler(accountSvc)
	categoryH := handler.NewCategoryHandler(categorySvc)
	bookH := handler.NewBookHandler(bookSvc)
	reviewH := handler.NewReviewHandler(reviewSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.Get("/signup", signupH.Form)
		r.With(sensitiveRL.Limit).Post("/signup", signupH.Signup)
		r.With(sensitiveRL.Limit).Get("/signup/verify", signupH.VerifyPage)
		r.With(sensitiveRL.Limit).Post("/signup/verify", signupH.Verify)
		r.With(sensitiveRL.Limit).Post("/signup/resend", signupH.Resend)

		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/google", sessionH.Google)
		r.Post("/sessions/refresh", sessionH.Refresh)

		r.Get("/categories", categoryH.List)
		r.Get("/categories/{id}", categoryH.Get)

		// ── Anonymous or authenticated ───────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(optionalAuthMw)

			r.Get("/books", bookH.List)
			r.Get("/books/{id}", bookH.Get)
			r.Get("/books/{id}/reviews", reviewH.List)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/accounts/me", accountH.Me)
			r.Put("/accounts/me", accountH.UpdateMe)
			r.With(sensitiveRL.Limit).Post("/accounts/me/password", accountH.ChangePassword)

			r.Get("/books/mine", bookH.Mine)
			r.Post("/books", bookH.Create)
			r.Put("/books/{id}", bookH.Update)
			r.Put("/books/{id}/cover", bookH.SetCover)
			r.Post("/books/{id}/save", bookH.ToggleSaved)
			r.Post("/books/{id}/leaves", bookH.CreateLeaf)
			r.Post("/books/{id}/reviews", reviewH.Create)

			r.Put("/leaves/{id}", bookH.UpdateLeaf)
			r.Post("/leaves/{id}/images", bookH.AddLeafImages)
			r.Delete("/leaves/{id}/images/{imageID}", bookH.DeleteLeafImage)
			r.Post("/leaf-editor/upload", bookH.EditorUpload)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Post("/categories", categoryH.Create)
				r.Put("/categories/{id}", categoryH.Update)
				r.Delete("/categories/{id}", categoryH.Delete)
			})
		})
	})

	return r
}
