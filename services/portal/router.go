package portal

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vellum/pkg/render"
	"vellum/services/bundle"
	"vellum/services/orcid"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 14 * 24 * time.Hour
	defaultOAuthStateTTL   = 10 * time.Minute
	defaultPresignTTL      = 15 * time.Minute
	defaultMaxUploadSize   = 50 << 20

	defaultPageSize = 20
	maxPageSize     = 100

	usersRegisteredTopic      = "vellum.users.registered"
	usersLoggedInTopic        = "vellum.users.logged_in"
	usersPasswordChangedTopic = "vellum.users.password_changed"
	usersOrcidLinkedTopic     = "vellum.users.orcid_linked"

	submissionsCreatedTopic     = "vellum.submissions.created"
	submissionsUpdatedTopic     = "vellum.submissions.updated"
	submissionsDeletedTopic     = "vellum.submissions.deleted"
	submissionsSubmittedTopic   = "vellum.submissions.submitted"
	submissionsDecidedTopic     = "vellum.submissions.decided"
	submissionsResubmittedTopic = "vellum.submissions.resubmitted"
	submissionsExportedTopic    = "vellum.submissions.exported"

	authorsChangedTopic = "vellum.authors.changed"
	filesAttachedTopic  = "vellum.files.attached"
	filesDeletedTopic   = "vellum.files.deleted"

	extractionRequestedTopic = "vellum.extraction.requested"
)

// Config controls runtime behaviour for the portal handlers.
type Config struct {
	TokenSecret     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	OAuthStateTTL   time.Duration
	PresignTTL      time.Duration
	MaxUploadSize   int64
	FileBucket      string
	AllowedOrigins  []string
	SecureCookies   bool
}

// API wires dependencies, template renderer, and configuration for HTTP handlers.
type API struct {
	store    *Store
	renderer *render.Engine
	config   Config
	tokens   *tokenManager
	refresh  *refreshTokenStore
	states   *stateStore
	orcid    *orcid.Client
	signer   *bundle.Signer
}

// New initialises the API layer with sane defaults applied to the provided
// configuration. The ORCID client and bundle signer may be nil; the
// endpoints that need them answer 503 until they are configured.
func New(store *Store, renderer *render.Engine, orcidClient *orcid.Client, signer *bundle.Signer, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}

	if cfg.TokenSecret == "" {
		cfg.TokenSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if cfg.OAuthStateTTL <= 0 {
		cfg.OAuthStateTTL = defaultOAuthStateTTL
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	if cfg.FileBucket == "" {
		cfg.FileBucket = os.Getenv("S3_BUCKET")
	}
	if cfg.FileBucket == "" {
		return nil, errors.New("file bucket is required")
	}

	tokens, err := newTokenManager(cfg.TokenSecret, cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := newRefreshTokenStore(store.ORM, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &API{
		store:    store,
		renderer: renderer,
		config:   cfg,
		tokens:   tokens,
		refresh:  refresh,
		states:   newStateStore(cfg.OAuthStateTTL),
		orcid:    orcidClient,
		signer:   signer,
	}, nil
}

// Routes constructs the chi router containing all portal endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(100, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP), httprate.WithLimitHandler(rateLimited)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(httprate.Limit(3, time.Hour, httprate.WithKeyFuncs(httprate.KeyByIP), httprate.WithLimitHandler(rateLimited))).
				Post("/register", a.handleRegister)
			r.With(httprate.Limit(5, 15*time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP), httprate.WithLimitHandler(rateLimited))).
				Post("/login", a.handleLogin)
			r.Post("/refresh", a.handleRefresh)
			r.Post("/logout", a.handleLogout)
			r.Get("/orcid/authorize", a.handleOrcidAuthorize)
			r.Post("/orcid/callback", a.handleOrcidCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)

			r.Get("/me", a.handleMe)
			r.Patch("/me", a.handleUpdateMe)
			r.Post("/me/password", a.handleChangePassword)
			r.Get("/me/profile", a.handleGetProfile)
			r.Put("/me/profile", a.handleUpdateProfile)
			r.Delete("/me/orcid", a.handleOrcidDisconnect)

			r.Get("/extractions/{taskID}", a.handleGetExtractionTask)

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", a.handleListSubmissions)
				r.With(a.requireVerified).Post("/", a.handleCreateSubmission)

				r.Route("/{submissionID}", func(r chi.Router) {
					r.Get("/", a.handleGetSubmission)
					r.Patch("/", a.handleUpdateSubmission)
					r.Delete("/", a.handleDeleteSubmission)

					r.With(a.requireVerified).Post("/submit", a.handleSubmitSubmission)
					r.With(a.requireVerified).Post("/resubmit", a.handleResubmit)
					r.With(a.requireRole(RoleEditor)).Post("/decision", a.handleDecideSubmission)
					r.Get("/revisions", a.handleListRevisions)

					r.Get("/receipt", a.handleGetReceipt)
					r.Get("/export", a.handleExportSubmission)
					r.Post("/extractions", a.handleStartExtraction)

					r.Route("/authors", func(r chi.Router) {
						r.Get("/", a.handleListAuthors)
						r.Post("/", a.handleAddAuthor)
						r.Put("/order", a.handleReorderAuthors)
						r.Patch("/{authorID}", a.handleUpdateAuthor)
						r.Delete("/{authorID}", a.handleDeleteAuthor)
					})

					r.Route("/files", func(r chi.Router) {
						r.Get("/", a.handleListFiles)
						r.Post("/presign", a.handlePresignUpload)
						r.Post("/", a.handleAttachFile)
						r.Get("/{fileID}/download", a.handleDownloadFile)
						r.Delete("/{fileID}", a.handleDeleteFile)
					})
				})
			})
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if a.store.DB != nil {
		if err := a.store.DB.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusTooManyRequests, errorEnvelope{
		Error:      true,
		Message:    "Too many requests. Please try again later.",
		StatusCode: http.StatusTooManyRequests,
	})
}
