package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shepherd/internal/dedupe"
	"github.com/dukerupert/shepherd/internal/email"
	"github.com/dukerupert/shepherd/internal/extraction"
	"github.com/dukerupert/shepherd/internal/handler"
	"github.com/dukerupert/shepherd/internal/middleware"
	"github.com/dukerupert/shepherd/internal/push"
	"github.com/dukerupert/shepherd/internal/storage"
	"github.com/dukerupert/shepherd/internal/store"
	"github.com/dukerupert/shepherd/internal/triage"
	ws "github.com/dukerupert/shepherd/internal/websocket"
)

// Config carries everything the server needs beyond the database
// handle. Optional integrations (S3, Postmark, push) degrade to no-ops
// when their fields are empty.
type Config struct {
	BaseURL         string
	ScanSecret      []byte
	ScanTokenTTL    time.Duration
	ExtractionURL   string
	ExtractionKey   string
	PostmarkToken   string
	FromEmail       string
	S3              storage.S3Config
	PhotoPassphrase string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	TaxonomyPath    string
}

type Server struct {
	db               *sql.DB
	hub              *ws.Hub
	authH            *handler.AuthHandler
	batchH           *handler.BatchHandler
	cardH            *handler.CardHandler
	prayerH          *handler.PrayerHandler
	scanH            *handler.ScanHandler
	orgH             *handler.OrgHandler
	pushH            *handler.PushHandler
	sessionStore     *store.SessionStore
	userStore        *store.UserStore
	orgStore         *store.OrgStore
	magicLinkStore   *store.MagicLinkStore
	scanSessionStore *store.ScanSessionStore
	rateLimiter      *middleware.RateLimiter
	scanSecret       []byte
	logger           *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	orgStore := store.NewOrgStore(db)
	sessionStore := store.NewSessionStore(db)
	magicLinkStore := store.NewMagicLinkStore(db)
	scanSessionStore := store.NewScanSessionStore(db)
	batchStore := store.NewBatchStore(db)
	cardStore := store.NewCardStore(db)
	pushStore := store.NewPushStore(db)

	taxonomy, err := triage.LoadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	classifier := triage.NewClassifier(taxonomy)

	matcher := dedupe.NewMatcher(cardStore)
	extractor := extraction.NewClient(cfg.ExtractionURL, cfg.ExtractionKey)
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.BaseURL)
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	photos := storage.NewPhotoStore(cfg.S3, cfg.PhotoPassphrase, logger.With("component", "photos"))

	return &Server{
		db:               db,
		hub:              hub,
		authH:            handler.NewAuthHandler(userStore, orgStore, sessionStore, magicLinkStore, emailClient, logger),
		batchH:           handler.NewBatchHandler(batchStore, cardStore, orgStore, photos, hub, logger),
		cardH:            handler.NewCardHandler(cardStore, batchStore, orgStore, matcher, extractor, photos, hub, logger),
		prayerH:          handler.NewPrayerHandler(cardStore, userStore, orgStore, pushStore, classifier, pushSvc, emailClient, hub, logger),
		scanH:            handler.NewScanHandler(scanSessionStore, cfg.ScanSecret, cfg.BaseURL, cfg.ScanTokenTTL, logger),
		orgH:             handler.NewOrgHandler(orgStore, userStore, photos, logger),
		pushH:            handler.NewPushHandler(pushStore, pushSvc, logger),
		sessionStore:     sessionStore,
		userStore:        userStore,
		orgStore:         orgStore,
		magicLinkStore:   magicLinkStore,
		scanSessionStore: scanSessionStore,
		rateLimiter:      middleware.NewRateLimiter(),
		scanSecret:       cfg.ScanSecret,
		logger:           logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// MagicLinkStore returns the magic link store for cleanup tasks.
func (s *Server) MagicLinkStore() *store.MagicLinkStore {
	return s.magicLinkStore
}

// ScanSessionStore returns the scan session store for cleanup tasks.
func (s *Server) ScanSessionStore() *store.ScanSessionStore {
	return s.scanSessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("GET /scan", s.scanH.Claim)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Card submission accepts either a staff session or a signed scan
	// cookie; it is the only route a scan-session phone may hit.
	scanAuth := middleware.RequireScanAuth(s.sessionStore, s.userStore, s.orgStore, s.scanSecret)
	outerMux.Handle("POST /api/cards", scanAuth(http.HandlerFunc(s.cardH.Scan)))

	// Everything else requires a full session.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore, s.orgStore)
	outerMux.Handle("/", authMiddleware(middleware.BlockScanOnly(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, middleware.AuthRateLimit, middleware.AuthRateWindow)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)

	// Batch lifecycle
	mux.HandleFunc("GET /api/batches/active", s.batchH.Active)
	mux.HandleFunc("GET /api/batches", s.batchH.List)
	mux.HandleFunc("GET /api/batches/{id}/cards", s.batchH.Cards)
	mux.HandleFunc("POST /api/batches/{id}/complete", s.batchH.Complete)
	mux.HandleFunc("POST /api/batches/start-new", s.batchH.StartNew)
	mux.HandleFunc("DELETE /api/batches/{id}", s.batchH.Delete)

	// Cards
	mux.HandleFunc("POST /api/cards/check-duplicate", s.cardH.CheckDuplicate)
	mux.HandleFunc("GET /api/cards", s.cardH.List)
	mux.HandleFunc("GET /api/cards/{id}", s.cardH.Get)
	mux.HandleFunc("PUT /api/cards/{id}", s.cardH.Update)
	mux.HandleFunc("POST /api/cards/{id}/review", s.cardH.Review)
	mux.HandleFunc("DELETE /api/cards/{id}", s.cardH.Delete)
	mux.HandleFunc("GET /api/cards/{id}/photo", s.cardH.Photo)

	// Prayer triage
	mux.HandleFunc("GET /api/prayer/queue", s.prayerH.Queue)
	mux.HandleFunc("POST /api/prayer/{id}/assign", s.prayerH.Assign)
	mux.HandleFunc("PUT /api/prayer/{id}/status", s.prayerH.UpdateStatus)

	// Scan session issuance (the claim side is public)
	mux.HandleFunc("POST /api/scan/token", s.scanH.Issue)
	mux.Handle("POST /api/scan/cleanup", middleware.RequireAdmin(http.HandlerFunc(s.scanH.Cleanup)))

	// Organization
	mux.HandleFunc("GET /api/locations", s.orgH.ListLocations)
	mux.Handle("POST /api/locations", middleware.RequireAdmin(http.HandlerFunc(s.orgH.CreateLocation)))
	mux.Handle("GET /api/members", middleware.RequireManageUsers(http.HandlerFunc(s.orgH.ListMembers)))
	mux.Handle("PUT /api/members/{id}/roles", middleware.RequireManageUsers(http.HandlerFunc(s.orgH.UpdateRoles)))
	mux.HandleFunc("POST /api/admin/orgs/purge", s.orgH.Purge)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger))
}
