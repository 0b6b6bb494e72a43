package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/doctorautoprime/oficina/internal/config"
	httpmiddleware "github.com/doctorautoprime/oficina/internal/http/middleware"
	"github.com/doctorautoprime/oficina/internal/kommo"
	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/sync"
	"github.com/doctorautoprime/oficina/internal/telegram"
	"github.com/doctorautoprime/oficina/internal/trello"
)

// Syncer é o motor de sincronização visto pelos handlers.
type Syncer interface {
	SyncAll(ctx context.Context) (sync.Result, error)
	SyncOne(ctx context.Context, cardID string) error
}

// Store é a visão de leitura/auditoria do pátio usada pelos handlers. As
// escritas de estado de card continuam exclusivas do motor de sincronização;
// aqui só entram histórico, soft-delete e consultas.
type Store interface {
	GetCard(ctx context.Context, id string) (*patio.Card, error)
	ListCards(ctx context.Context, filter patio.CardFilter) ([]patio.Card, error)
	SoftDeleteCard(ctx context.Context, id string) error
	AppendHistory(ctx context.Context, entry patio.HistoryEntry) error
	ListHistory(ctx context.Context, cardID string) ([]patio.HistoryEntry, error)
	StageDurations(ctx context.Context, cardID string) ([]patio.StageDuration, error)
}

// LeadService é a integração Kommo vista pelos handlers.
type LeadService interface {
	ProcessLeads(ctx context.Context, leads []kommo.InboundLead) (int, []string)
	CompleteLead(ctx context.Context, leadID int64) error
	LinkOrder(ctx context.Context, orderID string, leadID int64) (*kommo.OrderMapping, error)
	Unlink(ctx context.Context, leadID int64) error
}

// WebhookAdmin gerencia assinaturas de webhook no Trello.
type WebhookAdmin interface {
	CreateWebhook(ctx context.Context, callbackURL, description string) (*trello.Webhook, error)
	ListWebhooks(ctx context.Context) ([]trello.Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
}

// BoardWriter é a escrita de volta no board, usada pelas edições feitas no
// dashboard. O board continua sendo a fonte de verdade: toda escrita é
// seguida de uma sincronização do card.
type BoardWriter interface {
	UpdateCard(ctx context.Context, cardID string, changes trello.CardChanges) error
	MoveCard(ctx context.Context, cardID, listID string) error
	DeleteCard(ctx context.Context, cardID string) error
	AddComment(ctx context.Context, cardID, text string) error
	SetCustomFieldByName(ctx context.Context, cardID, fieldName, value string) error
}

// Handler concentra as dependências dos endpoints HTTP.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	store         Store
	syncer        Syncer
	scheduler     *sync.Scheduler
	leads         LeadService
	notifier      telegram.Notifier
	webhooks      WebhookAdmin
	board         BoardWriter
	publicLimiter *httpmiddleware.RateLimiter
}

// NewHandler monta o conjunto de handlers da API.
func NewHandler(cfg *config.Config, pool *pgxpool.Pool, store Store, syncer Syncer, scheduler *sync.Scheduler, leads LeadService, notifier telegram.Notifier, webhooks WebhookAdmin, board BoardWriter) *Handler {
	return &Handler{
		cfg:           cfg,
		pool:          pool,
		store:         store,
		syncer:        syncer,
		scheduler:     scheduler,
		leads:         leads,
		notifier:      notifier,
		webhooks:      webhooks,
		board:         board,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
	}
}

// Routes devolve o roteador configurado.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(h.cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/webhook", func(wh chi.Router) {
			wh.Head("/trello", h.TrelloWebhookHandshake)
			wh.Post("/trello", h.TrelloWebhook)
			wh.Post("/kommo", h.KommoWebhook)
		})
	})

	r.Route("/patio", func(p chi.Router) {
		p.Get("/cards", h.ListCards)
		p.Get("/cards/{id}", h.GetCard)
		p.Patch("/cards/{id}", h.UpdateCard)
		p.Delete("/cards/{id}", h.DeleteCard)
		p.Post("/cards/{id}/comments", h.AddCardComment)
		p.Get("/cards/{id}/history", h.CardHistory)
		p.Get("/cards/{id}/stages", h.CardStages)
		p.Get("/stats", h.PatioStats)
	})

	r.Route("/sync", func(s chi.Router) {
		s.Post("/run", h.RunSync)
		s.Get("/status", h.SyncStatus)
	})

	r.Route("/kommo", func(k chi.Router) {
		k.Post("/orders", h.LinkOrder)
		k.Delete("/leads/{id}/order", h.UnlinkLead)
	})

	r.Route("/trello/webhooks", func(t chi.Router) {
		t.Get("/", h.ListTrelloWebhooks)
		t.Post("/", h.CreateTrelloWebhook)
		t.Delete("/{id}", h.DeleteTrelloWebhook)
	})

	return r
}

// Health responde verificação simples de vida.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready verifica conectividade com o banco.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "banco indisponível", nil)
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
