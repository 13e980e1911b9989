package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"holderbot/config"
	"holderbot/internal/domain"
	"holderbot/internal/pricing"
	"holderbot/internal/repository"
	"holderbot/internal/verify"
)

// sender is the slice of *bot.Bot the conversation engine needs. Tests
// substitute a recording fake.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Selection tokens carried in callback data.
const (
	tokenServicePrefix = "svc_"
	tokenPackagePrefix = "pkg_"
	tokenConfirmPay    = "confirm_payment"
	tokenBackServices  = "back_services"
	tokenViewAccount   = "view_account"
	tokenViewReferral  = "view_referral"
)

type Handler struct {
	cfg          *config.Config
	logger       *zap.Logger
	db           *sql.DB
	loyaltyRepo  *repository.LoyaltyRepository
	purchaseRepo *repository.PurchaseRepository
	verifier     *verify.Verifier
	notifier     *Notifier
	feed         *FeedHub

	mu       sync.Mutex
	sessions map[int64]*domain.Session
}

func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	loyaltyRepo *repository.LoyaltyRepository,
	purchaseRepo *repository.PurchaseRepository,
	verifier *verify.Verifier,
	notifier *Notifier,
	feed *FeedHub,
) *Handler {
	return &Handler{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		loyaltyRepo:  loyaltyRepo,
		purchaseRepo: purchaseRepo,
		verifier:     verifier,
		notifier:     notifier,
		feed:         feed,
		sessions:     make(map[int64]*domain.Session),
	}
}

func (h *Handler) session(userID int64) *domain.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[userID]
}

func (h *Handler) resetSession(userID int64) *domain.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old := h.sessions[userID]; old != nil && old.CancelVerify != nil {
		old.CancelVerify()
	}
	sess := domain.NewSession()
	h.sessions[userID] = sess
	return sess
}

func (h *Handler) dropSession(userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, userID)
}

func (h *Handler) pricingParams() pricing.Params {
	return pricing.Params{
		UnlockedDiscountBps:    h.cfg.UnlockedDiscountBps,
		RedemptionRateLamports: h.cfg.RedemptionRateLamports,
		RedemptionCapBps:       h.cfg.RedemptionCapBps,
	}
}

// DefaultHandler receives every Telegram update.
func (h *Handler) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.route(ctx, b, update)
}

func (h *Handler) route(ctx context.Context, b sender, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, b, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		h.handleMessage(ctx, b, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, b sender, msg *models.Message) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/start"))
		h.handleStart(ctx, b, userID, payload)
	case text == "/cancel":
		h.handleCancel(ctx, b, userID)
	case text == "/account":
		h.showAccount(ctx, b, userID)
	default:
		h.handleFreeText(ctx, b, userID, text)
	}
}

func (h *Handler) handleCallback(ctx context.Context, b sender, query *models.CallbackQuery) {
	userID := query.From.ID

	// Always acknowledge so the client stops its spinner.
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		h.logger.Warn("failed to answer callback query", zap.Error(err), zap.Int64("user_id", userID))
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, tokenServicePrefix):
		h.handleServiceChoice(ctx, b, userID, strings.TrimPrefix(data, tokenServicePrefix))
	case strings.HasPrefix(data, tokenPackagePrefix):
		h.handlePackageChoice(ctx, b, userID, strings.TrimPrefix(data, tokenPackagePrefix))
	case data == tokenConfirmPay:
		h.handleConfirmPayment(ctx, b, userID)
	case data == tokenBackServices:
		h.handleBack(ctx, b, userID)
	case data == tokenViewAccount:
		h.showAccount(ctx, b, userID)
	case data == tokenViewReferral:
		h.showReferral(ctx, b, userID)
	default:
		// Unrecognized tokens are redirected to the top-level menu,
		// never a fault.
		h.logger.Info("unrecognized selection token", zap.String("data", data), zap.Int64("user_id", userID))
		h.sendServiceMenu(ctx, b, userID, "Please choose one of the options below.")
	}
}

// parseReferralPayload extracts the referrer ID from a deep-link payload of
// the form "ref_<id>".
func parseReferralPayload(payload string) (int64, bool) {
	if !strings.HasPrefix(payload, "ref_") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
