package handler

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"holderbot/internal/domain"
)

// showAccount renders the loyalty summary. Reachable from SelectingService
// and via /account; the flow returns to the service menu afterwards.
func (h *Handler) showAccount(ctx context.Context, b sender, userID int64) {
	if sess := h.session(userID); sess != nil && sess.State == domain.StateSelectingService {
		sess.State = domain.StateViewingAccount
	}

	acct, err := h.loyaltyRepo.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load loyalty account", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, userID, "⚠️ Couldn't load your account right now. Please try again.", nil)
		return
	}

	status := "locked"
	if acct.DiscountUnlocked {
		status = "unlocked, 10% off every purchase 🎉"
	}

	lastPurchase := "none yet"
	if acct.LastPurchaseAt != nil {
		lastPurchase = acct.LastPurchaseAt.Format("2006-01-02 15:04 UTC")
	}

	text := fmt.Sprintf(
		"👤 Your account\n\n"+
			"💰 Points: %d\n"+
			"🤝 Referrals: %d\n"+
			"💵 Total spent: %s SOL\n"+
			"🛒 Last purchase: %s\n"+
			"💚 Loyalty discount: %s\n\n"+
			"Points are worth %s SOL each and can cover up to half of any package.",
		acct.Points, acct.Referrals, formatSOL(acct.TotalSpentLamports),
		lastPurchase, status, formatSOL(h.cfg.RedemptionRateLamports))

	h.sendAndReturnToMenu(ctx, b, userID, text)
}

// showReferral renders the user's referral link and terms.
func (h *Handler) showReferral(ctx context.Context, b sender, userID int64) {
	if sess := h.session(userID); sess != nil && sess.State == domain.StateSelectingService {
		sess.State = domain.StateViewingReferral
	}

	acct, err := h.loyaltyRepo.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load loyalty account", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, userID, "⚠️ Couldn't load your referral data right now. Please try again.", nil)
		return
	}

	text := fmt.Sprintf(
		"🤝 Invite friends, earn points\n\n"+
			"Your link:\nhttps://t.me/%s?start=ref_%d\n\n"+
			"Each new user who joins through it gives you %d points and counts toward "+
			"your loyalty discount (unlocked at %d referrals). They get %d welcome points.\n\n"+
			"Referrals so far: %d",
		h.cfg.BotUsername, userID,
		h.cfg.ReferralBonusPoints, h.cfg.UnlockReferrals, h.cfg.WelcomeBonusPoints,
		acct.Referrals)

	h.sendAndReturnToMenu(ctx, b, userID, text)
}

// sendAndReturnToMenu shows an auxiliary view and drops the session back to
// SelectingService.
func (h *Handler) sendAndReturnToMenu(ctx context.Context, b sender, userID int64, text string) {
	if sess := h.session(userID); sess != nil &&
		(sess.State == domain.StateViewingAccount || sess.State == domain.StateViewingReferral) {
		sess.State = domain.StateSelectingService
	}

	var rows [][]models.InlineKeyboardButton
	for _, svc := range domain.Catalog {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: svc.Label, CallbackData: tokenServicePrefix + svc.Key},
		})
	}

	h.send(ctx, b, userID, text, &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}
