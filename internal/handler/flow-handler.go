package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"holderbot/internal/domain"
	"holderbot/internal/pricing"
	"holderbot/internal/repository"
)

// formatSOL renders a lamport amount as a SOL decimal without trailing
// zeros.
func formatSOL(lamports int64) string {
	return strconv.FormatFloat(float64(lamports)/float64(domain.LamportsPerSOL), 'f', -1, 64)
}

func (h *Handler) send(ctx context.Context, b sender, userID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: userID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("failed to send message", zap.Error(err), zap.Int64("user_id", userID))
	}
}

// handleStart resets the conversation and, on first contact through a
// referral link, awards the one-time bonuses.
func (h *Handler) handleStart(ctx context.Context, b sender, userID int64, payload string) {
	if referrerID, ok := parseReferralPayload(payload); ok {
		h.redeemReferral(ctx, b, userID, referrerID)
	}

	h.resetSession(userID)
	h.sendServiceMenu(ctx, b, userID,
		"👋 Welcome to HolderBoost!\n\n"+
			"I can help you grow your Solana token. Choose a service to get started.")
}

func (h *Handler) redeemReferral(ctx context.Context, b sender, userID, referrerID int64) {
	ok, err := h.loyaltyRepo.RedeemReferral(ctx, userID, referrerID)
	if err != nil {
		h.logger.Error("referral redemption failed", zap.Error(err),
			zap.Int64("user_id", userID), zap.Int64("referrer_id", referrerID))
		return
	}
	if !ok {
		return
	}

	if _, err := h.loyaltyRepo.Apply(ctx, referrerID, repository.ApplyDelta{
		ReferralOccurred: true,
		PointsEarned:     h.cfg.ReferralBonusPoints,
	}); err != nil {
		h.logger.Error("failed to credit referrer", zap.Error(err), zap.Int64("referrer_id", referrerID))
	}
	if _, err := h.loyaltyRepo.Apply(ctx, userID, repository.ApplyDelta{
		PointsEarned: h.cfg.WelcomeBonusPoints,
	}); err != nil {
		h.logger.Error("failed to credit referred user", zap.Error(err), zap.Int64("user_id", userID))
	}

	h.logger.Info("referral redeemed",
		zap.Int64("user_id", userID),
		zap.Int64("referrer_id", referrerID))

	h.send(ctx, b, referrerID,
		fmt.Sprintf("🤝 Someone joined through your referral link! You earned %d points.", h.cfg.ReferralBonusPoints), nil)
	h.send(ctx, b, userID,
		fmt.Sprintf("🎁 Welcome bonus: %d points added to your account.", h.cfg.WelcomeBonusPoints), nil)
}

// sendServiceMenu renders the top-level menu. It creates a session when
// none exists but never mutates a mid-flow one; restarts go through
// resetSession.
func (h *Handler) sendServiceMenu(ctx context.Context, b sender, userID int64, text string) {
	if h.session(userID) == nil {
		h.resetSession(userID)
	}

	var rows [][]models.InlineKeyboardButton
	for _, svc := range domain.Catalog {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: svc.Label, CallbackData: tokenServicePrefix + svc.Key},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "👤 My Account", CallbackData: tokenViewAccount},
		{Text: "🤝 Referral", CallbackData: tokenViewReferral},
	})

	h.send(ctx, b, userID, text, &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// restartFlow discards the session and re-renders the menu. Used when a
// selection token fires outside its declared state.
func (h *Handler) restartFlow(ctx context.Context, b sender, userID int64, text string) {
	if sess := h.session(userID); sess != nil && sess.Verifying {
		h.send(ctx, b, userID, "🔍 A payment check is running. Use /cancel first if you want to stop it.", nil)
		return
	}
	h.resetSession(userID)
	h.sendServiceMenu(ctx, b, userID, text)
}

// handleServiceChoice fires only from SelectingService.
func (h *Handler) handleServiceChoice(ctx context.Context, b sender, userID int64, serviceKey string) {
	sess := h.session(userID)
	if sess == nil || sess.State != domain.StateSelectingService {
		h.restartFlow(ctx, b, userID, "Let's start from the beginning. Choose a service:")
		return
	}

	svc, ok := domain.FindService(serviceKey)
	if !ok {
		h.sendServiceMenu(ctx, b, userID, "That service is no longer available. Choose one below:")
		return
	}

	sess.ServiceKey = svc.Key
	sess.State = domain.StateAwaitingContract

	h.logger.Info("service selected", zap.Int64("user_id", userID), zap.String("service", svc.Key))

	h.send(ctx, b, userID,
		fmt.Sprintf("%s\n\n%s\n\nNow, please send me your token's contract address.", svc.Label, svc.Description),
		&models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "⬅️ Back", CallbackData: tokenBackServices}},
		}})
}

// handleFreeText records the contract address when the session is waiting
// for one; any other free text is redirected to the menu.
func (h *Handler) handleFreeText(ctx context.Context, b sender, userID int64, text string) {
	sess := h.session(userID)
	if sess == nil || sess.State != domain.StateAwaitingContract {
		h.sendServiceMenu(ctx, b, userID,
			"I didn't catch that. Use the buttons below, or send /start to begin again.")
		return
	}

	// The address is opaque to the flow; no format validation here.
	sess.ContractAddress = text
	sess.State = domain.StateSelectingPackage

	h.logger.Info("contract address recorded",
		zap.Int64("user_id", userID),
		zap.String("contract_address", text))

	h.sendPackageMenu(ctx, b, userID, sess)
}

func (h *Handler) sendPackageMenu(ctx context.Context, b sender, userID int64, sess *domain.Session) {
	svc, ok := domain.FindService(sess.ServiceKey)
	if !ok {
		h.sendServiceMenu(ctx, b, userID, "Something went wrong. Choose a service:")
		return
	}

	acct, err := h.loyaltyRepo.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load loyalty account", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, userID, "⚠️ Something went wrong on our side. Please try again in a moment.", nil)
		return
	}

	// Render each package at the price this user would actually pay.
	var rows [][]models.InlineKeyboardButton
	for _, pkg := range svc.Packages {
		q := pricing.QuoteFor(pkg.Lamports, acct, h.pricingParams())
		label := fmt.Sprintf("%s (%s SOL)", pkg.Label, formatSOL(q.FinalLamports))
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: label, CallbackData: tokenPackagePrefix + pkg.Key},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "⬅️ Back", CallbackData: tokenBackServices},
	})

	text := "Please choose a package:"
	switch {
	case acct.DiscountUnlocked:
		text = "💚 Your 10% loyalty discount is applied to the prices below.\n\nPlease choose a package:"
	case acct.Points > 0:
		text = fmt.Sprintf("💰 You have %d points, already deducted from the prices below.\n\nPlease choose a package:", acct.Points)
	}

	h.send(ctx, b, userID, text, &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// handlePackageChoice computes the final price and renders the deposit
// instructions. The quote is fixed here; the verifier must match it.
func (h *Handler) handlePackageChoice(ctx context.Context, b sender, userID int64, packageKey string) {
	sess := h.session(userID)
	if sess == nil || sess.State != domain.StateSelectingPackage {
		h.restartFlow(ctx, b, userID, "Let's start from the beginning. Choose a service:")
		return
	}

	pkg, ok := domain.FindPackage(sess.ServiceKey, packageKey)
	if !ok {
		h.sendPackageMenu(ctx, b, userID, sess)
		return
	}

	acct, err := h.loyaltyRepo.GetOrCreate(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load loyalty account", zap.Error(err), zap.Int64("user_id", userID))
		h.send(ctx, b, userID, "⚠️ Something went wrong on our side. Please try again in a moment.", nil)
		return
	}

	q := pricing.QuoteFor(pkg.Lamports, acct, h.pricingParams())

	sess.PackageKey = pkg.Key
	sess.BaseLamports = q.BaseLamports
	sess.FinalLamports = q.FinalLamports
	sess.PointsUsed = q.PointsUsed
	sess.State = domain.StateAwaitingPayment

	h.logger.Info("package selected",
		zap.Int64("user_id", userID),
		zap.String("package", pkg.Key),
		zap.Int64("base_lamports", q.BaseLamports),
		zap.Int64("final_lamports", q.FinalLamports),
		zap.Int64("points_used", q.PointsUsed))

	text := fmt.Sprintf(
		"You have selected: %s.\n\n"+
			"💵 Amount due: %s SOL\n",
		pkg.Label, formatSOL(q.FinalLamports))
	if q.UnlockedApplied {
		text += "💚 Loyalty discount applied (10%).\n"
	} else if q.PointsUsed > 0 {
		text += fmt.Sprintf("💰 %d points will be redeemed on this purchase.\n", q.PointsUsed)
	}
	text += fmt.Sprintf(
		"\nTo proceed, please send exactly that amount to:\n\n%s\n\n"+
			"(Tap to copy the address)\n\n"+
			"Once the transfer is on its way, press the button below.",
		h.cfg.DepositAddress)

	h.send(ctx, b, userID, text, &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{{Text: "✅ I have paid", CallbackData: tokenConfirmPay}},
	}})
}

// handleConfirmPayment launches the verification task for this session. A
// confirmation without a priced package (lost session) is recoverable and
// never reaches the verifier.
func (h *Handler) handleConfirmPayment(ctx context.Context, b sender, userID int64) {
	sess := h.session(userID)
	if sess == nil || sess.State != domain.StateAwaitingPayment || sess.FinalLamports == 0 {
		h.send(ctx, b, userID,
			"⌛ Your session has expired. No payment check was started.\n\nSend /start to begin again.", nil)
		return
	}
	if sess.Verifying {
		h.send(ctx, b, userID, "🔍 We are already checking the blockchain for your payment. Hang tight!", nil)
		return
	}

	vctx, cancel := context.WithCancel(ctx)
	sess.Verifying = true
	sess.CancelVerify = cancel

	h.send(ctx, b, userID,
		fmt.Sprintf("🔍 Checking the blockchain for a transfer of %s SOL...\n\nThis can take a couple of minutes. You can /cancel at any time.",
			formatSOL(sess.FinalLamports)), nil)

	// Verification suspends this session but never blocks other users.
	go h.runVerification(vctx, b, userID, *sess)
}

// runVerification awaits the verifier outcome and settles the purchase. The
// session snapshot is taken before launch so a concurrent reset cannot
// change the expected amount mid-flight.
func (h *Handler) runVerification(ctx context.Context, b sender, userID int64, sess domain.Session) {
	if sess.CancelVerify != nil {
		defer sess.CancelVerify()
	}

	res, err := h.verifier.Verify(ctx, sess.FinalLamports)
	if err != nil {
		// Cancelled: the cancel handler already talked to the user and
		// no ledger update may happen.
		h.logger.Info("verification cancelled", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if !res.Matched {
		h.dropSession(userID)
		h.send(ctx, b, userID,
			"❌ We couldn't find your payment on-chain.\n\n"+
				"If you already sent it, wait a minute and try again from /start, "+
				"or double-check the amount and address.", nil)
		return
	}

	// Bookkeeping runs on its own context so a late cancel cannot corrupt
	// a settled purchase.
	bctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pointsEarned := sess.FinalLamports * h.cfg.PointsPerSol / domain.LamportsPerSOL

	acct, err := h.loyaltyRepo.Apply(bctx, userID, repository.ApplyDelta{
		PointsEarned:  pointsEarned,
		PointsSpent:   sess.PointsUsed,
		SpendLamports: sess.FinalLamports,
	})
	if err != nil {
		h.logger.Error("failed to apply loyalty update after verified payment",
			zap.Error(err), zap.Int64("user_id", userID), zap.String("signature", res.Signature))
		h.send(ctx, b, userID,
			"🎉 Payment received! We hit a snag updating your loyalty balance, support has been notified.", nil)
		h.dropSession(userID)
		return
	}

	if _, err := h.purchaseRepo.Create(bctx, &domain.Purchase{
		TelegramID:      userID,
		ServiceKey:      sess.ServiceKey,
		PackageKey:      sess.PackageKey,
		ContractAddress: sess.ContractAddress,
		BaseLamports:    sess.BaseLamports,
		FinalLamports:   sess.FinalLamports,
		PointsUsed:      sess.PointsUsed,
		PointsEarned:    pointsEarned,
		Signature:       res.Signature,
	}); err != nil {
		h.logger.Error("failed to record purchase", zap.Error(err),
			zap.Int64("user_id", userID), zap.String("signature", res.Signature))
	}

	h.feed.Publish(FeedEvent{
		Type:          feedEventPurchase,
		TelegramID:    userID,
		ServiceKey:    sess.ServiceKey,
		PackageKey:    sess.PackageKey,
		FinalLamports: sess.FinalLamports,
		Signature:     res.Signature,
	})

	h.dropSession(userID)

	h.send(ctx, b, userID, fmt.Sprintf(
		"🎉 Payment received!\n\n"+
			"Your order is now being processed. We will notify you upon completion.\n\n"+
			"💰 Points earned: %d (balance: %d)\n\n"+
			"You can start a new request by sending /start.",
		pointsEarned, acct.Points), nil)

	h.scheduleFollowUps(b, userID)
}

// scheduleFollowUps queues the fire-and-forget progress notifications. A
// new purchase replaces any pending follow-up for the same user.
func (h *Handler) scheduleFollowUps(b sender, userID int64) {
	h.notifier.Schedule(userID, h.cfg.ScanNotifyDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.send(ctx, b, userID, "⏳ Our AI is preparing your order...", nil)

		h.notifier.Schedule(userID, h.cfg.DoneNotifyDelay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			h.send(ctx, b, userID,
				"✅ Your order is live!\n\nThank you for your purchase. Send /start anytime for more.", nil)
		})
	})
}

// handleBack returns to the service menu, discarding selections made after
// that point. Loyalty data is durable and unaffected.
func (h *Handler) handleBack(ctx context.Context, b sender, userID int64) {
	sess := h.session(userID)
	if sess != nil && sess.Verifying {
		h.send(ctx, b, userID, "🔍 A payment check is running. Use /cancel first if you want to stop it.", nil)
		return
	}
	h.resetSession(userID)
	h.sendServiceMenu(ctx, b, userID, "Back to the start. Choose a service:")
}

// handleCancel discards the session from any non-terminal state. An
// in-flight verification is stopped before its next attempt and no ledger
// update occurs.
func (h *Handler) handleCancel(ctx context.Context, b sender, userID int64) {
	h.mu.Lock()
	sess := h.sessions[userID]
	if sess != nil && sess.CancelVerify != nil {
		sess.CancelVerify()
	}
	delete(h.sessions, userID)
	h.mu.Unlock()

	h.notifier.Cancel(userID)

	h.logger.Info("conversation cancelled", zap.Int64("user_id", userID))
	h.send(ctx, b, userID, "Action cancelled. Send /start anytime to begin again.", nil)
}
