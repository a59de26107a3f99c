package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const subscriptionPeriod = 30 * 24 * time.Hour

// paymentEvent is what the payment provider posts after settling a checkout.
// The provider owns the money flow; this endpoint only records the outcome.
type paymentEvent struct {
	OrderID   string `json:"orderId"`
	Platform  string `json:"platform" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	Product   string `json:"product" binding:"required"`
	AmountKRW int    `json:"amountKrw"`
	Status    string `json:"status" binding:"required"`
}

func (s *Server) handlePaymentWebhook(c *gin.Context) {
	var ev paymentEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	platform := models.Platform(ev.Platform)
	switch platform {
	case models.PlatformTelegram, models.PlatformKakao, models.PlatformWeb:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
		return
	}

	product := models.Product(ev.Product)
	switch product {
	case models.ProductBasicMonth, models.ProductPremiumMonth, models.ProductCreditPack10:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown product"})
		return
	}

	now := kst.Now()
	order := &models.Order{
		ID:        ev.OrderID,
		Platform:  platform,
		UserID:    ev.UserID,
		Product:   product,
		AmountKRW: ev.AmountKRW,
		Status:    models.OrderStatus(ev.Status),
		CreatedAt: now,
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == models.OrderPaid {
		order.PaidAt = &now
	}

	ctx := c.Request.Context()
	if err := s.store.SaveOrder(ctx, order); err != nil {
		log.Error().Err(err).Str("order", order.ID).Msg("failed to save order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	if order.Status == models.OrderPaid {
		if err := s.settleOrder(c, order, now); err != nil {
			log.Error().Err(err).Str("order", order.ID).Msg("failed to settle order")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
	}

	log.Info().
		Str("order", order.ID).
		Str("platform", ev.Platform).
		Str("product", ev.Product).
		Str("status", ev.Status).
		Msg("payment event recorded")
	c.JSON(http.StatusOK, gin.H{"orderId": order.ID, "status": string(order.Status)})
}

// settleOrder applies the entitlement a paid order grants. Replays of the
// same order overwrite the same rows, so the handler stays idempotent.
func (s *Server) settleOrder(c *gin.Context, order *models.Order, now time.Time) error {
	ctx := c.Request.Context()
	switch order.Product {
	case models.ProductBasicMonth:
		return s.store.SaveSubscription(ctx, &models.Subscription{
			Platform:  order.Platform,
			UserID:    order.UserID,
			Tier:      models.TierBasic,
			ExpiresAt: now.Add(subscriptionPeriod),
			CreatedAt: now,
		})
	case models.ProductPremiumMonth:
		if err := s.store.SaveSubscription(ctx, &models.Subscription{
			Platform:  order.Platform,
			UserID:    order.UserID,
			Tier:      models.TierPremium,
			ExpiresAt: now.Add(subscriptionPeriod),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		return s.store.SetPremiumUntil(ctx, order.Platform, order.UserID, now.Add(subscriptionPeriod))
	case models.ProductCreditPack10:
		return s.store.AddCredits(ctx, order.Platform, order.UserID, 10, string(models.ProductCreditPack10))
	}
	return nil
}
