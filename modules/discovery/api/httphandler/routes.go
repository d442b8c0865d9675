package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/discovery")

	r.Post("/balances/batch", h.GetBalancesBatch)
	r.Get("/balances/:identity", h.GetBalances)
	r.Get("/chains/:identity", h.GetChains)
	r.Get("/status/:identity", h.GetStatus)
	return nil
}
