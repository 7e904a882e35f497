package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avdeev-m/ticketflow/internal/service"
)

type TicketHandler struct {
	purchaseService service.PurchaseService
}

func NewTicketHandler(purchaseService service.PurchaseService) *TicketHandler {
	return &TicketHandler{purchaseService: purchaseService}
}

// ConfirmTicket marks a pending ticket as paid for. Once every ticket of
// the purchase is confirmed the purchase completes.
func (h *TicketHandler) ConfirmTicket(c *gin.Context) {
	ticket, err := h.purchaseService.ConfirmTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// GetTicketQR returns the ticket's QR code as a PNG image
func (h *TicketHandler) GetTicketQR(c *gin.Context) {
	png, err := h.purchaseService.TicketQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
