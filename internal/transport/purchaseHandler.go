package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avdeev-m/ticketflow/internal/service"
)

type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// CancelPurchaseRequest представляет запрос на отмену покупки
type CancelPurchaseRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// Purchase buys tickets of one type, either by quantity or by explicit
// seat ids
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	req.TicketTypeID = c.Param("id")

	purchase, err := h.purchaseService.Purchase(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	purchase, err := h.purchaseService.GetPurchase(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, purchase)
}

func (h *PurchaseHandler) CancelPurchase(c *gin.Context) {
	var req CancelPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.purchaseService.CancelPurchase(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "purchase cancelled"})
}
