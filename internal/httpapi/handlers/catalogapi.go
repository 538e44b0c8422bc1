package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dev1d123/CyberDOJO/internal/common"
)

func (h *Handler) ListScenarios(c *gin.Context) {
	scenarios, err := h.Catalog.ListActive(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50014, "failed to list scenarios")
		return
	}
	common.OK(c, gin.H{"scenarios": scenarios})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	txs, err := h.Ledger.ListByUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50015, "failed to list transactions")
		return
	}

	common.OK(c, gin.H{
		"balance":      user.CyberCreds,
		"transactions": txs,
	})
}
