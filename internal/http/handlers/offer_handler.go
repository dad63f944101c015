// README: Legacy direct-offer handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"camionback/internal/modules/offer"
	"camionback/internal/types"
)

type OfferHandler struct {
	offers *offer.Service
}

func NewOfferHandler(svc *offer.Service) *OfferHandler {
	return &OfferHandler{offers: svc}
}

type offerView struct {
	ID            string `json:"id"`
	RequestID     string `json:"request_id"`
	TransporterID string `json:"transporter_id"`
	Amount        int64  `json:"amount"`
	LoadType      string `json:"load_type,omitempty"`
	PickupDate    string `json:"pickup_date"`
	Status        string `json:"status"`
}

func offerViewOf(o *offer.Offer) offerView {
	return offerView{
		ID:            string(o.ID),
		RequestID:     string(o.RequestID),
		TransporterID: string(o.TransporterID),
		Amount:        o.Amount,
		LoadType:      o.LoadType,
		PickupDate:    o.PickupDate.Format(dateLayout),
		Status:        string(o.Status),
	}
}

type submitOfferReq struct {
	TransporterID string `json:"transporter_id"`
	Amount        int64  `json:"amount"`
	LoadType      string `json:"load_type"`
	PickupDate    string `json:"pickup_date"`
}

func (h *OfferHandler) Submit(c *gin.Context) {
	var req submitOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pickup, err := time.Parse(dateLayout, req.PickupDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "pickup_date must be YYYY-MM-DD")
		return
	}
	o, err := h.offers.Submit(c.Request.Context(), offer.SubmitCommand{
		RequestID:     types.ID(c.Param("id")),
		TransporterID: types.ID(req.TransporterID),
		Amount:        req.Amount,
		LoadType:      req.LoadType,
		PickupDate:    pickup,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, offerViewOf(o))
}

func (h *OfferHandler) ListByRequest(c *gin.Context) {
	offers, err := h.offers.ListByRequest(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]offerView, 0, len(offers))
	for i := range offers {
		out = append(out, offerViewOf(&offers[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

type acceptOfferReq struct {
	PlatformFee int64 `json:"platform_fee"`
}

func (h *OfferHandler) Accept(c *gin.Context) {
	// Body is optional: without one the platform fee comes from the
	// qualified split.
	var req acceptOfferReq
	_ = c.ShouldBindJSON(&req)
	o, err := h.offers.Accept(c.Request.Context(), offer.AcceptCommand{
		OfferID:     types.ID(c.Param("id")),
		PlatformFee: req.PlatformFee,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, offerViewOf(o))
}

func (h *OfferHandler) Complete(c *gin.Context) {
	if err := h.offers.Complete(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *OfferHandler) Reject(c *gin.Context) {
	if err := h.offers.Reject(c.Request.Context(), types.ID(c.Param("id"))); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
