// README: Interest signal handlers: express, withdraw, list, assign.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"camionback/internal/modules/interest"
	"camionback/internal/types"
)

type InterestHandler struct {
	interests *interest.Service
}

func NewInterestHandler(svc *interest.Service) *InterestHandler {
	return &InterestHandler{interests: svc}
}

type expressReq struct {
	TransporterID    string `json:"transporter_id"`
	AvailabilityDate string `json:"availability_date"`
}

func (h *InterestHandler) Express(c *gin.Context) {
	var req expressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	avail, err := time.Parse(dateLayout, req.AvailabilityDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "availability_date must be YYYY-MM-DD")
		return
	}
	sig, err := h.interests.Express(c.Request.Context(), interest.ExpressCommand{
		RequestID:        types.ID(c.Param("id")),
		TransporterID:    types.ID(req.TransporterID),
		AvailabilityDate: avail,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, signalViewOf(interest.SignalView{Signal: *sig}))
}

func (h *InterestHandler) Withdraw(c *gin.Context) {
	err := h.interests.Withdraw(c.Request.Context(),
		types.ID(c.Param("id")), types.ID(c.Param("transporterId")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type signalView struct {
	ID               string           `json:"id"`
	RequestID        string           `json:"request_id"`
	TransporterID    string           `json:"transporter_id"`
	AvailabilityDate string           `json:"availability_date"`
	State            string           `json:"state"`
	Hidden           bool             `json:"hidden"`
	ExactDate        bool             `json:"exact_date"`
	Profile          *transporterView `json:"profile,omitempty"`
}

type transporterView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Rating         *float64 `json:"rating,omitempty"`
	TruckPhotoURLs []string `json:"truck_photo_urls,omitempty"`
}

func signalViewOf(v interest.SignalView) signalView {
	out := signalView{
		ID:               string(v.ID),
		RequestID:        string(v.RequestID),
		TransporterID:    string(v.TransporterID),
		AvailabilityDate: v.AvailabilityDate.Format(dateLayout),
		State:            string(v.State),
		Hidden:           v.Hidden,
		ExactDate:        v.ExactDate,
	}
	if v.Profile != nil {
		out.Profile = &transporterView{
			ID:             string(v.Profile.ID),
			Name:           v.Profile.Name,
			Phone:          v.Profile.Phone,
			Rating:         v.Profile.Rating,
			TruckPhotoURLs: v.Profile.TruckPhotoURLs,
		}
	}
	return out
}

func (h *InterestHandler) List(c *gin.Context) {
	views, err := h.interests.List(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]signalView, 0, len(views))
	for _, v := range views {
		out = append(out, signalViewOf(v))
	}
	writeJSON(c, http.StatusOK, out)
}

type assignReq struct {
	TransporterID  string `json:"transporter_id"`
	TransporterFee int64  `json:"transporter_fee"`
	PlatformFee    int64  `json:"platform_fee"`
}

func (h *InterestHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.interests.Assign(c.Request.Context(), interest.AssignCommand{
		RequestID:      types.ID(c.Param("id")),
		TransporterID:  types.ID(req.TransporterID),
		TransporterFee: req.TransporterFee,
		PlatformFee:    req.PlatformFee,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(r))
}

func (h *InterestHandler) SetVisibility(c *gin.Context) {
	var req visibilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.interests.ToggleVisibility(c.Request.Context(), types.ID(c.Param("id")), req.Hidden)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
