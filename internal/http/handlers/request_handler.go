// README: Request lifecycle handlers (create/qualify/transitions/ledger).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"camionback/internal/modules/request"
	"camionback/internal/types"
)

const dateLayout = "2006-01-02"

type RequestHandler struct {
	requests *request.Service
}

func NewRequestHandler(svc *request.Service) *RequestHandler {
	return &RequestHandler{requests: svc}
}

type requestView struct {
	ID                 string   `json:"id"`
	Reference          string   `json:"reference"`
	Status             string   `json:"status"`
	CoordinationStatus string   `json:"coordination_status"`
	OriginCity         string   `json:"origin_city"`
	DestinationCity    string   `json:"destination_city"`
	DistanceKm         *float64 `json:"distance_km,omitempty"`
	CargoCategory      string   `json:"cargo_category"`
	DesiredDate        string   `json:"desired_date"`
	ClientTotal        *int64   `json:"client_total,omitempty"`
	TransporterFee     *int64   `json:"transporter_fee,omitempty"`
	PlatformFee        *int64   `json:"platform_fee,omitempty"`
	TransporterID      *string  `json:"transporter_id,omitempty"`
	CoordinatorID      *string  `json:"coordinator_id,omitempty"`
	Hidden             bool     `json:"hidden"`
}

func viewOf(r *request.Request) requestView {
	v := requestView{
		ID:                 string(r.ID),
		Reference:          r.Reference,
		Status:             string(r.Status),
		CoordinationStatus: string(r.CoordinationStatus),
		OriginCity:         r.OriginCity,
		DestinationCity:    r.DestinationCity,
		DistanceKm:         r.DistanceKm,
		CargoCategory:      r.CargoCategory,
		DesiredDate:        r.DesiredDate.Format(dateLayout),
		ClientTotal:        r.ClientTotal,
		TransporterFee:     r.TransporterFee,
		PlatformFee:        r.PlatformFee,
		Hidden:             r.Hidden,
	}
	if r.TransporterID != nil {
		s := string(*r.TransporterID)
		v.TransporterID = &s
	}
	if r.CoordinatorID != nil {
		s := string(*r.CoordinatorID)
		v.CoordinatorID = &s
	}
	return v
}

type createRequestReq struct {
	ClientID           string   `json:"client_id"`
	OriginCity         string   `json:"origin_city"`
	OriginAddress      string   `json:"origin_address"`
	DestinationCity    string   `json:"destination_city"`
	DestinationAddress string   `json:"destination_address"`
	DistanceKm         *float64 `json:"distance_km"`
	CargoCategory      string   `json:"cargo_category"`
	Description        string   `json:"description"`
	EstimatedWeight    *float64 `json:"estimated_weight"`
	FloorOrigin        int      `json:"floor_origin"`
	FloorDest          int      `json:"floor_dest"`
	HasElevator        bool     `json:"has_elevator"`
	DesiredDate        string   `json:"desired_date"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	desired, err := time.Parse(dateLayout, req.DesiredDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "desired_date must be YYYY-MM-DD")
		return
	}
	r, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		ClientID:           types.ID(req.ClientID),
		OriginCity:         req.OriginCity,
		OriginAddress:      req.OriginAddress,
		DestinationCity:    req.DestinationCity,
		DestinationAddress: req.DestinationAddress,
		DistanceKm:         req.DistanceKm,
		CargoCategory:      req.CargoCategory,
		Description:        req.Description,
		EstimatedWeight:    req.EstimatedWeight,
		FloorOrigin:        req.FloorOrigin,
		FloorDest:          req.FloorDest,
		HasElevator:        req.HasElevator,
		DesiredDate:        desired,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOf(r))
}

func (h *RequestHandler) Get(c *gin.Context) {
	r, err := h.requests.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(r))
}

type qualifyReq struct {
	CoordinatorID  string `json:"coordinator_id"`
	ClientTotal    *int64 `json:"client_total"`
	TransporterFee *int64 `json:"transporter_fee"`
	PlatformFee    *int64 `json:"platform_fee"`
}

func (h *RequestHandler) Qualify(c *gin.Context) {
	var req qualifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := request.QualifyCommand{
		RequestID:     types.ID(c.Param("id")),
		CoordinatorID: types.ID(req.CoordinatorID),
	}
	if req.ClientTotal != nil && req.TransporterFee != nil && req.PlatformFee != nil {
		cmd.Override = &request.FeeOverride{
			ClientTotal:    *req.ClientTotal,
			TransporterFee: *req.TransporterFee,
			PlatformFee:    *req.PlatformFee,
		}
	}
	r, err := h.requests.Qualify(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(r))
}

type actorReq struct {
	ActorID string `json:"actor_id"`
}

func (h *RequestHandler) Start(c *gin.Context) {
	var req actorReq
	_ = c.ShouldBindJSON(&req)
	err := h.requests.Start(c.Request.Context(), request.StartCommand{
		RequestID: types.ID(c.Param("id")),
		ActorID:   types.ID(req.ActorID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": request.StatusInProgress})
}

func (h *RequestHandler) Complete(c *gin.Context) {
	var req actorReq
	_ = c.ShouldBindJSON(&req)
	err := h.requests.Complete(c.Request.Context(), request.CompleteCommand{
		RequestID: types.ID(c.Param("id")),
		ActorID:   types.ID(req.ActorID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": request.StatusCompleted})
}

type cancelReq struct {
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason"`
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	actorType := req.ActorType
	if actorType == "" {
		actorType = "coordinator"
	}
	err := h.requests.Cancel(c.Request.Context(), request.CancelCommand{
		RequestID: types.ID(c.Param("id")),
		ActorType: actorType,
		ActorID:   types.ID(req.ActorID),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": request.StatusCancelled})
}

type archiveReq struct {
	CoordinatorID string `json:"coordinator_id"`
	ReasonCode    string `json:"reason_code"`
	Comment       string `json:"comment"`
}

func (h *RequestHandler) Archive(c *gin.Context) {
	var req archiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.requests.Archive(c.Request.Context(), request.ArchiveCommand{
		RequestID:     types.ID(c.Param("id")),
		CoordinatorID: types.ID(req.CoordinatorID),
		ReasonCode:    req.ReasonCode,
		Comment:       req.Comment,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": request.StatusArchived})
}

type coordinatorReq struct {
	CoordinatorID string `json:"coordinator_id"`
}

func (h *RequestHandler) Republish(c *gin.Context) {
	var req coordinatorReq
	_ = c.ShouldBindJSON(&req)
	err := h.requests.Republish(c.Request.Context(), request.RepublishCommand{
		RequestID:     types.ID(c.Param("id")),
		CoordinatorID: types.ID(req.CoordinatorID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RequestHandler) Requalify(c *gin.Context) {
	var req coordinatorReq
	_ = c.ShouldBindJSON(&req)
	err := h.requests.Requalify(c.Request.Context(), request.RequalifyCommand{
		RequestID:     types.ID(c.Param("id")),
		CoordinatorID: types.ID(req.CoordinatorID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": request.StatusPublished})
}

type coordinationReq struct {
	Status        *string `json:"status"`
	CoordinatorID *string `json:"coordinator_id"`
}

func (h *RequestHandler) UpdateCoordination(c *gin.Context) {
	var req coordinationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := request.CoordinationCommand{RequestID: types.ID(c.Param("id"))}
	if req.Status != nil {
		s := request.CoordinationStatus(*req.Status)
		cmd.Status = &s
	}
	if req.CoordinatorID != nil {
		id := types.ID(*req.CoordinatorID)
		cmd.CoordinatorID = &id
	}
	if err := h.requests.UpdateCoordination(c.Request.Context(), cmd); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type visibilityReq struct {
	Hidden bool `json:"hidden"`
}

func (h *RequestHandler) SetVisibility(c *gin.Context) {
	var req visibilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.requests.SetVisibility(c.Request.Context(), request.VisibilityCommand{
		RequestID: types.ID(c.Param("id")),
		Hidden:    req.Hidden,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type noteReq struct {
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

func (h *RequestHandler) AddNote(c *gin.Context) {
	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.requests.AddNote(c.Request.Context(), request.NoteCommand{
		RequestID: types.ID(c.Param("id")),
		AuthorID:  types.ID(req.AuthorID),
		Body:      req.Body,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type noteView struct {
	ID        int64  `json:"id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func (h *RequestHandler) ListNotes(c *gin.Context) {
	notes, err := h.requests.Notes(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]noteView, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteView{
			ID:        n.ID,
			AuthorID:  string(n.AuthorID),
			Body:      n.Body,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(c, http.StatusOK, out)
}
