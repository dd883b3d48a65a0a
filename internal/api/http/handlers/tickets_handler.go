package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/guregu/null/v5"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	"github.com/spec-kit/helpdesk-sla/internal/timeline"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle and SLA operations.
type TicketsHandler struct {
	lifecycle       *service.LifecycleService
	sla             *service.SLAService
	timeline        *service.TimelineService
	maxEvidenceSize int64
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lifecycle *service.LifecycleService, slaService *service.SLAService, timelineService *service.TimelineService, maxEvidenceSize int64) *TicketsHandler {
	return &TicketsHandler{
		lifecycle:       lifecycle,
		sla:             slaService,
		timeline:        timelineService,
		maxEvidenceSize: maxEvidenceSize,
	}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.lifecycle.Create(c.UserContext(), actor, service.CreateInput{
		Type:        req.Type,
		Category:    req.Category,
		RequesterID: req.RequesterID.Ptr(),
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, nil)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	limit, _ := repository.NormalizePage(query.PageSize, 0)
	offset := (query.Page - 1) * limit
	views, err := h.lifecycle.List(c.UserContext(), repository.TicketFilter{
		Statuses:        query.Statuses,
		Type:            query.Type,
		Category:        query.Category,
		AssignedAgentID: query.AssignedAgentID,
		RequesterID:     query.RequesterID,
		SLAStatus:       query.SLAStatus,
		SearchTerm:      query.Search,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		snap := views[i].SLA
		items = append(items, ticketResponse(views[i].Ticket, &snap))
	}
	return c.JSON(fiber.Map{"data": items, "page": query.Page, "page_size": limit})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	view, err := h.lifecycle.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view.Ticket, &view.SLA)})
}

// Timeline GET /tickets/:id/timeline.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, entries, err := h.timeline.Timeline(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := dto.TimelineResponse{
		TicketID: ticket.ID,
		Version:  ticket.Version,
		Entries:  make([]dto.TimelineEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, timelineEntry(e))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.Assign(c.UserContext(), actor, id, req.AgentID)
	})
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.Resolve(c.UserContext(), actor, id, req.Solution)
	})
}

// ReturnToQueue POST /tickets/:id/return.
func (h *TicketsHandler) ReturnToQueue(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.ReturnToQueue(c.UserContext(), actor, id, req.Comment)
	})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.AddCommentRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.AddComment(c.UserContext(), actor, id, req.Text)
	})
}

// Reclassify POST /tickets/:id/reclassify.
func (h *TicketsHandler) Reclassify(c *fiber.Ctx) error {
	var req dto.ReclassifyRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.Reclassify(c.UserContext(), actor, id, req.Category)
	})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CommentRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.lifecycle.Close(c.UserContext(), actor, id, req.Comment)
	})
}

// Pause POST /tickets/:id/pause.
func (h *TicketsHandler) Pause(c *fiber.Ctx) error {
	var req dto.PauseRequest
	return h.mutate(c, &req, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.sla.Pause(c.UserContext(), actor, id, req.Reason)
	})
}

// Resume POST /tickets/:id/resume.
func (h *TicketsHandler) Resume(c *fiber.Ctx) error {
	return h.mutate(c, nil, func(actor domain.Actor, id int64) (*domain.Ticket, error) {
		return h.sla.Resume(c.UserContext(), actor, id)
	})
}

// AttachEvidence POST /tickets/:id/evidence (multipart field "file").
func (h *TicketsHandler) AttachEvidence(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	header, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("multipart field \"file\" is required", nil)
	}
	if h.maxEvidenceSize > 0 && header.Size > h.maxEvidenceSize {
		return apperrors.NewValidationError("file too large", map[string]any{"max_bytes": h.maxEvidenceSize})
	}
	file, err := header.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}
	defer file.Close()

	ticket, url, err := h.lifecycle.AttachEvidence(c.UserContext(), actor, id, header.Filename, header.Header.Get(fiber.HeaderContentType), file, header.Size)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.EvidenceResponse{URL: url, Ticket: ticketResponse(ticket, nil)}})
}

// PauseReasons GET /pause-reasons.
func (h *TicketsHandler) PauseReasons(c *fiber.Ctx) error {
	reasons, err := h.sla.PauseReasons(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PauseReasonResponse, 0, len(reasons))
	for _, r := range reasons {
		items = append(items, dto.PauseReasonResponse{ID: r.ID, Description: r.Description, RequiresFreezer: r.RequiresFreezer})
	}
	return c.JSON(fiber.Map{"data": items})
}

// mutate parses the optional body, runs op and renders the updated ticket.
func (h *TicketsHandler) mutate(c *fiber.Ctx, body any, op func(actor domain.Actor, id int64) (*domain.Ticket, error)) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	if body != nil && len(c.Body()) > 0 {
		if err := c.BodyParser(body); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := op(actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, nil)})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("agent required")
	}
	return actor, nil
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseTicketQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	q := dto.TicketListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 20),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status := domain.TicketStatus(part)
			if !status.Valid() {
				return q, apperrors.NewValidationError("unknown status filter", map[string]any{"status": part})
			}
			q.Statuses = append(q.Statuses, status)
		}
	}
	if v := c.Query("type"); v != "" {
		t := domain.TicketType(v)
		if !t.Valid() {
			return q, apperrors.NewValidationError("unknown type filter", map[string]any{"type": v})
		}
		q.Type = &t
	}
	if v := c.Query("sla_status"); v != "" {
		s := domain.SLAStatus(v)
		if !s.Valid() {
			return q, apperrors.NewValidationError("unknown sla_status filter", map[string]any{"sla_status": v})
		}
		q.SLAStatus = &s
	}
	q.Category = optionalQuery(c, "category")
	q.AssignedAgentID = optionalQuery(c, "assigned_agent_id")
	q.RequesterID = optionalQuery(c, "requester_id")
	q.Search = optionalQuery(c, "q")
	return q, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil
	}
	return &v
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(t *domain.Ticket, snap *sla.Snapshot) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:                 t.ID,
		Code:               null.StringFromPtr(t.Code),
		Type:               t.Type,
		Category:           t.Category,
		RequesterID:        null.StringFromPtr(t.RequesterID),
		IsVIP:              t.IsVIP,
		Status:             t.Status,
		AssignedAgentID:    null.StringFromPtr(t.AssignedAgentID),
		SLAStatus:          t.SLAStatus,
		SLAStartAt:         t.SLAStartAt,
		SLAExpectedEndAt:   t.SLAExpectedEndAt,
		SLAClockStoppedAt:  null.TimeFromPtr(t.SLAClockStoppedAt),
		SLALastPausedAt:    null.TimeFromPtr(t.SLALastPausedAt),
		SLAPauseReason:     null.StringFromPtr(t.SLAPauseReason),
		HoldReason:         null.StringFromPtr(t.HoldReason),
		SLATotalPausedSecs: int64(t.SLATotalPausedDuration.Seconds()),
		Description:        null.StringFromPtr(t.Description),
		Solution:           null.StringFromPtr(t.Solution),
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	if snap != nil {
		resp.SLA = &dto.SLAResponse{
			Status:           snap.Status,
			Deadline:         snap.Deadline,
			Breached:         snap.Breached,
			Paused:           snap.Paused,
			RemainingSeconds: int64(snap.Remaining.Seconds()),
			PausedSeconds:    int64(snap.PausedFor.Seconds()),
		}
	}
	return resp
}

func timelineEntry(e timeline.Entry) dto.TimelineEntryResponse {
	return dto.TimelineEntryResponse{
		Kind:         string(e.Kind),
		Source:       e.Source,
		Title:        e.Title,
		Actor:        e.Actor,
		Body:         e.Body,
		Timestamp:    null.NewTime(e.Timestamp, e.TimestampKnown),
		RawTimestamp: e.RawTimestamp,
		EventID:      null.NewInt(e.EventID, e.EventID != 0),
	}
}
