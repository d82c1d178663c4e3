package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"livesync/internal/jobs"
	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/service"
	"livesync/internal/store"
)

type Handler struct {
	service *service.SyncService
	records store.RecordStore
	hub     *jobs.Hub
	logger  logrus.FieldLogger
}

func NewHandler(svc *service.SyncService, records store.RecordStore, hub *jobs.Hub, logger logrus.FieldLogger) *Handler {
	return &Handler{service: svc, records: records, hub: hub, logger: logger}
}

// New builds the fiber app with every route registered.
func New(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "livesync",
		ErrorHandler:          errorHandler(h.logger),
		UnescapePath:          true,
		DisableStartupMessage: true,
	})
	RegisterRoutes(app, h)
	return app
}

func RegisterRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api")

	api.Get("/live-sync/:name", h.GetConfig)
	api.Put("/live-sync/:name", h.SaveConfig)
	api.Post("/live-sync/:name/test", h.TestSync)
	api.Post("/live-sync/:name/run", h.RunSync)
	api.Post("/live-sync/:name/bulk", h.BulkSync)

	api.Get("/jobs", h.ListJobs)
	api.Get("/jobs/:id", h.GetJob)
	api.Get("/events", h.Events)

	api.Get("/meta/:type", h.GetMeta)

	api.Get("/resource/:type/:name", h.GetRecord)
	api.Post("/resource/:type", h.CreateRecord)
	api.Put("/resource/:type/:name", h.UpdateRecord)
	api.Delete("/resource/:type/:name", h.DeleteRecord)
}

// decode reads an optional JSON body into v.
func decode(c *fiber.Ctx, v any) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "Invalid JSON body: "+err.Error())
	}
	return nil
}

// --- Live Sync configuration ---

type configRequest struct {
	SourceType    string          `json:"source_type"`
	TargetType    string          `json:"target_type"`
	Enabled       bool            `json:"enabled"`
	Bidirectional bool            `json:"bidirectional"`
	EnableLogging bool            `json:"enable_logging"`
	LogLevel      model.LogLevel  `json:"log_level"`
	Config        json.RawMessage `json:"config"`
}

// configText accepts the configuration either as a JSON object or as a
// string holding the JSON text.
func (r *configRequest) configText() []byte {
	raw := bytes.TrimSpace(r.Config)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return []byte(text)
		}
	}
	return raw
}

func (h *Handler) GetConfig(c *fiber.Ctx) error {
	ls, err := h.service.GetConfig(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, ls)
}

func (h *Handler) SaveConfig(c *fiber.Ctx) error {
	var req configRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "Invalid JSON body: "+err.Error())
	}
	if req.SourceType == "" || req.TargetType == "" {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "source_type and target_type are required")
	}

	ls := &model.LiveSync{
		Name:          c.Params("name"),
		SourceType:    req.SourceType,
		TargetType:    req.TargetType,
		Enabled:       req.Enabled,
		Bidirectional: req.Bidirectional,
		EnableLogging: req.EnableLogging,
		LogLevel:      req.LogLevel,
		Config:        req.configText(),
	}
	report, err := h.service.SaveConfig(c.UserContext(), ls)
	if err != nil {
		return err
	}

	saved, err := h.service.GetConfig(c.UserContext(), ls.Name)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"config": saved, "report": report})
}

// --- Sync operations ---

type syncRequest struct {
	SourceName  string `json:"source_name"`
	FilterField string `json:"filter_field"`
	FilterValue any    `json:"filter_value"`
	Limit       int    `json:"limit"`
}

func (h *Handler) TestSync(c *fiber.Ctx) error {
	var req syncRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	result, err := h.service.TestSync(c.UserContext(), c.Params("name"), req.SourceName)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, result)
}

func (h *Handler) RunSync(c *fiber.Ctx) error {
	var req syncRequest
	if err := decode(c, &req); err != nil {
		return err
	}
	if req.SourceName == "" {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "source_name is required")
	}
	result, err := h.service.RunSync(c.UserContext(), c.Params("name"), req.SourceName)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, result)
}

func (h *Handler) BulkSync(c *fiber.Ctx) error {
	var req syncRequest
	if err := decode(c, &req); err != nil {
		return err
	}

	job, err := h.service.BulkSync(c.UserContext(), c.Params("name"), req.FilterField, cast.ToString(req.FilterValue), req.Limit)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if !job.Status.Terminal() {
		status = fiber.StatusAccepted
	}
	return respond(c, status, job)
}

func (h *Handler) ListJobs(c *fiber.Ctx) error {
	list, err := h.service.ListJobs(c.UserContext(), c.Query("config"), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Job{}
	}
	return respond(c, fiber.StatusOK, list)
}

func (h *Handler) GetJob(c *fiber.Ctx) error {
	job, err := h.service.JobStatus(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, job)
}

func (h *Handler) GetMeta(c *fiber.Ctx) error {
	meta, err := h.records.Meta(c.UserContext(), c.Params("type"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, meta)
}

// --- Records ---
//
// Writes through these routes raise document events, so enabled
// configurations sync the record as part of the request. A sync failure does
// not undo the write; it is reported next to the record.

func (h *Handler) dispatch(c *fiber.Ctx, recordType string, event mapping.Event, rec model.Record) fiber.Map {
	results, err := h.service.HandleEvent(c.UserContext(), recordType, event, rec)
	if results == nil {
		results = []*service.Result{}
	}
	out := fiber.Map{"record": rec, "sync": results}
	if err != nil {
		h.logger.WithError(err).WithField("record", recordType+"/"+rec.Name()).Warn("document event sync failed")
		out["sync_error"] = err.Error()
	}
	return out
}

func (h *Handler) GetRecord(c *fiber.Ctx) error {
	rec, err := h.records.GetRecord(c.UserContext(), c.Params("type"), c.Params("name"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, rec)
}

func (h *Handler) CreateRecord(c *fiber.Ctx) error {
	var rec model.Record
	if err := json.Unmarshal(c.Body(), &rec); err != nil || rec == nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "Invalid JSON body")
	}

	recordType := c.Params("type")
	saved, err := h.records.InsertRecord(c.UserContext(), recordType, rec)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, h.dispatch(c, recordType, mapping.EventInsert, saved))
}

func (h *Handler) UpdateRecord(c *fiber.Ctx) error {
	var rec model.Record
	if err := json.Unmarshal(c.Body(), &rec); err != nil || rec == nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidPayload, "Invalid JSON body")
	}
	rec[model.NameField] = c.Params("name")

	recordType := c.Params("type")
	if err := h.records.UpdateRecord(c.UserContext(), recordType, rec); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, h.dispatch(c, recordType, mapping.EventUpdate, rec))
}

func (h *Handler) DeleteRecord(c *fiber.Ctx) error {
	recordType, name := c.Params("type"), c.Params("name")
	rec, err := h.records.GetRecord(c.UserContext(), recordType, name)
	if err != nil {
		return err
	}
	if err := h.records.DeleteRecord(c.UserContext(), recordType, name); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, h.dispatch(c, recordType, mapping.EventDelete, rec))
}
