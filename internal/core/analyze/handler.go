package analyze

import (
	"desktour/internal/core/job"
	"desktour/internal/core/match"
	"desktour/internal/platform/catalog"
	"desktour/internal/utils/parser"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	job     *job.JobService
	analyze *Service
	catalog *catalog.Store
}

func NewHandler(jobSvc *job.JobService, analyzeSvc *Service, store *catalog.Store) *Handler {
	return &Handler{job: jobSvc, analyze: analyzeSvc, catalog: store}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Success: false, Error: msg})
}

type createResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

func (h *Handler) HandleCreateAnalyze(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	id, err := h.analyze.Enqueue(c.Context(), req)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(createResponse{Success: true, JobID: id})
}

type statusResponse struct {
	Success bool               `json:"success"`
	JobID   string             `json:"job_id"`
	Status  job.Status         `json:"status"`
	Data    *job.AnalyzeResult `json:"data,omitempty"`
}

func (h *Handler) HandleGetAnalyze(c *fiber.Ctx) error {
	id := c.Params("jobId")
	j, err := h.job.GetJobStatus(c.Context(), id)
	if err != nil {
		return fail(c, fiber.StatusNotFound, "not_found")
	}
	resp := statusResponse{Success: true, JobID: id, Status: j.Status}
	if j.Status == job.StatusCompleted || j.Status == job.StatusFailed {
		resp.Data = j.Results.AnalyzeResult
	}
	return c.JSON(resp)
}

// MatchRequest reconciles an already-extracted batch without the LLM step.
type MatchRequest struct {
	Products []match.ExtractedProduct `json:"products"`
	ASINs    []string                 `json:"asins,omitempty"`
}

type matchResponse struct {
	Success  bool                   `json:"success"`
	Products []match.MatchedProduct `json:"products"`
	Matched  int                    `json:"matched"`
	Total    int                    `json:"total"`
}

func (h *Handler) HandleMatch(c *fiber.Ctx) error {
	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if len(req.Products) == 0 {
		return fail(c, fiber.StatusBadRequest, "products is required")
	}
	for _, p := range req.Products {
		if p.Name == "" {
			return fail(c, fiber.StatusBadRequest, "every product needs a name")
		}
	}

	lookups := h.analyze.resolveASINs(c.Context(), req.ASINs)
	matched := h.analyze.match.Reconcile(c.Context(), match.Input{Products: req.Products, Lookups: lookups})

	resp := matchResponse{Success: true, Products: matched, Total: len(matched)}
	for _, m := range matched {
		if m.Amazon != nil || m.IsExisting {
			resp.Matched++
		}
	}
	return c.JSON(resp)
}

type catalogSearchParams struct {
	Query    string `form:"q"`
	Brand    string `form:"brand"`
	Category string `form:"category"`
	Limit    int    `form:"limit"`
}

type catalogSearchResponse struct {
	Success bool                  `json:"success"`
	Records []match.CatalogRecord `json:"records"`
}

func (h *Handler) HandleCatalogSearch(c *fiber.Ctx) error {
	var params catalogSearchParams
	if err := parser.ParseQuery(c, &params); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid query")
	}
	if params.Query == "" && params.Brand == "" && params.Category == "" {
		return fail(c, fiber.StatusBadRequest, "q, brand or category is required")
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	records, err := h.catalog.Search(c.Context(), params.Query, params.Brand, params.Category, params.Limit)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(catalogSearchResponse{Success: true, Records: records})
}
