package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"standline/internal/domain"
	"standline/internal/engine"
	"standline/internal/predict"
	"standline/internal/rules"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"standard std-9 not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Standline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Standline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerStandards(group, cfg.Engine)
	registerRecords(group, cfg.Engine)
	registerEvaluations(group, cfg.Engine)
	registerWorkflows(group, cfg.Engine)
	registerRules(group, cfg.Engine)
	registerSchedules(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerPredictions(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, domain.ErrValidation):
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	case errors.Is(err, domain.ErrInvariant):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Standline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" || input.Body.OwnerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name and owner_id are required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p := domain.Project{
			ID:        valueOrNew(input.Body.ID),
			Name:      input.Body.Name,
			OwnerID:   input.Body.OwnerID,
			Status:    "active",
			MemberIDs: input.Body.MemberIDs,
			CreatedAt: e.Timestamp(),
		}
		if err := e.Repo.InsertProject(ctx, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-statistics",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/statistics",
		Summary:     "Project compliance statistics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.Statistics `json:"body"`
	}, error) {
		stats, err := e.ProjectStatistics(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Statistics `json:"body"`
		}{Body: stats}, nil
	})
}

func registerStandards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-standard",
		Method:        http.MethodPost,
		Path:          "/standards",
		Summary:       "Create compliance standard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateStandardRequest `json:"body"`
	}) (*struct {
		Body domain.Standard `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.Weight <= 0 || input.Body.Weight > 1 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "weight must be within (0,1]", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		now := e.Timestamp()
		s := domain.Standard{
			ID:        valueOrNew(input.Body.ID),
			Name:      input.Body.Name,
			Category:  input.Body.Category,
			Level:     input.Body.Level,
			Weight:    input.Body.Weight,
			Version:   1,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if input.Body.Description != nil {
			s.Description = *input.Body.Description
		}
		if err := e.Repo.InsertStandard(ctx, s); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Standard `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-standards",
		Method:      http.MethodGet,
		Path:        "/standards",
		Summary:     "List compliance standards",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active" doc:"Only active standards"`
	}) (*struct {
		Body []domain.Standard `json:"body"`
	}, error) {
		items, err := e.Repo.ListStandards(ctx, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Standard `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-standard",
		Method:      http.MethodGet,
		Path:        "/standards/{standard_id}",
		Summary:     "Get standard",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StandardID string `path:"standard_id"`
	}) (*struct {
		Body domain.Standard `json:"body"`
	}, error) {
		s, err := e.Repo.GetStandard(ctx, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Standard `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-standard",
		Method:      http.MethodPatch,
		Path:        "/standards/{standard_id}",
		Summary:     "Update standard",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		StandardID string                `path:"standard_id"`
		Body       UpdateStandardRequest `json:"body"`
	}) (*struct {
		Body domain.Standard `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		s, err := e.Repo.GetStandard(ctx, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name != nil {
			s.Name = *input.Body.Name
		}
		if input.Body.Description != nil {
			s.Description = *input.Body.Description
		}
		if input.Body.Category != nil {
			s.Category = *input.Body.Category
		}
		if input.Body.Level != nil {
			s.Level = *input.Body.Level
		}
		if input.Body.Weight != nil {
			if *input.Body.Weight <= 0 || *input.Body.Weight > 1 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "weight must be within (0,1]", nil)
			}
			s.Weight = *input.Body.Weight
		}
		if input.Body.IsActive != nil {
			s.IsActive = *input.Body.IsActive
		}
		s.UpdatedAt = e.Timestamp()
		updated, err := e.Repo.UpdateStandard(ctx, s)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Standard `json:"body"`
		}{Body: updated}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-criterion",
		Method:        http.MethodPost,
		Path:          "/standards/{standard_id}/criteria",
		Summary:       "Add criterion to a standard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		StandardID string                 `path:"standard_id"`
		Body       CreateCriterionRequest `json:"body"`
	}) (*struct {
		Body domain.Criterion `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.MaxScore <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "max_score must be positive", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetStandard(ctx, input.StandardID); err != nil {
			return nil, handleError(err)
		}
		c := domain.Criterion{
			ID:            valueOrNew(input.Body.ID),
			StandardID:    input.StandardID,
			Name:          input.Body.Name,
			EvidenceType:  input.Body.EvidenceType,
			ScoringMethod: input.Body.ScoringMethod,
			MaxScore:      input.Body.MaxScore,
			IsMandatory:   input.Body.IsMandatory,
			Order:         input.Body.Order,
			CreatedAt:     e.Timestamp(),
		}
		if input.Body.Description != nil {
			c.Description = *input.Body.Description
		}
		if err := e.Repo.InsertCriterion(ctx, c); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Criterion `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-criteria",
		Method:      http.MethodGet,
		Path:        "/standards/{standard_id}/criteria",
		Summary:     "List a standard's criteria",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StandardID string `path:"standard_id"`
	}) (*struct {
		Body []domain.Criterion `json:"body"`
	}, error) {
		if _, err := e.Repo.GetStandard(ctx, input.StandardID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListCriteria(ctx, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Criterion `json:"body"`
		}{Body: items}, nil
	})
}

func registerRecords(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-record",
		Method:      http.MethodPut,
		Path:        "/records",
		Summary:     "Submit or update evidence for a criterion",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body SubmitRecordRequest `json:"body"`
	}) (*struct {
		Body domain.ComplianceRecord `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.SubmitRecord(ctx, engine.SubmitRecordOptions{
			ProjectID:   input.Body.ProjectID,
			StandardID:  input.Body.StandardID,
			CriterionID: input.Body.CriterionID,
			Status:      input.Body.Status,
			Evidence:    input.Body.Evidence,
			EvidenceURL: input.Body.EvidenceURL,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComplianceRecord `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/records",
		Summary:     "List evidence records for a project and standard",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id" required:"true"`
		StandardID string `query:"standard_id" required:"true"`
	}) (*struct {
		Body []domain.ComplianceRecord `json:"body"`
	}, error) {
		items, err := e.Repo.ListRecords(ctx, input.ProjectID, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ComplianceRecord `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-record",
		Method:      http.MethodPost,
		Path:        "/records/{record_id}/review",
		Summary:     "Approve or reject submitted evidence",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		RecordID string `path:"record_id"`
		Body     struct {
			Status string `json:"status" enum:"approved,rejected"`
		} `json:"body"`
	}) (*struct {
		Body domain.ComplianceRecord `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.ReviewRecord(ctx, input.RecordID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComplianceRecord `json:"body"`
		}{Body: rec}, nil
	})
}

// EvaluationResponse bundles the evaluation result with its derived alerts.
type EvaluationResponse struct {
	Result domain.EvaluationResult  `json:"result"`
	Alerts []domain.ComplianceAlert `json:"alerts,omitempty"`
}

func registerEvaluations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "evaluate",
		Method:        http.MethodPost,
		Path:          "/evaluations",
		Summary:       "Evaluate a project against a standard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body EvaluateRequest `json:"body"`
	}) (*struct {
		Body EvaluationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		result, err := e.Evaluate(ctx, input.Body.ProjectID, input.Body.StandardID, actorID, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		alerts, err := e.AlertsFor(ctx, result)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.FanOutAlerts(ctx, result, alerts); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EvaluationResponse `json:"body"`
		}{Body: EvaluationResponse{Result: result, Alerts: alerts}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "batch-evaluate",
		Method:      http.MethodPost,
		Path:        "/evaluations/batch",
		Summary:     "Evaluate many projects against one standard",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body BatchEvaluateRequest `json:"body"`
	}) (*struct {
		Body []domain.EvaluationResult `json:"body"`
	}, error) {
		if len(input.Body.ProjectIDs) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "project_ids is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		results, err := e.BatchEvaluate(ctx, input.Body.ProjectIDs, input.Body.StandardID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.EvaluationResult `json:"body"`
		}{Body: results}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluation-history",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/standards/{standard_id}/history",
		Summary:     "Evaluation history with trend and level",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		StandardID string `path:"standard_id"`
	}) (*struct {
		Body engine.History `json:"body"`
	}, error) {
		h, err := e.EvaluationHistory(ctx, input.ProjectID, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.History `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluation-alerts",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/standards/{standard_id}/alerts",
		Summary:     "Alerts derived from the latest evaluation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		StandardID string `path:"standard_id"`
	}) (*struct {
		Body []domain.ComplianceAlert `json:"body"`
	}, error) {
		alerts, err := e.LatestAlerts(ctx, input.ProjectID, input.StandardID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ComplianceAlert `json:"body"`
		}{Body: alerts}, nil
	})
}

// InstanceDetailResponse is one workflow instance with its step instances
// and escalation history.
type InstanceDetailResponse struct {
	Instance    domain.WorkflowInstance       `json:"instance"`
	Steps       []domain.WorkflowStepInstance `json:"steps"`
	Escalations []domain.Escalation           `json:"escalations,omitempty"`
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows",
		Summary:       "Create workflow template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateWorkflowRequest `json:"body"`
	}) (*struct {
		Body domain.Workflow `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if len(input.Body.Steps) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "at least one step is required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		w := domain.Workflow{
			ID:          valueOrNew(input.Body.ID),
			Name:        input.Body.Name,
			TriggerType: input.Body.TriggerType,
			IsActive:    true,
			CreatedAt:   e.Timestamp(),
		}
		if input.Body.Description != nil {
			w.Description = *input.Body.Description
		}
		if input.Body.IsActive != nil {
			w.IsActive = *input.Body.IsActive
		}
		for _, step := range input.Body.Steps {
			w.Steps = append(w.Steps, domain.WorkflowStep{
				ID:                  valueOrNew(step.ID),
				WorkflowID:          w.ID,
				Name:                step.Name,
				Type:                step.Type,
				Assignee:            step.Assignee,
				DueDateOffsetDays:   step.DueDateOffsetDays,
				EscalationAfterDays: step.EscalationAfterDays,
				EscalationTo:        step.EscalationTo,
				NextStepID:          step.NextStepID,
				ConditionJSON:       step.ConditionJSON,
			})
		}
		if err := e.Repo.InsertWorkflow(ctx, w); err != nil {
			return nil, handleError(err)
		}
		created, err := e.Repo.GetWorkflow(ctx, w.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workflow `json:"body"`
		}{Body: created}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/workflows",
		Summary:     "List workflow templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Workflow `json:"body"`
	}, error) {
		items, err := e.Repo.ListWorkflows(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Workflow `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/workflows/{workflow_id}",
		Summary:     "Get workflow template with steps",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkflowID string `path:"workflow_id"`
	}) (*struct {
		Body domain.Workflow `json:"body"`
	}, error) {
		w, err := e.Repo.GetWorkflow(ctx, input.WorkflowID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workflow `json:"body"`
		}{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-workflow",
		Method:        http.MethodPost,
		Path:          "/workflows/{workflow_id}/instances",
		Summary:       "Start a workflow instance for an entity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		WorkflowID string               `path:"workflow_id"`
		Body       StartInstanceRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowInstance `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		instance, err := e.StartWorkflow(ctx, input.WorkflowID, input.Body.EntityID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowInstance `json:"body"`
		}{Body: instance}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-instances",
		Method:      http.MethodGet,
		Path:        "/workflow-instances",
		Summary:     "List workflow instances",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,completed,paused,escalated,cancelled"`
	}) (*struct {
		Body []domain.WorkflowInstance `json:"body"`
	}, error) {
		items, err := e.Repo.ListInstances(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.WorkflowInstance `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-instance",
		Method:      http.MethodGet,
		Path:        "/workflow-instances/{instance_id}",
		Summary:     "Get workflow instance detail",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
	}) (*struct {
		Body InstanceDetailResponse `json:"body"`
	}, error) {
		instance, err := e.Repo.GetInstance(ctx, input.InstanceID)
		if err != nil {
			return nil, handleError(err)
		}
		steps, err := e.Repo.ListStepInstances(ctx, input.InstanceID)
		if err != nil {
			return nil, handleError(err)
		}
		escalations, err := e.Repo.ListEscalations(ctx, input.InstanceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InstanceDetailResponse `json:"body"`
		}{Body: InstanceDetailResponse{Instance: instance, Steps: steps, Escalations: escalations}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-step",
		Method:      http.MethodPost,
		Path:        "/workflow-instances/{instance_id}/complete-step",
		Summary:     "Complete the named step and advance the instance",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		InstanceID string              `path:"instance_id"`
		Body       CompleteStepRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowInstance `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		instance, err := e.CompleteStep(ctx, input.InstanceID, input.Body.StepID, actorID, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowInstance `json:"body"`
		}{Body: instance}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "escalate-step",
		Method:      http.MethodPost,
		Path:        "/workflow-instances/{instance_id}/escalate-step",
		Summary:     "Escalate the named step to its escalation target",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		InstanceID string              `path:"instance_id"`
		Body       EscalateStepRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowInstance `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		instance, err := e.EscalateStep(ctx, input.InstanceID, input.Body.StepID, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowInstance `json:"body"`
		}{Body: instance}, nil
	})

	for _, op := range []struct {
		id, pathSuffix, status, summary string
	}{
		{"pause-instance", "pause", "paused", "Pause an active instance"},
		{"resume-instance", "resume", "active", "Resume a paused or escalated instance"},
		{"cancel-instance", "cancel", "cancelled", "Cancel a paused instance"},
	} {
		status := op.status
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        "/workflow-instances/{instance_id}/" + op.pathSuffix,
			Summary:     op.summary,
			Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
		}, func(ctx context.Context, input *struct {
			InstanceID string `path:"instance_id"`
		}) (*struct {
			Body domain.WorkflowInstance `json:"body"`
		}, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			instance, err := e.SetInstanceStatus(ctx, input.InstanceID, status, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.WorkflowInstance `json:"body"`
			}{Body: instance}, nil
		})
	}
}

// RuleResponse is a stored rule plus any validation warnings from the last
// write.
type RuleResponse struct {
	Rule     domain.Rule `json:"rule"`
	Warnings []string    `json:"warnings,omitempty"`
}

func registerRules(api huma.API, e engine.Engine) {
	toRule := func(req RuleRequest) domain.Rule {
		rl := domain.Rule{
			Name:          req.Name,
			Description:   req.Description,
			TargetEntity:  req.TargetEntity,
			ConditionJSON: req.ConditionJSON,
			ActionJSON:    req.ActionJSON,
			IsActive:      true,
		}
		if req.IsActive != nil {
			rl.IsActive = *req.IsActive
		}
		return rl
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-rule",
		Method:        http.MethodPost,
		Path:          "/rules",
		Summary:       "Create rule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body RuleRequest `json:"body"`
	}) (*struct {
		Body RuleResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		created, warnings, err := e.CreateRule(ctx, toRule(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RuleResponse `json:"body"`
		}{Body: RuleResponse{Rule: created, Warnings: warnings}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodGet,
		Path:        "/rules",
		Summary:     "List rules",
	}, func(ctx context.Context, input *struct {
		TargetEntity string `query:"target_entity"`
		Active       bool   `query:"active" doc:"Only active rules"`
	}) (*struct {
		Body []domain.Rule `json:"body"`
	}, error) {
		items, err := e.Repo.ListRules(ctx, input.TargetEntity, input.Active)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Rule `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-rule",
		Method:      http.MethodGet,
		Path:        "/rules/{rule_id}",
		Summary:     "Get rule",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID string `path:"rule_id"`
	}) (*struct {
		Body domain.Rule `json:"body"`
	}, error) {
		rl, err := e.Repo.GetRule(ctx, input.RuleID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rule `json:"body"`
		}{Body: rl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-rule",
		Method:      http.MethodPut,
		Path:        "/rules/{rule_id}",
		Summary:     "Replace rule definition",
		Description: "Updates are full replacements; the stored version is incremented.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		RuleID string      `path:"rule_id"`
		Body   RuleRequest `json:"body"`
	}) (*struct {
		Body RuleResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		updated, warnings, err := e.UpdateRule(ctx, input.RuleID, toRule(input.Body), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RuleResponse `json:"body"`
		}{Body: RuleResponse{Rule: updated, Warnings: warnings}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "test-rule",
		Method:      http.MethodPost,
		Path:        "/rules/{rule_id}/test",
		Summary:     "Dry-run a rule against test data",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID string          `path:"rule_id"`
		Body   TestRuleRequest `json:"body"`
	}) (*struct {
		Body engine.RuleTestResult `json:"body"`
	}, error) {
		out, err := e.TestRule(ctx, input.RuleID, input.Body.TestData)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.RuleTestResult `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-rules",
		Method:      http.MethodPost,
		Path:        "/rules/run",
		Summary:     "Run all active rules for an entity kind against a record",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body struct {
			TargetEntity string         `json:"target_entity"`
			Record       map[string]any `json:"record"`
		} `json:"body"`
	}) (*struct {
		Body []rules.Result `json:"body"`
	}, error) {
		if input.Body.TargetEntity == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "target_entity is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		applied, err := e.RunRules(ctx, input.Body.TargetEntity, input.Body.Record, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []rules.Result `json:"body"`
		}{Body: applied}, nil
	})
}

func registerSchedules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-schedule",
		Method:        http.MethodPost,
		Path:          "/schedules",
		Summary:       "Create compliance evaluation schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateScheduleRequest `json:"body"`
	}) (*struct {
		Body domain.ComplianceSchedule `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.FrequencyDays <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "frequency_days must be positive", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetProject(ctx, input.Body.ProjectID); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Repo.GetStandard(ctx, input.Body.StandardID); err != nil {
			return nil, handleError(err)
		}
		s := domain.ComplianceSchedule{
			ID:            valueOrNew(input.Body.ID),
			ProjectID:     input.Body.ProjectID,
			StandardID:    input.Body.StandardID,
			FrequencyDays: input.Body.FrequencyDays,
			NextRunAt:     input.Body.NextRunAt,
			IsActive:      true,
			CreatedAt:     e.Timestamp(),
		}
		if err := e.Repo.InsertSchedule(ctx, s); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ComplianceSchedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-schedules",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/schedules",
		Summary:     "List a project's evaluation schedules",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.ComplianceSchedule `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSchedules(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ComplianceSchedule `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-schedules",
		Method:      http.MethodPost,
		Path:        "/sweeps/schedules",
		Summary:     "Run all due evaluation schedules",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.SweepReport `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		report, err := e.SweepDueSchedules(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SweepReport `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-workflows",
		Method:      http.MethodPost,
		Path:        "/sweeps/workflows",
		Summary:     "Escalate overdue workflow steps",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.SweepReport `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		report, err := e.SweepOverdueSteps(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SweepReport `json:"body"`
		}{Body: report}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List notifications for the authenticated actor",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Unread bool `query:"unread" doc:"Only unread notifications"`
		Limit  int  `query:"limit"`
	}) (*struct {
		Body []domain.Notification `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListNotifications(ctx, actorID, input.Unread, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Notification `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPost,
		Path:        "/notifications/{notification_id}/read",
		Summary:     "Mark a notification read",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		NotificationID string `path:"notification_id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.MarkNotificationRead(ctx, input.NotificationID, e.Timestamp()); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List audit events after a cursor",
	}, func(ctx context.Context, input *struct {
		Cursor    int64  `query:"cursor"`
		Limit     int    `query:"limit"`
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		items, err := e.Repo.EventsAfter(ctx, limit, input.Cursor, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func registerPredictions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "predict-risk",
		Method:      http.MethodPost,
		Path:        "/predictions/risk",
		Summary:     "Predict risk score and severity",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body PredictRiskRequest `json:"body"`
	}) (*struct {
		Body predict.Prediction `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		out, err := e.Predictor.PredictRisk(ctx, predict.Input{
			ProjectID:   input.Body.ProjectID,
			RiskID:      input.Body.RiskID,
			Category:    input.Body.Category,
			Probability: input.Body.Probability,
			Impact:      input.Body.Impact,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body predict.Prediction `json:"body"`
		}{Body: out}, nil
	})
}

func valueOrNew(id *string) string {
	if id != nil && strings.TrimSpace(*id) != "" {
		return *id
	}
	return uuid.New().String()
}
