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
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"assetline/internal/domain"
	"assetline/internal/pipeline"
	"assetline/internal/visibility"
	"assetline/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Pipeline *pipeline.Pipeline
	BasePath string
	Auth     AuthConfig
	TokenTTL time.Duration
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"stage_locked"`
	Message string         `json:"message" example:"stage Surfacing is locked"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Assetline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
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
	hcfg := huma.DefaultConfig("Assetline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg)
	registerAssets(group, cfg.Pipeline)
	registerStages(group, cfg.Pipeline)
	registerComments(group, cfg.Pipeline)
	registerIssues(group, cfg.Pipeline)
	registerNotes(group, cfg.Pipeline)
	registerRosters(group, cfg.Pipeline)
	registerEvents(group, cfg.Pipeline)
	registerOpenAPI(router, api, basePath)

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
	var pe workflow.PermissionError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{
			"role": pe.Role.String(), "target": string(pe.Target),
		})
	}
	var le workflow.LockedError
	if errors.As(err, &le) {
		return newAPIError(http.StatusConflict, "stage_locked", err.Error(), map[string]any{"stage": le.Stage})
	}
	var ve pipeline.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, pipeline.ErrAdminOnly) {
		return newAPIError(http.StatusForbidden, "admin_only", err.Error(), nil)
	}
	if errors.Is(err, pipeline.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
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

// actorFromContext resolves the authenticated principal into the acting
// identity. The admin flag holds only when the token's subject is the
// administrator identity.
func actorFromContext(ctx context.Context, p *pipeline.Pipeline) (pipeline.Actor, huma.StatusError) {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return pipeline.Actor{}, authErr
	}
	return pipeline.Actor{
		ID:    principal.ActorID,
		Admin: principal.Admin && principal.ActorID == p.AdminID,
	}, nil
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
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
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
	open := map[string]bool{
		path.Join("/", basePath, "health"):     true,
		path.Join("/", basePath, "auth/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
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
    <title>Assetline API Docs</title>
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

func registerAuth(api huma.API, cfg Config) {
	p := cfg.Pipeline
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange the administrator secret for a token",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if !p.CheckSecret(input.Body.Secret) {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "wrong administrator secret", nil)
		}
		token, err := MintToken(cfg.Auth.JWTSecret, p.AdminID, true, p.Now(), cfg.TokenTTL)
		if err != nil {
			return nil, handleError(err)
		}
		p.Events.Append("admin.login", "session", "", p.AdminID, nil)
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, Actor: p.AdminID}}, nil
	})
}

func registerAssets(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "list-assets",
		Method:      http.MethodGet,
		Path:        "/assets",
		Summary:     "List visible assets",
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
		Status   string `query:"status"`
		Assignee string `query:"assignee"`
	}) (*struct {
		Body []AssetResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		f := visibility.Filter{
			Category: input.Category,
			Status:   domain.Status(input.Status),
			Assignee: input.Assignee,
		}
		return &struct {
			Body []AssetResponse `json:"body"`
		}{Body: mapView(p.View(f, actor))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-asset",
		Method:        http.MethodPost,
		Path:          "/assets",
		Summary:       "Create asset",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAssetRequest `json:"body"`
	}) (*struct {
		Body AssetResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		opts := pipeline.CreateAssetOptions{
			Name:     input.Body.Name,
			Category: input.Body.Category,
			Stages:   input.Body.Stages,
			Deadline: input.Body.Deadline,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.Link != nil {
			opts.Link = *input.Body.Link
		}
		if input.Body.AssignedTo != nil {
			opts.AssignedTo = *input.Body.AssignedTo
		}
		if input.Body.Reviewer != nil {
			opts.Reviewer = *input.Body.Reviewer
		}
		a, err := p.CreateAsset(ctx, actor, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssetResponse `json:"body"`
		}{Body: assetResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-asset",
		Method:      http.MethodGet,
		Path:        "/assets/{asset_id}",
		Summary:     "Get asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
	}) (*struct {
		Body AssetResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx, p); authErr != nil {
			return nil, authErr
		}
		a, err := p.Asset(input.AssetID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssetResponse `json:"body"`
		}{Body: assetResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-asset",
		Method:      http.MethodPatch,
		Path:        "/assets/{asset_id}",
		Summary:     "Update asset",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64              `path:"asset_id"`
		Body    UpdateAssetRequest `json:"body"`
	}) (*struct {
		Body AssetResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		var raw map[string]json.RawMessage
		_ = json.Unmarshal(bodyBytes(ctx), &raw)
		_, deadlineSet := raw["deadline"]
		a, err := p.UpdateAsset(ctx, actor, input.AssetID, pipeline.UpdateAssetOptions{
			Name:        input.Body.Name,
			Category:    input.Body.Category,
			Description: input.Body.Description,
			Link:        input.Body.Link,
			Stages:      input.Body.Stages,
			AssignedTo:  input.Body.AssignedTo,
			Reviewer:    input.Body.Reviewer,
			Deadline:    input.Body.Deadline,
			SetDeadline: deadlineSet,
			Status:      input.Body.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssetResponse `json:"body"`
		}{Body: assetResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-asset",
		Method:        http.MethodDelete,
		Path:          "/assets/{asset_id}",
		Summary:       "Delete asset",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.DeleteAsset(ctx, actor, input.AssetID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerStages(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "set-stage-status",
		Method:      http.MethodPut,
		Path:        "/assets/{asset_id}/stages/{stage}/status",
		Summary:     "Transition one stage",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AssetID int64              `path:"asset_id"`
		Stage   string             `path:"stage"`
		Body    StageStatusRequest `json:"body"`
	}) (*struct {
		Body AssetResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		a, err := p.SetStageStatus(ctx, actor, input.AssetID, input.Stage, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssetResponse `json:"body"`
		}{Body: assetResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-stage",
		Method:      http.MethodPatch,
		Path:        "/assets/{asset_id}/stages/{stage}",
		Summary:     "Edit stage assignee, reviewer or deadline",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64            `path:"asset_id"`
		Stage   string           `path:"stage"`
		Body    StageEditRequest `json:"body"`
	}) (*struct {
		Body AssetResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		var raw map[string]json.RawMessage
		_ = json.Unmarshal(bodyBytes(ctx), &raw)
		_, deadlineSet := raw["deadline"]
		a, err := p.EditStage(ctx, actor, input.AssetID, input.Stage, pipeline.StageEdit{
			AssignedTo:  input.Body.AssignedTo,
			Reviewer:    input.Body.Reviewer,
			Deadline:    input.Body.Deadline,
			SetDeadline: deadlineSet,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssetResponse `json:"body"`
		}{Body: assetResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stage-targets",
		Method:      http.MethodGet,
		Path:        "/assets/{asset_id}/stages/{stage}/targets",
		Summary:     "Statuses the caller may set on this stage",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64  `path:"asset_id"`
		Stage   string `path:"stage"`
	}) (*struct {
		Body []domain.Status `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		targets, err := p.AllowedTargets(actor, input.AssetID, input.Stage)
		if err != nil {
			return nil, handleError(err)
		}
		if targets == nil {
			targets = []domain.Status{}
		}
		return &struct {
			Body []domain.Status `json:"body"`
		}{Body: targets}, nil
	})
}

func registerComments(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/assets/{asset_id}/comments",
		Summary:       "Comment on an asset",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64          `path:"asset_id"`
		Body    CommentRequest `json:"body"`
	}) (*struct{}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.AddComment(ctx, actor, input.AssetID, input.Body.Text); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerIssues(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID:   "report-issue",
		Method:        http.MethodPost,
		Path:          "/assets/{asset_id}/issues",
		Summary:       "Report an issue against one stage",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64        `path:"asset_id"`
		Body    IssueRequest `json:"body"`
	}) (*struct{}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.ReportIssue(ctx, actor, input.AssetID, input.Body.Stage, input.Body.Description); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-issue",
		Method:      http.MethodPost,
		Path:        "/assets/{asset_id}/issues/{index}/resolve",
		Summary:     "Resolve an issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64 `path:"asset_id"`
		Index   int   `path:"index"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.ResolveIssue(ctx, actor, input.AssetID, input.Index); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerNotes(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notes",
		Method:      http.MethodGet,
		Path:        "/assets/{asset_id}/notes",
		Summary:     "Notes filed under an asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID  int64  `path:"asset_id"`
		Category string `query:"category"`
	}) (*struct {
		Body []domain.Note `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx, p); authErr != nil {
			return nil, authErr
		}
		if _, err := p.Asset(input.AssetID); err != nil {
			return nil, handleError(err)
		}
		notes := p.NotesFor(input.AssetID, input.Category)
		if notes == nil {
			notes = []domain.Note{}
		}
		return &struct {
			Body []domain.Note `json:"body"`
		}{Body: notes}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-note",
		Method:        http.MethodPost,
		Path:          "/assets/{asset_id}/notes",
		Summary:       "File a note under an asset",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AssetID int64       `path:"asset_id"`
		Body    NoteRequest `json:"body"`
	}) (*struct{}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.AddNote(ctx, actor, input.AssetID, input.Body.Text); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

type rosterOps struct {
	kind   string
	list   func() []string
	add    func(context.Context, pipeline.Actor, string) error
	rename func(context.Context, pipeline.Actor, string, string) error
	remove func(context.Context, pipeline.Actor, string) error
}

func registerRosters(api huma.API, p *pipeline.Pipeline) {
	for _, r := range []rosterOps{
		{"users", func() []string { return p.Users.Value() }, p.AddUser, p.RenameUser, p.RemoveUser},
		{"roles", func() []string { return p.Roles.Value() }, p.AddRole, p.RenameRole, p.RemoveRole},
		{"categories", func() []string { return p.Categories.Value() }, p.AddCategory, nil, p.RemoveCategory},
	} {
		registerRoster(api, p, r)
	}

	huma.Register(api, huma.Operation{
		OperationID: "reorder-categories",
		Method:      http.MethodPut,
		Path:        "/categories/order",
		Summary:     "Reorder categories and re-sort assets to match",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body RosterResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := p.ReorderCategories(ctx, actor, input.Body.Order); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RosterResponse `json:"body"`
		}{Body: RosterResponse{Names: p.Categories.Value()}}, nil
	})
}

func registerRoster(api huma.API, p *pipeline.Pipeline, r rosterOps) {
	huma.Register(api, huma.Operation{
		OperationID: "list-" + r.kind,
		Method:      http.MethodGet,
		Path:        "/" + r.kind,
		Summary:     "List " + r.kind,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RosterResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx, p); authErr != nil {
			return nil, authErr
		}
		names := r.list()
		if names == nil {
			names = []string{}
		}
		return &struct {
			Body RosterResponse `json:"body"`
		}{Body: RosterResponse{Names: names}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-" + r.kind,
		Method:        http.MethodPost,
		Path:          "/" + r.kind,
		Summary:       "Add to " + r.kind,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body RosterRequest `json:"body"`
	}) (*struct{}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := r.add(ctx, actor, input.Body.Name); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	if r.rename != nil {
		huma.Register(api, huma.Operation{
			OperationID: "rename-" + r.kind,
			Method:      http.MethodPatch,
			Path:        "/" + r.kind + "/{name}",
			Summary:     "Rename in " + r.kind,
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			Name string `path:"name"`
			Body RenameRequest
		}) (*struct{}, error) {
			if len(bodyBytes(ctx)) == 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
			}
			actor, authErr := actorFromContext(ctx, p)
			if authErr != nil {
				return nil, authErr
			}
			if err := r.rename(ctx, actor, input.Name, input.Body.To); err != nil {
				return nil, handleError(err)
			}
			return &struct{}{}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID:   "remove-" + r.kind,
		Method:        http.MethodDelete,
		Path:          "/" + r.kind + "/{name}",
		Summary:       "Remove from " + r.kind,
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx, p)
		if authErr != nil {
			return nil, authErr
		}
		if err := r.remove(ctx, actor, input.Name); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, p *pipeline.Pipeline) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []map[string]any `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx, p); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		out := make([]map[string]any, 0, limit)
		for _, ev := range p.Events.Recent(limit) {
			out = append(out, map[string]any{
				"type":        ev.Type,
				"entity_kind": ev.EntityKind,
				"entity_id":   ev.EntityID,
				"actor_id":    ev.ActorID,
				"ts":          ev.TS,
				"payload":     ev.Payload,
			})
		}
		return &struct {
			Body []map[string]any `json:"body"`
		}{Body: out}, nil
	})
}
