package server

import (
	"assetline/internal/domain"
	"assetline/internal/pipeline"
	"assetline/internal/visibility"
)

// Request payloads

type LoginRequest struct {
	Secret string `json:"secret"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Actor string `json:"actor"`
}

type CreateAssetRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description *string  `json:"description,omitempty"`
	Link        *string  `json:"link,omitempty"`
	Stages      []string `json:"stages,omitempty"`
	AssignedTo  *string  `json:"assigned_to,omitempty"`
	Reviewer    *string  `json:"reviewer,omitempty"`
	Deadline    *string  `json:"deadline,omitempty" format:"date"`
}

type UpdateAssetRequest struct {
	Name        *string        `json:"name,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Description *string        `json:"description,omitempty"`
	Link        *string        `json:"link,omitempty"`
	Stages      []string       `json:"stages,omitempty"`
	AssignedTo  *string        `json:"assigned_to,omitempty"`
	Reviewer    *string        `json:"reviewer,omitempty"`
	Deadline    *string        `json:"deadline,omitempty" format:"date"`
	Status      *domain.Status `json:"status,omitempty" enum:"todo,wip,review,needs_fix,done,cancelled"`
}

type StageStatusRequest struct {
	Status domain.Status `json:"status" enum:"todo,wip,review,needs_fix,done,cancelled"`
}

type StageEditRequest struct {
	AssignedTo *string `json:"assigned_to,omitempty"`
	Reviewer   *string `json:"reviewer,omitempty"`
	Deadline   *string `json:"deadline,omitempty" format:"date"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

type IssueRequest struct {
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

type NoteRequest struct {
	Text string `json:"text"`
}

type RosterRequest struct {
	Name string `json:"name"`
}

type RenameRequest struct {
	To string `json:"to"`
}

type ReorderRequest struct {
	Order []string `json:"order"`
}

// Response payloads

type AssetResponse struct {
	domain.Asset
	Escalated bool           `json:"escalated,omitempty"`
	Flags     pipeline.Flags `json:"flags"`
}

type RosterResponse struct {
	Names []string `json:"names"`
}

func assetResponse(a domain.Asset) AssetResponse {
	a = a.Normalize()
	return AssetResponse{Asset: a, Flags: pipeline.AssetFlags(a)}
}

func mapView(items []visibility.Item) []AssetResponse {
	out := make([]AssetResponse, 0, len(items))
	for _, it := range items {
		r := assetResponse(it.Asset)
		r.Escalated = it.Escalated
		out = append(out, r)
	}
	return out
}
