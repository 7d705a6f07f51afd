package domain

// Status is the lifecycle state of a single stage within an asset.
// It is also used for the asset-level overall status.
type Status string

const (
	StatusTodo      Status = "todo"
	StatusWIP       Status = "wip"
	StatusReview    Status = "review"
	StatusNeedsFix  Status = "needs_fix"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusTodo, StatusWIP, StatusReview, StatusNeedsFix, StatusDone, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, k := range Statuses {
		if s == k {
			return true
		}
	}
	return false
}

// Asset is the unit of production work moving through ordered stages.
type Asset struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Description string                 `json:"description,omitempty"`
	Link        string                 `json:"link,omitempty"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   string                 `json:"created_at" format:"date-time"`
	Stages      []string               `json:"stages"`
	Status      Status                 `json:"status" enum:"todo,wip,review,needs_fix,done,cancelled"`
	Details     map[string]StageDetail `json:"stage_details,omitempty"`

	// Legacy flat fields. Older records carry only these; Normalize backfills
	// them into Details the first time the record is read.
	AssignedTo string  `json:"assigned_to,omitempty"`
	Reviewer   string  `json:"reviewer,omitempty"`
	Deadline   *string `json:"deadline,omitempty" format:"date"`

	Comments []Comment `json:"comments"`
	Issues   []Issue   `json:"issues"`
}

// StageDetail is the per (asset, stage) record.
type StageDetail struct {
	Status     Status  `json:"status" enum:"todo,wip,review,needs_fix,done,cancelled"`
	AssignedTo string  `json:"assigned_to,omitempty"`
	Reviewer   string  `json:"reviewer,omitempty"`
	Deadline   *string `json:"deadline,omitempty" format:"date"`
	StartedAt  *string `json:"started_at,omitempty" format:"date-time"`
	EndedAt    *string `json:"ended_at,omitempty" format:"date-time"`
}

// Comment is a free-text remark on an asset. Append-only.
type Comment struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

// Issue flags a problem against one stage of an asset. Creation is
// append-only; the only mutation is flipping Resolved to true once.
type Issue struct {
	Description string  `json:"description"`
	Stage       string  `json:"stage"`
	ReportedBy  string  `json:"reported_by"`
	Timestamp   string  `json:"timestamp" format:"date-time"`
	Resolved    bool    `json:"resolved"`
	ResolvedAt  *string `json:"resolved_at,omitempty" format:"date-time"`
}

// Note is free text filed under the category its asset had at creation
// time. Notes live outside the asset record, keyed by asset id.
type Note struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Category  string `json:"category"`
}

// Detail returns the StageDetail for stage, falling back to a record
// synthesized from the legacy flat fields when the map has no entry.
// Unknown stages resolve to the same synthesized default.
func (a Asset) Detail(stage string) StageDetail {
	if d, ok := a.Details[stage]; ok {
		return d
	}
	return StageDetail{
		Status:     StatusTodo,
		AssignedTo: a.AssignedTo,
		Reviewer:   a.Reviewer,
		Deadline:   a.Deadline,
	}
}

// Normalize backfills the Details map from the legacy flat fields so that
// every stage in the sequence has exactly one entry. It is idempotent: a
// record that already carries a full Details map is returned unchanged.
func (a Asset) Normalize() Asset {
	missing := false
	for _, s := range a.Stages {
		if _, ok := a.Details[s]; !ok {
			missing = true
			break
		}
	}
	if !missing {
		return a
	}
	details := make(map[string]StageDetail, len(a.Stages))
	for s, d := range a.Details {
		details[s] = d
	}
	for _, s := range a.Stages {
		if _, ok := details[s]; !ok {
			details[s] = StageDetail{
				Status:     StatusTodo,
				AssignedTo: a.AssignedTo,
				Reviewer:   a.Reviewer,
				Deadline:   a.Deadline,
			}
		}
	}
	a.Details = details
	return a
}

// NormalizeAssets applies Normalize to every asset in place-safe fashion:
// the input slice is never mutated.
func NormalizeAssets(assets []Asset) []Asset {
	out := make([]Asset, len(assets))
	for i, a := range assets {
		out[i] = a.Normalize()
	}
	return out
}

// ActiveIssues counts unresolved issues on the asset.
func (a Asset) ActiveIssues() int {
	n := 0
	for _, is := range a.Issues {
		if !is.Resolved {
			n++
		}
	}
	return n
}
