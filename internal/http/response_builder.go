package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quantifier/internal/core"
	applog "quantifier/internal/log"
	"quantifier/internal/services"
	"quantifier/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps known domain errors to HTTP statuses; anything
// unrecognized is a 500 with a generic body so internals don't leak.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, core.ErrCategoryNotInTree),
		errors.Is(err, services.ErrProjectMissing):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrRootImmutable),
		errors.Is(err, services.ErrCycle),
		errors.Is(err, services.ErrForeignParent),
		errors.Is(err, services.ErrUnknownParent),
		errors.Is(err, services.ErrCategoryMismatch),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrNegativeValue),
		errors.Is(err, core.ErrNegativeQuantity),
		errors.Is(err, core.ErrMissingCategory):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type projectPayload struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	Interval           string `json:"interval"`
	IntervalQuantity   *int64 `json:"interval_quantity,omitempty"`
	GoalMode           bool   `json:"goal_mode"`
	QuantityName       string `json:"quantity_name,omitempty"`
	QuickAddQuantities string `json:"quick_add_quantities,omitempty"`
	SortOrder          int    `json:"sort_order"`
}

func toProjectPayload(p core.Project) projectPayload {
	return projectPayload{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Interval:           p.Interval.String(),
		IntervalQuantity:   p.IntervalQuantity,
		GoalMode:           p.GoalMode,
		QuantityName:       p.QuantityName,
		QuickAddQuantities: p.QuickAddQuantities,
		SortOrder:          p.SortOrder,
	}
}

type categoryPayload struct {
	ID               int64  `json:"id"`
	ProjectID        int64  `json:"project_id"`
	ParentID         int64  `json:"parent_id,omitempty"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ExpectedQuantity *int64 `json:"expected_quantity,omitempty"`
	SortOrder        int    `json:"sort_order"`
	Level            int    `json:"level"`
	Root             bool   `json:"root,omitempty"`
}

func toCategoryPayload(c core.Category, level int) categoryPayload {
	return categoryPayload{
		ID:               c.ID,
		ProjectID:        c.ProjectID,
		ParentID:         c.ParentID,
		Name:             c.Name,
		Description:      c.Description,
		ExpectedQuantity: c.ExpectedQuantity,
		SortOrder:        c.SortOrder,
		Level:            level,
		Root:             c.IsRoot(),
	}
}

type quantityPayload struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Value       int64  `json:"value"`
	RecordedOn  string `json:"recorded_on"`
}

func toQuantityPayload(q core.Quantity) quantityPayload {
	return quantityPayload{
		ID:          q.ID,
		CategoryID:  q.CategoryID,
		Name:        q.Name,
		Description: q.Description,
		Value:       q.Value,
		RecordedOn:  q.RecordedOn.Format("2006-01-02"),
	}
}

type detailsPayload struct {
	UsedNotExpected int64 `json:"used_not_expected"`
	Expected        int64 `json:"expected"`
	Unexpected      int64 `json:"unexpected"`
	ExpectedNotUsed int64 `json:"expected_not_used"`
}

type availabilityPayload struct {
	Available       int64 `json:"available"`
	ReallyAvailable int64 `json:"really_available"`
	TotalUnexpected int64 `json:"total_unexpected"`
}

type goalPayload struct {
	HasPlan  bool  `json:"has_plan"`
	Planned  int64 `json:"planned"`
	MaxValue int64 `json:"max_value"`
	Diff     int64 `json:"diff"`
	Reached  bool  `json:"reached"`
}

type limitPayload struct {
	Exceeded bool `json:"exceeded"`
}

type recordPayload struct {
	SelfUsed     int64                `json:"self_used"`
	Used         int64                `json:"used"`
	HasChildren  bool                 `json:"has_children"`
	Details      *detailsPayload      `json:"details,omitempty"`
	Availability *availabilityPayload `json:"availability,omitempty"`
	Goal         *goalPayload         `json:"goal,omitempty"`
	Limit        *limitPayload        `json:"limit,omitempty"`
}

func toRecordPayload(rec core.Record) recordPayload {
	out := recordPayload{
		SelfUsed:    rec.SelfUsed,
		Used:        rec.Used,
		HasChildren: rec.HasChildren,
	}
	if rec.Details != nil {
		out.Details = &detailsPayload{
			UsedNotExpected: rec.Details.UsedNotExpected,
			Expected:        rec.Details.Expected,
			Unexpected:      rec.Details.Unexpected,
			ExpectedNotUsed: rec.Details.ExpectedNotUsed,
		}
	}
	if rec.Availability != nil {
		out.Availability = &availabilityPayload{
			Available:       rec.Availability.Available,
			ReallyAvailable: rec.Availability.ReallyAvailable,
			TotalUnexpected: rec.Availability.TotalUnexpected,
		}
	}
	if rec.Goal != nil {
		out.Goal = &goalPayload{
			HasPlan:  rec.Goal.HasPlan,
			Planned:  rec.Goal.Planned,
			MaxValue: rec.Goal.MaxValue,
			Diff:     rec.Goal.Diff,
			Reached:  rec.Goal.Reached,
		}
	}
	if rec.Limit != nil {
		out.Limit = &limitPayload{Exceeded: rec.Limit.Exceeded}
	}
	return out
}

type rollupCategoryPayload struct {
	categoryPayload
	recordPayload
}

type periodPayload struct {
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Previous string `json:"previous"`
	Next     string `json:"next"`
}

type rollupPayload struct {
	Project    projectPayload          `json:"project"`
	Interval   string                  `json:"interval"`
	Date       string                  `json:"date,omitempty"`
	AllTime    bool                    `json:"alltime"`
	NoDetails  bool                    `json:"no_details"`
	Period     *periodPayload          `json:"period,omitempty"`
	Categories []rollupCategoryPayload `json:"categories"`
}

func toRollupPayload(result *services.RollupResult) rollupPayload {
	q := result.Query
	out := rollupPayload{
		Project:   toProjectPayload(result.Project),
		Interval:  q.Interval.String(),
		AllTime:   q.AllTime,
		NoDetails: q.NoDetails,
	}
	if !q.Date.IsZero() {
		out.Date = q.Date.Format("2006-01-02")
	}
	if !q.Date.IsZero() && !q.AllTime && q.Interval != core.IntervalNone {
		rng := core.PeriodRange(q.Date, q.Interval)
		prev, next := core.AdjacentPeriods(q.Date, q.Interval)
		out.Period = &periodPayload{
			Label:    core.PeriodLabel(q.Date, q.Interval),
			Start:    rng.Start.Format("2006-01-02"),
			End:      rng.End.Format("2006-01-02"),
			Previous: prev.Format("2006-01-02"),
			Next:     next.Format("2006-01-02"),
		}
	}

	categories := result.Tree.Categories()
	out.Categories = make([]rollupCategoryPayload, 0, len(categories))
	for _, c := range categories {
		out.Categories = append(out.Categories, rollupCategoryPayload{
			categoryPayload: toCategoryPayload(c, result.Tree.Level(c.ID)),
			recordPayload:   toRecordPayload(result.Records[c.ID]),
		})
	}
	return out
}
