package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quantifier/internal/core"
)

const dateLayout = "2006-01-02"

var errBadID = errors.New("invalid id")

// pathID parses the {id} route segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q", errBadID, raw)
	}
	return id, nil
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// rollupParams holds the parsed query string of a rollup request.
type rollupParams struct {
	date     time.Time
	interval core.Interval
}

// parseRollupParams reads date and interval from the query string. The date
// defaults to today; an unparseable date or unknown interval is an error so
// callers get a 400 instead of a silently different view.
func parseRollupParams(r *http.Request) (rollupParams, error) {
	params := rollupParams{date: time.Now()}

	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return rollupParams{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
		}
		params.date = parsed
	}
	if v := strings.TrimSpace(r.URL.Query().Get("interval")); v != "" {
		interval, err := core.ParseInterval(v)
		if err != nil {
			return rollupParams{}, err
		}
		params.interval = interval
	}
	return params, nil
}

// listParams holds the parsed query string of a quantity list request.
type listParams struct {
	categoryID int64
	dateRange  *core.DateRange
	limit      int
}

func parseListParams(r *http.Request) (listParams, error) {
	params := listParams{limit: 100}
	query := r.URL.Query()

	if v := strings.TrimSpace(query.Get("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return listParams{}, fmt.Errorf("invalid category_id %q", v)
		}
		params.categoryID = id
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			return listParams{}, fmt.Errorf("invalid limit %q: want 1-1000", v)
		}
		params.limit = limit
	}

	from := strings.TrimSpace(query.Get("from"))
	to := strings.TrimSpace(query.Get("to"))
	if from != "" || to != "" {
		var rng core.DateRange
		if from != "" {
			parsed, err := time.Parse(dateLayout, from)
			if err != nil {
				return listParams{}, fmt.Errorf("invalid from date %q: want YYYY-MM-DD", from)
			}
			rng.Start = parsed
		}
		if to != "" {
			parsed, err := time.Parse(dateLayout, to)
			if err != nil {
				return listParams{}, fmt.Errorf("invalid to date %q: want YYYY-MM-DD", to)
			}
			rng.End = parsed
		}
		params.dateRange = &rng
	}
	return params, nil
}

// projectRequest is the JSON body for project create and update.
type projectRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Interval           string `json:"interval"`
	IntervalQuantity   *int64 `json:"interval_quantity"`
	GoalMode           bool   `json:"goal_mode"`
	QuantityName       string `json:"quantity_name"`
	QuickAddQuantities string `json:"quick_add_quantities"`
	SortOrder          int    `json:"sort_order"`
}

func (req projectRequest) toProject(id int64) (core.Project, error) {
	interval := core.IntervalNone
	if req.Interval != "" {
		parsed, err := core.ParseInterval(req.Interval)
		if err != nil {
			return core.Project{}, err
		}
		interval = parsed
	}
	return core.Project{
		ID:                 id,
		Name:               strings.TrimSpace(req.Name),
		Description:        strings.TrimSpace(req.Description),
		Interval:           interval,
		IntervalQuantity:   req.IntervalQuantity,
		GoalMode:           req.GoalMode,
		QuantityName:       strings.TrimSpace(req.QuantityName),
		QuickAddQuantities: strings.TrimSpace(req.QuickAddQuantities),
		SortOrder:          req.SortOrder,
	}, nil
}

// categoryRequest is the JSON body for category create and update.
type categoryRequest struct {
	ParentID         int64  `json:"parent_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ExpectedQuantity *int64 `json:"expected_quantity"`
	SortOrder        int    `json:"sort_order"`
}

func (req categoryRequest) toCategory(id, projectID int64) core.Category {
	return core.Category{
		ID:               id,
		ProjectID:        projectID,
		ParentID:         req.ParentID,
		Name:             strings.TrimSpace(req.Name),
		Description:      strings.TrimSpace(req.Description),
		ExpectedQuantity: req.ExpectedQuantity,
		SortOrder:        req.SortOrder,
	}
}

// quantityRequest is the JSON body for quantity record and update.
type quantityRequest struct {
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       int64  `json:"value"`
	RecordedOn  string `json:"recorded_on"`
}

func (req quantityRequest) toQuantity(id int64) (core.Quantity, error) {
	recorded := core.Date{Time: time.Now()}
	if v := strings.TrimSpace(req.RecordedOn); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return core.Quantity{}, fmt.Errorf("invalid recorded_on %q: want YYYY-MM-DD", v)
		}
		recorded = core.Date{Time: parsed}
	}
	return core.Quantity{
		ID:          id,
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Value:       req.Value,
		RecordedOn:  recorded,
	}, nil
}
