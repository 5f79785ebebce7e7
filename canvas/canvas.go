// Package canvas fetches courses and unsubmitted assignments from the Canvas
// LMS REST API.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"canvastrmnl/lms"
	"canvastrmnl/logger"
)

// Location names the call that failed.
type Location string

const (
	FetchCourses           Location = "fetchCourses"
	FetchCourseAssignments Location = "fetchCourseAssignments"
)

// Reason classifies a failed call.
type Reason string

const (
	RequestError          Reason = "requestError"
	JSONParseError        Reason = "jsonParseError"
	SchemaValidationError Reason = "schemaValidationError"
)

// FetchError reports where a fetch stopped and why. CourseID is only set for
// FetchCourseAssignments.
type FetchError struct {
	Location Location
	CourseID int64
	Reason   Reason
	Err      error
}

func (e *FetchError) Error() string {
	msg := "canvas: " + string(e.Location)
	if e.Location == FetchCourseAssignments {
		msg += fmt.Sprintf(" (course %d)", e.CourseID)
	}
	msg += ": " + string(e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config addresses one Canvas instance on behalf of one user.
type Config struct {
	BaseURL *url.URL
	Token   string
}

// Canvas pages list endpoints; this is the largest page size it honours.
const perPage = 100

// Upper bound on pages followed for a single listing.
const maxPages = 50

var log = logger.Named("canvas")

type Client struct {
	HTTP *http.Client
}

func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HTTP: hc}
}

// Auxiliary structures for decoding responses. Pointer fields distinguish
// missing or null values from zero values.

type courseJSON struct {
	ID   *int64  `json:"id"`
	Name *string `json:"name"`
}

type assignmentJSON struct {
	ID          *int64  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DueAt       *string `json:"due_at"`
}

type callError struct {
	reason Reason
	err    error
}

// get fetches every page of a list endpoint and returns the raw JSON array
// elements.
func (c *Client) get(ctx context.Context, cfg Config, u *url.URL) ([]json.RawMessage, *callError) {
	var items []json.RawMessage
	next := u.String()

	for page := 0; next != "" && page < maxPages; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, &callError{RequestError, err}
		}
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			log.Warn("Fetch error to `%s`: %v", u.Path, err)
			return nil, &callError{RequestError, err}
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &callError{RequestError, err}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &callError{RequestError, fmt.Errorf("status %d", resp.StatusCode)}
		}

		var probe any
		if err := json.Unmarshal(body, &probe); err != nil {
			log.Warn("Parsing json error: %v", err)
			return nil, &callError{JSONParseError, err}
		}
		if _, ok := probe.([]any); !ok {
			return nil, &callError{SchemaValidationError, fmt.Errorf("expected a JSON array")}
		}
		var pageItems []json.RawMessage
		if err := json.Unmarshal(body, &pageItems); err != nil {
			return nil, &callError{SchemaValidationError, err}
		}
		items = append(items, pageItems...)

		next = nextLink(resp.Header.Get("Link"), u)
	}
	if next != "" {
		log.Warn("Stopped listing `%s` after %d pages, later items are dropped.", u.Path, maxPages)
	}
	return items, nil
}

// nextLink extracts the rel="next" target of a Link header. Links to other
// hosts are ignored so the token is never sent elsewhere.
func nextLink(header string, base *url.URL) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		isNext := false
		for _, param := range segs[1:] {
			if strings.ReplaceAll(strings.TrimSpace(param), `"`, "") == "rel=next" {
				isNext = true
			}
		}
		if !isNext {
			continue
		}
		u, err := base.Parse(target[1 : len(target)-1])
		if err != nil || u.Host != base.Host {
			return ""
		}
		return u.String()
	}
	return ""
}

func endpoint(cfg Config, path string, query url.Values) *url.URL {
	u := cfg.BaseURL.ResolveReference(&url.URL{Path: path})
	query.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = query.Encode()
	return u
}

// FetchCourses lists the user's active courses.
func (c *Client) FetchCourses(ctx context.Context, cfg Config) ([]lms.Course, error) {
	u := endpoint(cfg, "/api/v1/courses", url.Values{
		"enrollment_state": {"active"},
		"state[]":          {"available"},
	})

	raw, cerr := c.get(ctx, cfg, u)
	if cerr != nil {
		return nil, &FetchError{Location: FetchCourses, Reason: cerr.reason, Err: cerr.err}
	}

	courses := make([]lms.Course, 0, len(raw))
	for _, r := range raw {
		var cj courseJSON
		if err := json.Unmarshal(r, &cj); err != nil || cj.ID == nil || cj.Name == nil {
			return nil, &FetchError{Location: FetchCourses, Reason: SchemaValidationError, Err: err}
		}
		courses = append(courses, lms.Course{ID: *cj.ID, Name: *cj.Name})
	}
	return courses, nil
}

// FetchCourseAssignments lists the unsubmitted assignments of one course,
// ordered by due date.
func (c *Client) FetchCourseAssignments(ctx context.Context, cfg Config, courseID int64) ([]lms.Assignment, error) {
	path := "/api/v1/courses/" + url.PathEscape(strconv.FormatInt(courseID, 10)) + "/assignments"
	u := endpoint(cfg, path, url.Values{
		"order_by": {"due_at"},
		"bucket":   {"unsubmitted"},
	})

	fail := func(reason Reason, err error) error {
		return &FetchError{Location: FetchCourseAssignments, CourseID: courseID, Reason: reason, Err: err}
	}

	raw, cerr := c.get(ctx, cfg, u)
	if cerr != nil {
		return nil, fail(cerr.reason, cerr.err)
	}

	assignments := make([]lms.Assignment, 0, len(raw))
	for _, r := range raw {
		var aj assignmentJSON
		if err := json.Unmarshal(r, &aj); err != nil || aj.ID == nil || aj.Name == nil {
			return nil, fail(SchemaValidationError, err)
		}
		a := lms.Assignment{
			ID:       *aj.ID,
			CourseID: courseID,
			Name:     *aj.Name,
		}
		if aj.Description != nil {
			a.Description = *aj.Description
		}
		if aj.DueAt != nil {
			due, err := time.Parse(time.RFC3339, *aj.DueAt)
			if err != nil {
				return nil, fail(SchemaValidationError, err)
			}
			a.DueAt = &due
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// FetchAll fetches the user's courses, then the assignments of each named
// course in turn. The first failure aborts the fetch.
func (c *Client) FetchAll(ctx context.Context, cfg Config) (lms.Data, error) {
	data := lms.NewData()

	courses, err := c.FetchCourses(ctx, cfg)
	if err != nil {
		return lms.Data{}, err
	}

	var order []int64
	for _, course := range courses {
		if course.Name == "" {
			continue
		}
		if _, dup := data.Courses[course.ID]; !dup {
			order = append(order, course.ID)
		}
		data.Courses[course.ID] = course
	}

	for _, id := range order {
		assignments, err := c.FetchCourseAssignments(ctx, cfg, id)
		if err != nil {
			return lms.Data{}, err
		}
		for _, a := range assignments {
			data.Assignments[a.ID] = a
		}
	}
	return data, nil
}
