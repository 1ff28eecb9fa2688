// Package tableapi is the RecordService backed by the record store's REST
// table API.
package tableapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/problem-portal/internal/collaborator"
	"github.com/psds-microservice/problem-portal/internal/logger"
	"github.com/psds-microservice/problem-portal/internal/model"
	"github.com/psds-microservice/problem-portal/internal/stats"
)

const (
	tableProblem   = "problem"
	tableKnowledge = "kb_knowledge"
	tableFeedback  = "kb_feedback"
	tableChoice    = "sys_choice"

	searchLimit   = 100
	solutionLimit = 10
	statsLimit    = 500

	communityCategory = "community_solutions"
)

var problemFields = strings.Join([]string{
	"sys_id", "number", "short_description", "description", "priority", "state",
	"category", "sys_updated_on", "sys_created_on", "assigned_to", "impact", "urgency", "active",
}, ",")

// StatusError is a non-2xx answer from the table API.
type StatusError struct {
	Table  string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tableapi: %s: status %d", e.Table, e.Status)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
	log        *logger.Logger
}

var _ collaborator.RecordService = (*Client)(nil)

// NewClient returns a client for baseURL (scheme and host, no path). token is
// sent as X-UserToken when set. timeout bounds every request.
func NewClient(baseURL, token string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		log:        log.With("component", "tableapi"),
	}
}

func (c *Client) FetchProblems(ctx context.Context, q collaborator.Query) ([]model.ProblemRecord, error) {
	params := url.Values{}
	params.Set("sysparm_display_value", "all")
	params.Set("sysparm_query", ProblemQuery(q, c.now()))
	params.Set("sysparm_limit", strconv.Itoa(q.PageSize()))
	params.Set("sysparm_fields", problemFields)
	var out []model.ProblemRecord
	if err := c.list(ctx, tableProblem, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SearchProblems(ctx context.Context, term string, q collaborator.Query) ([]model.ProblemRecord, error) {
	limit := q.PageSize()
	if limit > searchLimit {
		limit = searchLimit
	}
	params := url.Values{}
	params.Set("sysparm_display_value", "all")
	params.Set("sysparm_query", SearchQuery(term, q))
	params.Set("sysparm_limit", strconv.Itoa(limit))
	params.Set("sysparm_fields", problemFields)
	var out []model.ProblemRecord
	if err := c.list(ctx, tableProblem, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// knowledgeRecord is a kb_knowledge row with display/value pairs.
type knowledgeRecord struct {
	ID              model.Field `json:"sys_id"`
	Title           model.Field `json:"short_description"`
	Text            model.Field `json:"text"`
	Author          model.Field `json:"author"`
	CreatedAt       model.Field `json:"sys_created_on"`
	HelpfulCount    model.Field `json:"helpful_count"`
	NotHelpfulCount model.Field `json:"not_helpful_count"`
}

func (k knowledgeRecord) article() model.SolutionArticle {
	published, _ := k.CreatedAt.Time()
	return model.SolutionArticle{
		ID:              k.ID.Value(),
		Title:           k.Title.Display(),
		BodyHTML:        k.Text.Display(),
		Author:          k.Author.Display(),
		PublishedAt:     published,
		HelpfulCount:    atoi(k.HelpfulCount.Value()),
		NotHelpfulCount: atoi(k.NotHelpfulCount.Value()),
	}
}

func (c *Client) FetchRelatedSolutions(ctx context.Context, problemID string) ([]model.SolutionArticle, error) {
	query, err := RelatedSolutionsQuery(problemID)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("sysparm_display_value", "all")
	params.Set("sysparm_query", query)
	params.Set("sysparm_limit", strconv.Itoa(solutionLimit))
	var rows []knowledgeRecord
	if err := c.list(ctx, tableKnowledge, params, &rows); err != nil {
		return nil, err
	}
	out := make([]model.SolutionArticle, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.article())
	}
	return out, nil
}

// SubmitSolution files body as a draft community article for review.
func (c *Client) SubmitSolution(ctx context.Context, problemID, body string) (collaborator.Ack, error) {
	return c.create(ctx, tableKnowledge, map[string]string{
		"short_description": "Community Solution for Problem: " + problemID,
		"text":              body,
		"workflow_state":    "draft",
		"kb_category":       communityCategory,
	})
}

func (c *Client) SubmitVote(ctx context.Context, solutionID string, helpful bool) (collaborator.Ack, error) {
	payload := map[string]string{
		"article":  solutionID,
		"helpful":  "no",
		"comments": "This did not resolve my issue.",
	}
	if helpful {
		payload["helpful"] = "yes"
		payload["comments"] = "This solution worked for me!"
	}
	return c.create(ctx, tableFeedback, payload)
}

func (c *Client) FetchChoiceList(ctx context.Context, entityKind, fieldName string) ([]model.Choice, error) {
	params := url.Values{}
	params.Set("sysparm_query", ChoiceQuery(entityKind, fieldName))
	params.Set("sysparm_fields", "value,label")
	params.Set("sysparm_display_value", "true")
	params.Set("sysparm_order_by", "sequence")
	var out []model.Choice
	if err := c.list(ctx, tableChoice, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchStats summarizes up to statsLimit scalar rows; the table API has no
// aggregate endpoint the portal may call. Rows carry raw values so groups are
// keyed the same way as every other stats path.
func (c *Client) FetchStats(ctx context.Context) (model.Stats, error) {
	params := url.Values{}
	params.Set("sysparm_fields", "state,priority,category,active")
	params.Set("sysparm_display_value", "false")
	params.Set("sysparm_exclude_reference_link", "true")
	params.Set("sysparm_limit", strconv.Itoa(statsLimit))
	var rows []model.ProblemRecord
	if err := c.list(ctx, tableProblem, params, &rows); err != nil {
		return model.Stats{}, err
	}
	return stats.Summarize(rows), nil
}

type listEnvelope struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) list(ctx context.Context, table string, params url.Values, out any) error {
	endpoint := c.baseURL + "/api/now/table/" + table + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("tableapi: new request: %w", err)
	}
	raw, err := c.do(req, table)
	if err != nil {
		return err
	}
	var env listEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("tableapi: decode %s: %w", table, err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("tableapi: decode %s result: %w", table, err)
	}
	return nil
}

// create posts a new row. 4xx answers mean the store refused the write and
// come back as a not-accepted Ack; transport failures and 5xx are errors.
func (c *Client) create(ctx context.Context, table string, payload any) (collaborator.Ack, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return collaborator.Ack{}, fmt.Errorf("tableapi: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/now/table/"+table, bytes.NewReader(body))
	if err != nil {
		return collaborator.Ack{}, fmt.Errorf("tableapi: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req, table)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
			c.log.Warn("write refused", "table", table, "status", se.Status)
			return collaborator.Ack{Accepted: false}, nil
		}
		return collaborator.Ack{}, err
	}
	var created struct {
		Result struct {
			ID model.Field `json:"sys_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return collaborator.Ack{Accepted: true}, nil
	}
	return collaborator.Ack{Accepted: true, ID: created.Result.ID.Value()}, nil
}

func (c *Client) do(req *http.Request, table string) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-UserToken", c.token)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tableapi: %s: %w", table, err)
	}
	defer resp.Body.Close()
	c.log.Debug("table api call", "method", req.Method, "table", table, "status", resp.StatusCode, "took", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Table: table, Status: resp.StatusCode}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tableapi: read %s: %w", table, err)
	}
	return raw, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
