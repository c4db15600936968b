package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) ListJobs(ctx context.Context, q JobQuery) (*JobPage, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Location != "" {
		v.Set("location", q.Location)
	}
	if q.Type != "" {
		v.Set("type", string(q.Type))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/jobs"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out JobPage
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.getJSON(ctx, "/jobs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApplyToJob(ctx context.Context, jobID, coverLetter string) (*Application, error) {
	var out Application
	body := map[string]string{"coverLetter": coverLetter}
	if err := c.sendJSON(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/apply", true, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMyApplications(ctx context.Context) ([]Application, error) {
	var out []Application
	err := c.getJSON(ctx, "/applications/me", &out)
	return out, err
}
