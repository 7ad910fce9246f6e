// Package queue talks to the CI task queue and its index: resolving indexed
// tasks, walking task groups, and fetching artifacts.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

// ErrNotFound reports a missing index path, task, or artifact.
var ErrNotFound = errors.New("queue: not found")

// Config for the queue client.
type Config struct {
	RootURL string        `yaml:"root_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client is a read-only queue API client. All GETs retry transient
// failures; a 404 is final and maps to ErrNotFound.
type Client struct {
	rootURL string
	http    *http.Client
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rootURL: strings.TrimRight(cfg.RootURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// FindIndexedTask resolves an index path to the task it points at.
func (c *Client) FindIndexedTask(ctx context.Context, indexPath string) (string, error) {
	var out struct {
		TaskID string `json:"taskId"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("%s/index/v1/task/%s", c.rootURL, indexPath), &out)
	if err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// TaskGroupID returns the task group a task belongs to.
func (c *Client) TaskGroupID(ctx context.Context, taskID string) (string, error) {
	var out struct {
		TaskGroupID string `json:"taskGroupId"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("%s/queue/v1/task/%s", c.rootURL, taskID), &out)
	if err != nil {
		return "", err
	}
	return out.TaskGroupID, nil
}

// FetchJSONArtifact fetches a task artifact and decodes it into out.
func (c *Client) FetchJSONArtifact(ctx context.Context, taskID, name string, out any) error {
	return c.getJSON(ctx, fmt.Sprintf("%s/queue/v1/task/%s/artifacts/%s", c.rootURL, taskID, name), out)
}

type listedTask struct {
	Status struct {
		TaskID string `json:"taskId"`
		State  string `json:"state"`
		Runs   []struct {
			ReasonResolved string `json:"reasonResolved"`
		} `json:"runs"`
	} `json:"status"`
	Task struct {
		Tags struct {
			Label string `json:"label"`
		} `json:"tags"`
		Extra struct {
			Treeherder struct {
				Tier int `json:"tier"`
			} `json:"treeherder"`
		} `json:"extra"`
	} `json:"task"`
}

// ListTaskGroup walks every page of a task group and maps its test tasks.
// Tasks above maxTier are dropped; they never count toward classification.
func (c *Client) ListTaskGroup(ctx context.Context, groupID string, maxTier int) ([]*domain.Task, error) {
	var tasks []*domain.Task
	token := ""
	for {
		u := fmt.Sprintf("%s/queue/v1/task-group/%s/list?limit=1000", c.rootURL, groupID)
		if token != "" {
			u += "&continuationToken=" + url.QueryEscape(token)
		}

		var page struct {
			Tasks             []listedTask `json:"tasks"`
			ContinuationToken string       `json:"continuationToken"`
		}
		if err := c.getJSON(ctx, u, &page); err != nil {
			return nil, err
		}

		for _, lt := range page.Tasks {
			tier := lt.Task.Extra.Treeherder.Tier
			if tier > maxTier {
				continue
			}
			tasks = append(tasks, mapTask(lt, tier))
		}

		if page.ContinuationToken == "" {
			return tasks, nil
		}
		token = page.ContinuationToken
	}
}

// TaskGroupResults fetches the per-group outcomes a test task uploaded.
// Tasks without the artifact (non-test tasks, crashed runs) report no
// groups rather than an error.
func (c *Client) TaskGroupResults(ctx context.Context, taskID string) ([]domain.GroupResult, error) {
	var report struct {
		Groups map[string]struct {
			OK       bool  `json:"ok"`
			Duration int64 `json:"duration"`
		} `json:"groups"`
	}
	err := c.FetchJSONArtifact(ctx, taskID, "public/test_info/test-groups.json", &report)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]domain.GroupResult, 0, len(report.Groups))
	for name, g := range report.Groups {
		// The artifact reports durations in milliseconds.
		results = append(results, domain.GroupResult{
			Group:    name,
			OK:       g.OK,
			Duration: time.Duration(g.Duration) * time.Millisecond,
		})
	}
	return results, nil
}

func mapTask(lt listedTask, tier int) *domain.Task {
	t := &domain.Task{
		ID:    lt.Status.TaskID,
		Label: lt.Task.Tags.Label,
		Tier:  tier,
	}
	switch lt.Status.State {
	case "unscheduled":
		t.State = domain.TaskStateUnscheduled
	case "pending":
		t.State = domain.TaskStatePending
	case "running":
		t.State = domain.TaskStateRunning
	default:
		t.State = domain.TaskStateCompleted
	}
	if t.State == domain.TaskStateCompleted {
		t.Result = domain.TaskResultFailed
		if lt.Status.State == "completed" && lastRunPassed(lt) {
			t.Result = domain.TaskResultPassed
		}
	}
	return t
}

func lastRunPassed(lt listedTask) bool {
	runs := lt.Status.Runs
	if len(runs) == 0 {
		return false
	}
	return runs[len(runs)-1].ReasonResolved == "completed"
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	backoff := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(out)
		case resp.StatusCode == http.StatusNotFound:
			io.Copy(io.Discard, resp.Body)
			return ErrNotFound
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("queue: status %d for %s", resp.StatusCode, url))
		default:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("queue: status %d for %s", resp.StatusCode, url)
		}
	})
}
