// Package vcs reads push metadata from the source-control server's JSON
// API: revision-to-push resolution, push ranges by id, and the bugs a push
// touches.
package vcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/pushwatch/internal/core/domain"
)

var errNotFound = errors.New("vcs: not found")

// Config for the VCS client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Push is one push as the VCS server records it.
type Push struct {
	ID         int
	Rev        string // tip changeset, full hash
	Date       int64
	Changesets []string
	Bugs       map[string]struct{}

	// Merge is set when the tip changeset has more than one parent. Merge
	// pushes have no usable single-parent lineage.
	Merge bool
}

// Client is a read-only VCS API client.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
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
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type changeset struct {
	Node     string   `json:"node"`
	Parents  []string `json:"parents"`
	PushID   int      `json:"pushid"`
	PushDate []int64  `json:"pushdate"`
	Bugs     []struct {
		No string `json:"no"`
	} `json:"bugs"`
}

// PushForRevision resolves a revision to the push containing it. A revision
// the server does not know maps to PushNotFoundError.
func (c *Client) PushForRevision(ctx context.Context, branch, rev string) (*Push, error) {
	var out struct {
		Changesets []changeset `json:"changesets"`
	}
	url := fmt.Sprintf("%s/%s/json-automationrelevance/%s", c.base, branch, rev)
	if err := c.getJSON(ctx, url, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &domain.PushNotFoundError{Rev: rev, Branch: branch, Reason: "unknown revision"}
		}
		return nil, err
	}
	if len(out.Changesets) == 0 {
		return nil, &domain.PushNotFoundError{Rev: rev, Branch: branch, Reason: "revision maps to no changesets"}
	}

	tip := out.Changesets[len(out.Changesets)-1]
	p := &Push{
		ID:    tip.PushID,
		Rev:   tip.Node,
		Merge: len(tip.Parents) > 1,
		Bugs:  map[string]struct{}{},
	}
	if len(tip.PushDate) > 0 {
		p.Date = tip.PushDate[0]
	}
	for _, cs := range out.Changesets {
		p.Changesets = append(p.Changesets, cs.Node)
		for _, b := range cs.Bugs {
			p.Bugs[b.No] = struct{}{}
		}
	}
	return p, nil
}

// PushesByID fetches the pushes with startID < id <= endID, ordered by id.
func (c *Client) PushesByID(ctx context.Context, branch string, startID, endID int) ([]*Push, error) {
	var out struct {
		Pushes map[string]struct {
			Changesets []string `json:"changesets"`
			Date       int64    `json:"date"`
		} `json:"pushes"`
	}
	url := fmt.Sprintf("%s/%s/json-pushes?version=2&startID=%d&endID=%d", c.base, branch, startID, endID)
	if err := c.getJSON(ctx, url, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	pushes := make([]*Push, 0, len(out.Pushes))
	for id, rec := range out.Pushes {
		n, err := strconv.Atoi(id)
		if err != nil || len(rec.Changesets) == 0 {
			continue
		}
		pushes = append(pushes, &Push{
			ID:         n,
			Rev:        rec.Changesets[len(rec.Changesets)-1],
			Date:       rec.Date,
			Changesets: rec.Changesets,
		})
	}
	sort.Slice(pushes, func(i, j int) bool { return pushes[i].ID < pushes[j].ID })
	return pushes, nil
}

// Head returns the newest push on the branch.
func (c *Client) Head(ctx context.Context, branch string) (*Push, error) {
	var out struct {
		Pushes map[string]struct {
			Changesets []string `json:"changesets"`
			Date       int64    `json:"date"`
		} `json:"pushes"`
	}
	url := fmt.Sprintf("%s/%s/json-pushes?version=2&tipsonly=1", c.base, branch)
	if err := c.getJSON(ctx, url, &out); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, &domain.PushNotFoundError{Branch: branch, Reason: "branch has no pushes"}
		}
		return nil, err
	}

	var head *Push
	for id, rec := range out.Pushes {
		n, err := strconv.Atoi(id)
		if err != nil || len(rec.Changesets) == 0 {
			continue
		}
		if head == nil || n > head.ID {
			head = &Push{
				ID:         n,
				Rev:        rec.Changesets[len(rec.Changesets)-1],
				Date:       rec.Date,
				Changesets: rec.Changesets,
			}
		}
	}
	if head == nil {
		return nil, &domain.PushNotFoundError{Branch: branch, Reason: "branch has no pushes"}
	}
	return head, nil
}

// PushByID fetches exactly one push.
func (c *Client) PushByID(ctx context.Context, branch string, id int) (*Push, bool, error) {
	pushes, err := c.PushesByID(ctx, branch, id-1, id)
	if err != nil {
		return nil, false, err
	}
	for _, p := range pushes {
		if p.ID == id {
			return p, true, nil
		}
	}
	return nil, false, nil
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
			return errNotFound
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("vcs: status %d for %s", resp.StatusCode, url))
		default:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("vcs: status %d for %s", resp.StatusCode, url)
		}
	})
}
