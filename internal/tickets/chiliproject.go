// Package tickets resolves ticket numbers through the timesheet's ticket
// cache and, when configured, a Chiliproject (Redmine API) server.
package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/go-while/go-timebook-web/internal/models"
)

const DefaultTimeout = 5 * time.Second

// Store is the ticket cache
type Store interface {
	TicketDetails(ctx context.Context, number int64) (*models.TicketDetails, error)
	SaveTicketDetails(ctx context.Context, td *models.TicketDetails) error
}

// Connector looks tickets up in the cache first and falls back to the
// Chiliproject server
type Connector struct {
	Store  Store
	Config config.Chiliproject
	Client *http.Client

	// resolved per request, misses are not retried
	seen map[int64]*models.TicketDetails
}

// NewConnector returns a connector for one request
func NewConnector(store Store, cfg config.Chiliproject) *Connector {
	return &Connector{
		Store:  store,
		Config: cfg,
		Client: &http.Client{Timeout: DefaultTimeout},
		seen:   make(map[int64]*models.TicketDetails),
	}
}

// URL returns the issue page of number, empty without a server
func (c *Connector) URL(number int64) string {
	if c.Config.URL == "" {
		return ""
	}
	return c.Config.URL + "/issues/" + strconv.FormatInt(number, 10)
}

// Lookup returns the details of number. It returns nil details without an
// error when the ticket is unknown.
func (c *Connector) Lookup(ctx context.Context, number int64) (*models.TicketDetails, error) {
	if td, ok := c.seen[number]; ok {
		return td, nil
	}
	td, err := c.Store.TicketDetails(ctx, number)
	switch {
	case err == nil:
		c.seen[number] = td
		return td, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	if c.Config.URL == "" {
		c.seen[number] = nil
		return nil, nil
	}
	td, err = c.fetch(ctx, number)
	if err != nil {
		log.Printf("[TICKETS]: remote lookup of #%d failed: %v", number, err)
		c.seen[number] = nil
		return nil, nil
	}
	if err := c.Store.SaveTicketDetails(ctx, td); err != nil {
		log.Printf("[TICKETS]: caching #%d failed: %v", number, err)
	}
	c.seen[number] = td
	return td, nil
}

// issueResponse is the part of GET /issues/<n>.json we use
type issueResponse struct {
	Issue struct {
		ID      int64  `json:"id"`
		Subject string `json:"subject"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Project struct {
			Name string `json:"name"`
		} `json:"project"`
	} `json:"issue"`
}

func (c *Connector) fetch(ctx context.Context, number int64) (*models.TicketDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(number)+".json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Config.Username != "" {
		req.SetBasicAuth(c.Config.Username, c.Config.Password)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", req.URL, resp.Status)
	}

	var ir issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode issue #%d: %w", number, err)
	}
	info := models.TicketInfo{
		Subject: ir.Issue.Subject,
		Status:  ir.Issue.Status.Name,
		Project: ir.Issue.Project.Name,
	}
	details, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return &models.TicketDetails{Number: number, Project: info.Project, Details: details}, nil
}
