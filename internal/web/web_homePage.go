package web

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/go-while/go-timebook-web/internal/models"
	"github.com/go-while/go-timebook-web/internal/tickets"
)

// homePage shows the running entry and today's entries
func (s *WebServer) homePage(c *gin.Context) {
	ctx := c.Request.Context()
	ts := timesheetFrom(c)
	ucfg := userConfigFrom(c)
	lookup := tickets.NewConnector(ts, ucfg.Chiliproject())

	current, err := ts.CurrentEntry(ctx, config.DefaultSheet)
	switch {
	case errors.Is(err, database.ErrNoEntries):
		current = nil
	case err != nil:
		s.fail(c, err)
		return
	default:
		if err := s.attachMeta(c, ts, lookup, current); err != nil {
			s.fail(c, err)
			return
		}
	}

	todays, err := ts.EntriesToday(ctx, config.DefaultSheet)
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, row := range todays {
		if err := s.attachMeta(c, ts, lookup, row); err != nil {
			s.fail(c, err)
			return
		}
	}

	data := HomePageData{
		TemplateData: s.getBaseTemplateData(c, "Snapshot"),
		Current:      current,
		TodaysTasks:  todays,
		HoursTotal:   models.SumHours(todays).InexactFloat64(),
	}
	s.renderTemplate(c, ucfg.SnapshotTemplate(), data)
}

// attachMeta loads the details and ticket of row
func (s *WebServer) attachMeta(c *gin.Context, ts *database.Timesheet, lookup models.TicketLookup, row *models.TimesheetRow) error {
	meta, err := ts.EntryMeta(c.Request.Context(), row.ID)
	if err != nil {
		return err
	}
	row.Meta = meta
	return row.ResolveTicket(c.Request.Context(), lookup)
}
