package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/database"
	"github.com/go-while/go-timebook-web/internal/report"
)

const defaultChartDays = 30

// chartsParams are the filter form values. A present but empty start or
// end leaves that side of the range open.
type chartsParams struct {
	Start    string
	End      string
	Projects []string
}

func (s *WebServer) parseChartsParams(c *gin.Context) chartsParams {
	today := s.Clock()
	p := chartsParams{
		Start: today.AddDate(0, 0, -defaultChartDays).Format(database.DateLayout),
		End:   today.Format(database.DateLayout),
	}
	if v, ok := c.GetQuery("start"); ok {
		p.Start = v
	}
	if v, ok := c.GetQuery("end"); ok {
		p.End = v
	}
	p.Projects = append(c.QueryArray("project"), c.QueryArray("project[]")...)
	return p
}

func parseDay(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(database.DateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date %q (want YYYY-MM-DD)", name, v)
	}
	return d, nil
}

func (p chartsParams) filter() (database.ChartFilter, error) {
	start, err := parseDay("start", p.Start)
	if err != nil {
		return database.ChartFilter{}, err
	}
	end, err := parseDay("end", p.End)
	if err != nil {
		return database.ChartFilter{}, err
	}
	return database.ChartFilter{Start: start, End: end, Projects: p.Projects}, nil
}

// chartsPage renders the billable share and hours per project by day
func (s *WebServer) chartsPage(c *gin.Context) {
	ctx := c.Request.Context()
	ts := timesheetFrom(c)

	params := s.parseChartsParams(c)
	filter, err := params.filter()
	if err != nil {
		s.failWithStatus(c, http.StatusBadRequest, err)
		return
	}

	days, err := ts.UntrackedDays(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	untracked := report.UntrackedSet(days)

	billable, err := ts.BillableByDay(ctx, config.DefaultSheet, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	billableData, err := report.BillableSeries(billable, untracked)
	if err != nil {
		s.fail(c, err)
		return
	}

	allProjects, err := ts.AllProjects(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	projects, err := ts.ProjectsInRange(ctx, config.DefaultSheet, filter)
	if err != nil {
		s.fail(c, err)
		return
	}

	var byDay []report.ProjectDay
	if len(projects) > 0 {
		hours, err := ts.ProjectHoursByDay(ctx, config.DefaultSheet, filter)
		if err != nil {
			s.fail(c, err)
			return
		}
		byDay, err = report.ProjectSeries(hours, projects, untracked)
		if err != nil {
			s.fail(c, err)
			return
		}
	}

	data := ChartsPageData{
		TemplateData:  s.getBaseTemplateData(c, "Charts"),
		BillableData:  billableData,
		AllClientList: allProjects,
		ClientList:    projects,
		ClientByDay:   byDay,
		Start:         params.Start,
		End:           params.End,
		Project:       params.Projects,
	}
	s.renderTemplate(c, "dailygraph.html", data)
}
