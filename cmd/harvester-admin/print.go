package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/review-harvester/internal/adapters/sources"
	"github.com/target/review-harvester/internal/domain/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func printJobs(w io.Writer, jobs []*model.Job) error {
	if len(jobs) == 0 {
		return writeln(w, "No jobs found.")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tStatus\tFilter\tCompany\tStarted\tCompleted\tTotal\tInserted\tErrors"); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}
	for _, j := range jobs {
		company := "*"
		if j.CompanyFilter != nil {
			company = *j.CompanyFilter
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			j.ID, j.Status, j.DateFilter, company,
			formatTime(j.StartedAt), formatTime(j.CompletedAt),
			j.TotalReviews, j.SuccessCount, j.ErrorCount,
		); err != nil {
			return fmt.Errorf("write job row: %w", err)
		}
	}
	return tw.Flush()
}

func printJob(w io.Writer, job *model.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	company := "all companies"
	if job.CompanyFilter != nil {
		company = *job.CompanyFilter
	}
	rows := [][2]string{
		{"Job", job.ID},
		{"Status", string(job.Status)},
		{"Date Filter", string(job.DateFilter)},
		{"Company", company},
		{"Started", formatTime(job.StartedAt)},
		{"Completed", formatTime(job.CompletedAt)},
		{"Total Reviews", fmt.Sprint(job.TotalReviews)},
		{"Inserted", fmt.Sprint(job.SuccessCount)},
		{"Failed Pairs", fmt.Sprint(job.ErrorCount)},
	}
	for _, r := range rows {
		if err := writef(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return fmt.Errorf("write job field: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if job.ErrorMessage == nil || *job.ErrorMessage == "" {
		return nil
	}
	if err := writef(w, "\nLog:\n"); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(*job.ErrorMessage, "\n"), "\n") {
		if err := writef(w, "  %s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func printCompanies(w io.Writer, companies []*model.Company) error {
	if len(companies) == 0 {
		return writeln(w, "No companies found.")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "Name\tMember\tPortals"); err != nil {
		return fmt.Errorf("write companies header: %w", err)
	}
	for _, c := range companies {
		portals := make([]string, 0, len(c.SourceURLs))
		for p, u := range c.SourceURLs {
			if strings.TrimSpace(u) != "" {
				portals = append(portals, p)
			}
		}
		sort.Strings(portals)
		list := "-"
		if len(portals) > 0 {
			list = strings.Join(portals, ",")
		}
		if err := writef(tw, "%s\t%t\t%s\n", c.Name, c.IsMember, list); err != nil {
			return fmt.Errorf("write company row: %w", err)
		}
	}
	return tw.Flush()
}

func printPortals(w io.Writer, defs []sources.Definition) error {
	if len(defs) == 0 {
		return writeln(w, "No portals defined.")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "Order\tPortal\tKind\tNeeds URL\tMax Pages"); err != nil {
		return fmt.Errorf("write portals header: %w", err)
	}
	for i, d := range defs {
		if err := writef(tw, "%d\t%s\t%s\t%t\t%d\n", i+1, d.ID, d.Kind, d.RequiresURL, d.MaxPages); err != nil {
			return fmt.Errorf("write portal row: %w", err)
		}
	}
	return tw.Flush()
}
