package main

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/services/report"
)

// refresh reloads the snapshot and checks sectionID, if any, names a known section.
func (cli *commandLine) refresh(sectionID string) (stats.Collections, error) {
	if err := cli.snap.Refresh(context.Background()); err != nil {
		return stats.Collections{}, err
	}
	c := cli.snap.Collections()
	if sectionID == "" {
		return c, nil
	}
	for _, sec := range c.Sections {
		if sec.ID == sectionID {
			return c, nil
		}
	}
	return stats.Collections{}, core.NewNotFoundError("section", sectionID)
}

func (cli *commandLine) stats(sectionID string) error {
	usr, err := cli.currentFaculty()
	if err != nil {
		return err
	}
	c, err := cli.refresh(sectionID)
	if err != nil {
		return err
	}

	d := stats.Dashboard(c, sectionID)
	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Students\t%d\n", d.TotalStudents)
	fmt.Fprintf(w, "Experiments\t%d\n", d.TotalExperiments)
	fmt.Fprintf(w, "Completed experiments\t%d\n", d.CompletedExperiments)
	fmt.Fprintf(w, "Pending experiments\t%d\n", d.PendingExperiments)
	fmt.Fprintf(w, "Completed vivas\t%d\n", d.CompletedVivas)
	fmt.Fprintf(w, "Pending vivas\t%d\n", d.PendingVivas)
	fmt.Fprintf(w, "Completion rate\t%.1f%%\n", d.CompletionRate)
	fmt.Fprintf(w, "Average viva score\t%.1f%%\n", d.AverageScorePercent)

	if sectionID == "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Section\tStudents\tCompleted\tVivas\tRate")
		for _, s := range stats.SectionSummaries(c, usr.ID) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\n",
				s.Section.Name, s.StudentCount, s.CompletedExperiments, s.CompletedVivas, s.CompletionRate)
		}
	}
	return w.Flush()
}

func (cli *commandLine) export(out, sectionID, email string) error {
	if _, err := cli.currentFaculty(); err != nil {
		return err
	}
	var to *mail.Address
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "email", Error: "must be a valid email address"})
		}
		to = addr
	}
	c, err := cli.refresh(sectionID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	rows := reportsvc.ProgressRows(c, sectionID)
	if err := reportsvc.WriteProgressXLSX(&buf, rows); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", out)
	}
	fmt.Fprintf(cli.out, "%d rows written to %s\n", len(rows), out)

	if to == nil {
		return nil
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{*to},
		Subject: fmt.Sprintf("[%s] Lab progress export", cli.conf.AppName),
		BodyStr: fmt.Sprintf("The lab progress export (%d rows) is attached.", len(rows)),
	}
	if err := msg.Attach(&buf, filepath.Base(out), reportsvc.ContentType); err != nil {
		return err
	}
	cli.mailer.SendMessages(msg)
	fmt.Fprintf(cli.out, "sent to %s\n", to.Address)
	return nil
}
