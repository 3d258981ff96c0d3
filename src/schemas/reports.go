package schemas

import (
	"github.com/go-gota/gota/dataframe"
)

// ReportResult is the tabular output of running a saved report definition.
// The dataframe is the canonical form; exporters read columns and records
// from it directly.
type ReportResult struct {
	Name string
	Data *dataframe.DataFrame
}

func (r *ReportResult) Columns() []string {
	return r.Data.Names()
}

// Records returns the data rows, without the header row.
func (r *ReportResult) Records() [][]string {
	records := r.Data.Records()
	if len(records) <= 1 {
		return nil
	}
	return records[1:]
}

func (r *ReportResult) TotalCount() int {
	return r.Data.Nrow()
}

// ReportFile is an exported report ready to be attached to a mail.
type ReportFile struct {
	FileName string
	Format   string
	Content  []byte
}

type MailAttachment struct {
	Filename string
	Content  []byte
}

type MailMessage struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []MailAttachment
}
