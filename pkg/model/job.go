package model

import (
	"fmt"
	"strings"
)

// Job is a record placed in a graph. It is immutable once built.
type Job struct {
	// ID is the record's position in the input sequence.
	ID int
	// Produces holds the deduplicated produced labels (ts).
	Produces []string
	// Consumes holds the deduplicated consumed labels (ds).
	Consumes []string
	// Text is the canonical serialization of Record, used for matching and display.
	Text string

	Record Record
}

// NewJob builds the Job for the record at position id.
func NewJob(id int, rec Record) Job {
	return Job{
		ID:       id,
		Produces: FlattenLabels(rec.Ts),
		Consumes: FlattenLabels(rec.Ds),
		Text:     rec.Canonical(),
		Record:   rec,
	}
}

// Contains reports whether the job text contains every token.
// Matching is case-sensitive and literal.
func (j *Job) Contains(tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(j.Text, tok) {
			return false
		}
	}
	return true
}

// Title is a short one-line label for lists: "#id type desc".
func (j *Job) Title() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d", j.ID)
	if j.Record.T != "" {
		b.WriteString(" ")
		b.WriteString(j.Record.T)
	}
	if d := j.Record.Description(); d != "" {
		b.WriteString(" ")
		b.WriteString(d)
	}
	return b.String()
}

// Status returns "ok" for succeeded jobs and "pending" otherwise.
func (j *Job) Status() string {
	if j.Record.Successed {
		return "ok"
	}
	return "pending"
}
