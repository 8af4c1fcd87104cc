// Package provision grants access once a request is approved. Hooks are
// best effort: a failed grant is reported but never changes request status.
package provision

import (
	"context"
	"fmt"
	"regexp"

	"github.com/viant/accessflow/model/access"
)

// Result reports the outcome of a grant.
type Result struct {
	OK      bool   `json:"ok"`
	Granted string `json:"granted,omitempty"`
	Target  string `json:"dataset,omitempty"`
	Member  string `json:"member,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Hook grants access for an approved request.
type Hook interface {
	Provision(ctx context.Context, r *access.Request) (*Result, error)
}

// Func adapts a function to Hook.
type Func func(ctx context.Context, r *access.Request) (*Result, error)

func (f Func) Provision(ctx context.Context, r *access.Request) (*Result, error) {
	return f(ctx, r)
}

// Noop grants nothing and always succeeds.
type Noop struct{}

func (Noop) Provision(context.Context, *access.Request) (*Result, error) {
	return &Result{OK: true}, nil
}

var bigQueryLink = regexp.MustCompile(`^//bigquery\.googleapis\.com/projects/([^/]+)/datasets/([^/]+)/tables/([^/]+)`)

// BigQueryTable identifies a table addressed by a linked resource.
type BigQueryTable struct {
	Project string
	Dataset string
	Table   string
}

// DatasetID returns project.dataset.
func (t *BigQueryTable) DatasetID() string {
	return t.Project + "." + t.Dataset
}

// ParseBigQueryLink parses //bigquery.googleapis.com/projects/P/datasets/D/tables/T.
func ParseBigQueryLink(link string) (*BigQueryTable, bool) {
	m := bigQueryLink.FindStringSubmatch(link)
	if m == nil {
		return nil, false
	}
	return &BigQueryTable{Project: m[1], Dataset: m[2], Table: m[3]}, true
}

// BigQuery computes the dataset-level grant for a BigQuery table link. It
// performs no IAM call.
type BigQuery struct{}

func (BigQuery) Provision(ctx context.Context, r *access.Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	table, ok := ParseBigQueryLink(r.LinkedResource)
	if !ok {
		return &Result{OK: false, Error: "unsupported linked_resource"}, nil
	}
	granted := "DATASET_READER"
	switch r.AccessLevel {
	case access.AccessWriter, access.AccessOwner:
		granted = "DATASET_WRITER"
	}
	if r.RequesterEmail == "" {
		return nil, fmt.Errorf("request %s has no requester", r.ID)
	}
	return &Result{
		OK:      true,
		Granted: granted,
		Target:  table.DatasetID(),
		Member:  "user:" + r.RequesterEmail,
	}, nil
}
