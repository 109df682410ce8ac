// Package export renders an org tree as a printable PDF or an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/orgchart/internal/orgtree"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported_format")

func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case FormatPDF, "":
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, v)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

func (f Format) Filename(at time.Time) string {
	return fmt.Sprintf("org-chart-%s.%s", at.UTC().Format("20060102"), f)
}

// Document is the rendered output of one export.
type Document struct {
	Format      Format
	Filename    string
	ContentType string
	Body        []byte
}

func Render(format Format, tree *orgtree.Tree, at time.Time) (Document, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatPDF:
		body, err = RenderPDF(tree, at)
	case FormatXLSX:
		body, err = RenderXLSX(tree)
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Document{}, err
	}
	return Document{
		Format:      format,
		Filename:    format.Filename(at),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// Section says where a row sits in the chart.
type Section string

const (
	SectionTree     Section = "tree"
	SectionDetached Section = "detached"
)

type Row struct {
	Section  Section
	Depth    int
	ID       string
	FullName string
	Email    string
	Role     string
	Manager  string
	Active   bool
}

// Flatten lists the root subtree depth-first followed by each detached
// branch.
func Flatten(tree *orgtree.Tree) []Row {
	if tree == nil || tree.Root == nil {
		return nil
	}

	rows := make([]Row, 0, tree.Len())
	detached := make(map[*orgtree.Node]struct{}, len(tree.Detached))
	for _, d := range tree.Detached {
		detached[d] = struct{}{}
	}

	section := SectionTree
	tree.Walk(func(n *orgtree.Node, depth int) bool {
		if _, ok := detached[n]; ok && depth == 0 {
			section = SectionDetached
		}
		rows = append(rows, Row{
			Section:  section,
			Depth:    depth,
			ID:       n.Member.ID,
			FullName: n.Member.FullName,
			Email:    n.Member.Email,
			Role:     string(n.Member.Role),
			Manager:  n.Member.ReportsTo,
			Active:   n.Member.IsActive,
		})
		return true
	})
	return rows
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}
