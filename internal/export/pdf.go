package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/orgchart/internal/orgtree"
)

const indent = "    "

func RenderPDF(tree *orgtree.Tree, at time.Time) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Org chart", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Generated "+at.UTC().Format("2006-01-02 15:04 MST"), props.Text{
			Size:  9,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Member", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Role", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Email", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Status", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	rows := Flatten(tree)
	if len(rows) == 0 {
		m.AddRow(10, text.NewCol(12, "No members.", props.Text{Size: 9}))
	}

	current := SectionTree
	for _, r := range rows {
		if r.Section != current {
			current = r.Section
			m.AddRow(12, text.NewCol(12, "Detached branches", props.Text{
				Style: fontstyle.Bold,
				Size:  11,
				Top:   4,
			}))
		}
		m.AddRow(7,
			text.NewCol(6, strings.Repeat(indent, r.Depth)+r.FullName, props.Text{Size: 9}),
			text.NewCol(2, r.Role, props.Text{Size: 9}),
			text.NewCol(3, r.Email, props.Text{Size: 8}),
			text.NewCol(1, activeLabel(r.Active), props.Text{Size: 8, Align: align.Right}),
		)
	}

	if tree != nil && len(tree.Excluded) > 0 {
		m.AddRow(12, text.NewCol(12, "Unplaced members (reporting cycle)", props.Text{
			Style: fontstyle.Bold,
			Size:  11,
			Top:   4,
		}))
		m.AddRow(10, text.NewCol(12, strings.Join(tree.Excluded, ", "), props.Text{Size: 9}))
	}
	if tree != nil && len(tree.Duplicates) > 0 {
		m.AddRow(10, text.NewCol(12, fmt.Sprintf("Duplicate ids ignored: %s", strings.Join(tree.Duplicates, ", ")), props.Text{Size: 9}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
