package main

import (
	"errors"
	"sort"

	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/spf13/cobra"
)

var errAuditFailed = errors.New("org chart audit failed")

type danglingRef struct {
	MemberID  string `json:"member_id"`
	ReportsTo string `json:"reports_to"`
}

type checkReport struct {
	Members    int           `json:"members"`
	Placed     int           `json:"placed"`
	Root       string        `json:"root"`
	Detached   []string      `json:"detached"`
	Excluded   []string      `json:"excluded"`
	Duplicates []string      `json:"duplicates"`
	Dangling   []danglingRef `json:"dangling"`
}

func (r checkReport) Healthy() bool {
	return len(r.Excluded) == 0 && len(r.Dangling) == 0 && len(r.Duplicates) == 0
}

func newCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report members that cannot be placed under the root",
		RunE: func(cmd *cobra.Command, args []string) error {
			members, topLevel, err := loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			report := audit(members, topLevel)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Excluded) > 0 || (strict && !report.Healthy()) {
				return errAuditFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on dangling references and duplicate ids too")
	return cmd
}

func audit(members []orgtree.Member, topLevel orgtree.Role) checkReport {
	tree := orgtree.BuildTree(members, orgtree.WithTopLevelRole(topLevel))

	report := checkReport{
		Members:    len(members),
		Detached:   []string{},
		Excluded:   []string{},
		Duplicates: []string{},
		Dangling:   []danglingRef{},
	}
	if tree == nil {
		return report
	}

	report.Placed = tree.Len()
	report.Excluded = append(report.Excluded, tree.Excluded...)
	report.Duplicates = append(report.Duplicates, tree.Duplicates...)
	if tree.Root != nil {
		report.Root = tree.Root.Member.ID
	}
	for _, d := range tree.Detached {
		report.Detached = append(report.Detached, d.Member.ID)
	}

	known := make(map[string]struct{}, len(members))
	for _, m := range members {
		known[m.ID] = struct{}{}
	}
	for _, m := range members {
		if !m.HasManager() {
			continue
		}
		if _, ok := known[m.ReportsTo]; !ok {
			report.Dangling = append(report.Dangling, danglingRef{MemberID: m.ID, ReportsTo: m.ReportsTo})
		}
	}
	sort.Slice(report.Dangling, func(i, j int) bool {
		return report.Dangling[i].MemberID < report.Dangling[j].MemberID
	})

	return report
}
