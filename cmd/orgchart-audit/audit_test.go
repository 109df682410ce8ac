package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHealthyChart(t *testing.T) {
	report := audit([]orgtree.Member{
		{ID: "o", Role: orgtree.RoleOwner},
		{ID: "m", Role: orgtree.RoleManager, ReportsTo: "o"},
		{ID: "s", Role: orgtree.RoleStaff, ReportsTo: "m"},
	}, orgtree.RoleOwner)

	assert.True(t, report.Healthy())
	assert.Equal(t, "o", report.Root)
	assert.Equal(t, 3, report.Members)
	assert.Equal(t, 3, report.Placed)
	assert.Empty(t, report.Excluded)
	assert.Empty(t, report.Dangling)
}

func TestAuditFindsCyclesAndDanglingRefs(t *testing.T) {
	report := audit([]orgtree.Member{
		{ID: "o", Role: orgtree.RoleOwner},
		{ID: "a", Role: orgtree.RoleStaff, ReportsTo: "b"},
		{ID: "b", Role: orgtree.RoleStaff, ReportsTo: "a"},
		{ID: "x", Role: orgtree.RoleStaff, ReportsTo: "ghost"},
	}, orgtree.RoleOwner)

	assert.False(t, report.Healthy())
	assert.ElementsMatch(t, []string{"a", "b"}, report.Excluded)
	require.Len(t, report.Dangling, 1)
	assert.Equal(t, danglingRef{MemberID: "x", ReportsTo: "ghost"}, report.Dangling[0])
}

func TestAuditReportEncodesEmptyLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, audit(nil, orgtree.RoleOwner)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []any{}, decoded["detached"])
	assert.Equal(t, []any{}, decoded["excluded"])
	assert.Equal(t, []any{}, decoded["duplicates"])
	assert.Equal(t, []any{}, decoded["dangling"])
	assert.Equal(t, "", decoded["root"])
	assert.Equal(t, float64(0), decoded["placed"])
}

func TestAuditEmptySnapshotIsHealthy(t *testing.T) {
	report := audit([]orgtree.Member{}, orgtree.RoleOwner)

	assert.True(t, report.Healthy())
	assert.Zero(t, report.Members)
	assert.Empty(t, report.Root)
}
