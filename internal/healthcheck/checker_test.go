package healthcheck

import (
	"context"
	"testing"
)

type testChecker struct {
	items []CheckResult
}

func (c *testChecker) ListChecks(context.Context) []CheckResult {
	return c.items
}

func TestCollectSkipsNilCheckers(t *testing.T) {
	t.Parallel()

	items := Collect(context.Background(),
		&testChecker{items: []CheckResult{{ID: "a", Status: StatusOK}}},
		nil,
		&testChecker{items: []CheckResult{{ID: "b", Status: StatusWarn}}},
	)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("unexpected order: %#v", items)
	}
}

func TestOverall(t *testing.T) {
	t.Parallel()

	cases := []struct {
		statuses []string
		want     string
	}{
		{nil, StatusOK},
		{[]string{StatusOK, StatusOK}, StatusOK},
		{[]string{StatusOK, StatusUnknown}, StatusUnknown},
		{[]string{StatusWarn, StatusUnknown}, StatusWarn},
		{[]string{StatusOK, StatusError, StatusWarn}, StatusError},
	}
	for _, tc := range cases {
		results := make([]CheckResult, 0, len(tc.statuses))
		for _, s := range tc.statuses {
			results = append(results, CheckResult{Status: s})
		}
		if got := Overall(results); got != tc.want {
			t.Fatalf("Overall(%v) = %s, want %s", tc.statuses, got, tc.want)
		}
	}
}
