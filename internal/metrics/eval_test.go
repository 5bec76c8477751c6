package metrics

import (
	"strings"
	"testing"
)

func TestAccuracyExact(t *testing.T) {
	rec := &Record{Pairs: []Pair{
		{True: 0, Pred: 0},
		{True: 1, Pred: 1},
		{True: 1, Pred: 0},
		{True: 0, Pred: 0},
	}}
	if got := rec.Accuracy(); got != 0.75 {
		t.Fatalf("accuracy = %f, want 0.75", got)
	}
}

func TestAccuracyBounds(t *testing.T) {
	all := &Record{Pairs: []Pair{{0, 0}, {1, 1}}}
	none := &Record{Pairs: []Pair{{0, 1}, {1, 0}}}
	if all.Accuracy() != 1 {
		t.Fatalf("perfect accuracy = %f", all.Accuracy())
	}
	if none.Accuracy() != 0 {
		t.Fatalf("zero accuracy = %f", none.Accuracy())
	}
}

func TestMeanLoss(t *testing.T) {
	rec := &Record{Loss: 3, Pairs: []Pair{{0, 0}, {1, 1}}}
	if rec.MeanLoss() != 1.5 {
		t.Fatalf("mean loss = %f, want 1.5", rec.MeanLoss())
	}
	empty := &Record{}
	if empty.MeanLoss() != 0 {
		t.Fatalf("empty mean loss = %f", empty.MeanLoss())
	}
}

func TestReportPerClass(t *testing.T) {
	rec := &Record{Pairs: []Pair{
		{True: 0, Pred: 0},
		{True: 0, Pred: 1},
		{True: 1, Pred: 1},
		{True: 1, Pred: 1},
	}}
	report := rec.Report([]string{"no-alzheimer", "alzheimer"})
	if !strings.Contains(report, "no-alzheimer") || !strings.Contains(report, "alzheimer") {
		t.Fatalf("report missing class names:\n%s", report)
	}
	// Class 1: tp=2 fp=1 fn=0 -> precision 2/3, recall 1.
	if !strings.Contains(report, "0.6667") {
		t.Fatalf("report missing expected precision:\n%s", report)
	}
	if !strings.Contains(report, "accuracy") {
		t.Fatalf("report missing accuracy line:\n%s", report)
	}
}

func TestReportUnknownClassFallsBack(t *testing.T) {
	rec := &Record{Pairs: []Pair{{True: 2, Pred: 2}}}
	report := rec.Report([]string{"zero"})
	if !strings.Contains(report, "\n2 ") && !strings.Contains(report, "\n2") {
		t.Fatalf("report missing numeric fallback:\n%s", report)
	}
}
