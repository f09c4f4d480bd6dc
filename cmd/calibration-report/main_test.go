package main

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chrissnell/sensorcal/internal/runstore"
)

func TestPrintReport(t *testing.T) {
	started := time.Date(2023, 3, 1, 9, 0, 0, 0, time.UTC)
	run := runstore.Run{
		ID:         "3f8e1c2a-0000-4000-8000-000000000001",
		Name:       "final-data",
		StartedAt:  started,
		FinishedAt: started.Add(95 * time.Second),
		Status:     runstore.StatusSucceeded,
	}
	scores := []runstore.Score{
		{Quantity: "no2", Model: "linear_regression", R2: 0.7123, RMSE: 4.25, TrainSize: 80, TestSize: 20},
		{Quantity: "no2", Model: "random_forest", R2: 0.8311, RMSE: 3.1, TrainSize: 80, TestSize: 20, Selected: true},
		{Quantity: "pm25", Model: "polynomial_regression", R2: math.NaN(), RMSE: math.NaN(), Selected: true},
	}

	var buf bytes.Buffer
	printReport(&buf, run, scores)
	out := buf.String()

	assert.Contains(t, out, "Finished:    2023-03-01T09:01:35Z (1m35s)")
	assert.Contains(t, out, "0.8311")
	assert.Contains(t, out, "n/a")

	var selected []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasSuffix(line, "| *") {
			selected = append(selected, strings.TrimSpace(strings.Split(line, "|")[1]))
		}
	}
	assert.Equal(t, []string{"random_forest", "polynomial_regression"}, selected)
}

func TestPrintReportFailedRun(t *testing.T) {
	run := runstore.Run{ID: "x", Status: runstore.StatusFailed, Error: errors.New("coverage mismatch").Error()}
	var buf bytes.Buffer
	printReport(&buf, run, nil)
	assert.Contains(t, buf.String(), "Error:       coverage mismatch")
	assert.Contains(t, buf.String(), "No models were trained")
}
