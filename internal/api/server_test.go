package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helios-data/yield.report/internal/plant"
	"github.com/helios-data/yield.report/internal/testutil"
)

const testTimestamp = "01.06.2024 12:00"

func testServer(t *testing.T) *Server {
	t.Helper()
	row := map[string]float64{}
	var trackers []plant.TrackerInfo
	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("T%d", i)
		row[name+"/"+plant.MetricPowerKW] = float64(i)
		row[name+"/"+plant.MetricVoltageV] = 600
		trackers = append(trackers, plant.TrackerInfo{
			Name: name, NominalPowerKWp: 10, Orientation: "Süd", StringCount: 2,
		})
	}
	data, err := plant.NewData([]string{testTimestamp}, []map[string]float64{row}, trackers, nil)
	testutil.AssertNoError(t, err)
	return NewServer(data, nil)
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	testutil.AssertNoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := testutil.NewTestRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestShowPlant(t *testing.T) {
	srv := testServer(t)
	rec := testutil.NewTestRecorder()
	srv.Router().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/plant"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp plantResponse
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if resp.TrackerCount != 5 || len(resp.Trackers) != 5 {
		t.Errorf("tracker count = %d/%d, want 5", resp.TrackerCount, len(resp.Trackers))
	}
	if len(resp.Timestamps) != 1 || resp.Timestamps[0] != testTimestamp {
		t.Errorf("timestamps = %v", resp.Timestamps)
	}
	if resp.Module != nil {
		t.Error("module present on dataset without module info")
	}
}

func TestListVariables(t *testing.T) {
	srv := testServer(t)
	rec := testutil.NewTestRecorder()
	srv.Router().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/variables"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp map[string][]string
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if len(resp["variables"]) == 0 {
		t.Error("no variables listed")
	}
}

func TestRunAnalysis(t *testing.T) {
	srv := testServer(t)
	rec := postJSON(t, srv, "/api/analysis", map[string]any{"timestamp": testTimestamp})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp analysisResponse
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if resp.RunID == "" {
		t.Error("empty run id")
	}
	if resp.Mode != "single_timestamp" {
		t.Errorf("mode = %q", resp.Mode)
	}
	if len(resp.Points) != 5 {
		t.Errorf("points = %d, want 5", len(resp.Points))
	}
	if resp.ClusterCount != 1 {
		t.Errorf("cluster count = %d, want 1", resp.ClusterCount)
	}
	if len(resp.Orientations) != 1 || resp.Orientations[0] != "Süd" {
		t.Errorf("orientations = %v", resp.Orientations)
	}
}

func TestRunAnalysisErrors(t *testing.T) {
	srv := testServer(t)

	rec := testutil.NewTestRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", bytes.NewReader([]byte("{not json")))
	srv.Router().ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = postJSON(t, srv, "/api/analysis", map[string]any{"timestamp": "02.06.2024 12:00"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = postJSON(t, srv, "/api/analysis", map[string]any{
		"timestamp":  testTimestamp,
		"x_variable": "humidity",
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = postJSON(t, srv, "/api/analysis", map[string]any{
		"timestamp":      testTimestamp,
		"optics_epsilon": -1.0,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = postJSON(t, srv, "/api/analysis", map[string]any{
		"timestamp": testTimestamp,
		"mode":      "hourly",
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestRunAnalysisTuningOverrides(t *testing.T) {
	srv := testServer(t)

	// An OPTICS minPts above the point count suppresses clustering.
	rec := postJSON(t, srv, "/api/analysis", map[string]any{
		"timestamp":      testTimestamp,
		"optics_min_pts": 10,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp analysisResponse
	testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if resp.ClusterCount != 0 {
		t.Errorf("cluster count = %d, want 0", resp.ClusterCount)
	}
}

func TestKDistancesEndpoint(t *testing.T) {
	srv := testServer(t)

	for _, algorithm := range []string{"", "dbscan", "optics"} {
		rec := postJSON(t, srv, "/api/analysis/kdistance", map[string]any{
			"timestamp": testTimestamp,
			"algorithm": algorithm,
		})
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

		var resp kDistanceResponse
		testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		if algorithm == "optics" {
			if resp.Algorithm != "optics" || resp.K != 4 {
				t.Errorf("optics response = %q/k=%d", resp.Algorithm, resp.K)
			}
		} else if resp.Algorithm != "dbscan" || resp.K != 2 {
			t.Errorf("dbscan response = %q/k=%d", resp.Algorithm, resp.K)
		}
		for i := 1; i < len(resp.Distances); i++ {
			if resp.Distances[i] < resp.Distances[i-1] {
				t.Errorf("curve not sorted at %d: %v", i, resp.Distances)
			}
		}
	}

	rec := postJSON(t, srv, "/api/analysis/kdistance", map[string]any{
		"timestamp": testTimestamp,
		"algorithm": "kmeans",
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := testServer(t)
	rec := testutil.NewTestRecorder()
	srv.Router().ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/analysis"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}
