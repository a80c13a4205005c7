package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"doseedge/config"
)

func testClient(url string) *Client {
	return NewClient(&config.BackendConfig{
		URL:     url,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	})
}

func TestActiveMaterialDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recipe_materials/active" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"recipe_id": 7, "recipe_name": "Batch A",
			"material_id": 42, "material_name": "Citric Acid",
			"barcode": "CA-042", "set_point": 2.5, "actual": 0,
			"margin": 0, "status": "Pending", "bucket_id": 3
		}`))
	}))
	defer srv.Close()

	mat, err := testClient(srv.URL).ActiveMaterial(context.Background())
	if err != nil {
		t.Fatalf("active material: %v", err)
	}
	if mat == nil {
		t.Fatal("material is nil")
	}
	if mat.RecipeID != 7 || mat.MaterialID != 42 || mat.Barcode != "CA-042" || mat.SetPoint != 2.5 {
		t.Errorf("material = %+v", mat)
	}
	if mat.BucketID == nil || *mat.BucketID != 3 {
		t.Errorf("bucket_id = %v, want 3", mat.BucketID)
	}
}

func TestActiveMaterialNonePending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "No active order with pending materials"}`))
	}))
	defer srv.Close()

	mat, err := testClient(srv.URL).ActiveMaterial(context.Background())
	if err != nil {
		t.Fatalf("active material: %v", err)
	}
	if mat != nil {
		t.Errorf("material = %+v, want nil", mat)
	}
}

func TestWeighAndUpdateOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		outcome WeighOutcome
	}{
		{
			"dosed",
			`{"success": true, "reset_done": false, "total_remaining": 2,
			  "data": {"recipe_material_id": 1, "material_id": 42, "actual": 2.51, "margin": 10, "status": "Dosed"}}`,
			WeighDosed,
		},
		{
			"overweight",
			`{"success": false, "reason": "overweight",
			  "data": {"material_id": 42, "actual": 2.9}}`,
			WeighOverweight,
		},
		{
			"pending",
			`{"success": false, "reason": "underweight", "message": "target not reached"}`,
			WeighPending,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != "POST" {
					t.Errorf("method = %s", r.Method)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(c.body))
			}))
			defer srv.Close()

			res, err := testClient(srv.URL).WeighAndUpdate(context.Background())
			if err != nil {
				t.Fatalf("weigh: %v", err)
			}
			if res.Outcome != c.outcome {
				t.Errorf("outcome = %v, want %v", res.Outcome, c.outcome)
			}
		})
	}
}

func TestWeighAndUpdateDosedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "reset_done": true, "total_remaining": 0,
			"data": {"recipe_material_id": 5, "material_id": 42, "material_name": "Citric Acid",
			         "set_point": 2.5, "actual": 2.503, "margin": 3.0, "status": "Dosed"}}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).WeighAndUpdate(context.Background())
	if err != nil {
		t.Fatalf("weigh: %v", err)
	}
	if !res.ResetDone || res.TotalRemaining != 0 {
		t.Errorf("reset_done=%v remaining=%d", res.ResetDone, res.TotalRemaining)
	}
	if res.Data == nil || res.Data.Margin != 3.0 || res.Data.Status != "Dosed" {
		t.Errorf("data = %+v", res.Data)
	}
}

func TestBypassPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/recipe_materials/bypass/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "2 materials bypassed", "bypassed_ids": [11, 12]}`))
	}))
	defer srv.Close()

	msg, err := testClient(srv.URL).BypassPending(context.Background(), 7)
	if err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if msg != "2 materials bypassed" {
		t.Errorf("msg = %q", msg)
	}
}

func TestErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "no pending materials"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).BypassPending(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "no pending materials") {
		t.Errorf("error = %q, want backend message included", got)
	}
}

func TestScannerControl(t *testing.T) {
	var started, stopped int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/start-scanner":
			started++
		case "/api/stop-scanner":
			stopped++
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "ok"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.StartScanner(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.StopScanner(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if started != 1 || stopped != 1 {
		t.Errorf("started=%d stopped=%d", started, stopped)
	}
}
