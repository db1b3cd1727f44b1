package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arcflow-systems/taskq/task"
)

// BoincAdapter is a Detached adapter that submits work units to a
// BOINC-style volunteer-computing project server over HTTP and polls
// workunit status the same way.
//
// There is no official Go client for the BOINC scheduler RPC protocol
// in this lineage's dependency set, so this adapter speaks a minimal
// JSON submission/status API directly over net/http, the same shape
// the callback ingest itself uses for its own HTTP surface.
type BoincAdapter struct {
	// BaseURL is the project server's API root, e.g.
	// "https://boinc.example.org/api".
	BaseURL string
	Client  *http.Client
}

// NewBoincAdapter constructs a BoincAdapter against baseURL.
func NewBoincAdapter(baseURL string) *BoincAdapter {
	return &BoincAdapter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *BoincAdapter) Name() string { return "boinc" }

func (a *BoincAdapter) Kind() Kind { return Detached }

func (a *BoincAdapter) Supports(taskType string) bool {
	return strings.HasPrefix(taskType, "boinc_")
}

type boincSubmitRequest struct {
	TaskID  string        `json:"task_id"`
	AppName string        `json:"app_name"`
	Payload task.Document `json:"payload"`
}

type boincSubmitResponse struct {
	WorkunitID string `json:"workunit_id"`
}

// Submit posts a workunit creation request and returns the assigned
// workunit ID as the handle.
func (a *BoincAdapter) Submit(ctx context.Context, t *task.Task) (string, error) {
	body, err := json.Marshal(boincSubmitRequest{
		TaskID:  t.Id.String(),
		AppName: strings.TrimPrefix(t.TaskType, "boinc_"),
		Payload: t.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("boinc: encoding submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/workunits", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("boinc: submit request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("boinc: submit returned status %d", resp.StatusCode)
	}

	var out boincSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("boinc: decoding submit response: %w", err)
	}
	if out.WorkunitID == "" {
		return "", fmt.Errorf("boinc: submit response missing workunit_id")
	}
	return out.WorkunitID, nil
}

type boincStatusResponse struct {
	State string `json:"state"`
}

// Poll fetches a workunit's state and maps it onto the adapter-neutral
// JobState enum. BOINC workunits typically report "unsent", "in_progress"
// or "assimilated"/"no_result"; an unrecognized or absent workunit is
// treated as JobFinished, the same reasoning as SlurmAdapter.Poll.
func (a *BoincAdapter) Poll(ctx context.Context, handle string) (JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/workunits/"+handle, nil)
	if err != nil {
		return JobPending, err
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return JobPending, fmt.Errorf("boinc: status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return JobFinished, nil
	}
	if resp.StatusCode != http.StatusOK {
		return JobPending, fmt.Errorf("boinc: status returned status %d", resp.StatusCode)
	}

	var out boincStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return JobPending, fmt.Errorf("boinc: decoding status response: %w", err)
	}

	switch out.State {
	case "unsent", "queued":
		return JobPending, nil
	case "in_progress":
		return JobRunning, nil
	default:
		return JobFinished, nil
	}
}
