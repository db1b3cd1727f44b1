package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arcflow-systems/taskq/task"
)

// SlurmAdapter is a Detached adapter that submits a task as a batch
// job via sbatch and polls its state via squeue.
//
// There is no maintained Go client for the Slurm REST/CLI surface in
// this lineage's dependency set, so this adapter shells out directly;
// that is the same tradeoff a thin CLI wrapper library would make
// internally.
type SlurmAdapter struct {
	// TaskDir is the scratch directory sbatch scripts and per-task
	// stdout/stderr land in, taken from SLURM_TASK_DIR.
	TaskDir string
	// Sbatch and Squeue allow tests to substitute fake binaries.
	Sbatch string
	Squeue string
}

// NewSlurmAdapter constructs a SlurmAdapter rooted at taskDir, using
// the sbatch/squeue binaries found on PATH.
func NewSlurmAdapter(taskDir string) *SlurmAdapter {
	return &SlurmAdapter{
		TaskDir: taskDir,
		Sbatch:  "sbatch",
		Squeue:  "squeue",
	}
}

func (a *SlurmAdapter) Name() string { return "slurm" }

func (a *SlurmAdapter) Kind() Kind { return Detached }

func (a *SlurmAdapter) Supports(taskType string) bool {
	return strings.HasPrefix(taskType, "slurm_")
}

// Submit writes a minimal batch script invoking the task_type as a
// command name with the task id as its sole argument, then
// submits it with sbatch. The handle is the Slurm job ID.
func (a *SlurmAdapter) Submit(ctx context.Context, t *task.Task) (string, error) {
	script, err := a.writeScript(t)
	if err != nil {
		return "", fmt.Errorf("slurm: writing batch script: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Sbatch, "--parsable", script)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("slurm: sbatch failed: %w", err)
	}

	jobID := strings.TrimSpace(strings.SplitN(string(out), ";", 2)[0])
	if jobID == "" {
		return "", fmt.Errorf("slurm: sbatch returned no job id")
	}
	if _, err := strconv.Atoi(jobID); err != nil {
		return "", fmt.Errorf("slurm: unparseable job id %q: %w", jobID, err)
	}
	return jobID, nil
}

func (a *SlurmAdapter) writeScript(t *task.Task) (string, error) {
	if err := os.MkdirAll(a.TaskDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(a.TaskDir, fmt.Sprintf("%s.sbatch", t.Id))
	contents := fmt.Sprintf("#!/bin/sh\n#SBATCH --job-name=%s\n#SBATCH --output=%s/%s.out\nexec %s '%s'\n",
		t.TaskType, a.TaskDir, t.Id, t.TaskType, t.Id)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Poll shells out to `squeue -j <handle> -h -o %T` and maps Slurm job
// states onto the adapter-neutral JobState enum. A handle absent from
// squeue's output is treated as JobFinished: Slurm drops jobs from
// squeue shortly after they leave the queue, regardless of outcome.
func (a *SlurmAdapter) Poll(ctx context.Context, handle string) (JobState, error) {
	cmd := exec.CommandContext(ctx, a.Squeue, "-j", handle, "-h", "-o", "%T")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return JobFinished, nil
		}
		return JobPending, fmt.Errorf("slurm: squeue failed: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return JobFinished, nil
	}
	state := strings.TrimSpace(scanner.Text())
	switch state {
	case "PENDING", "CONFIGURING":
		return JobPending, nil
	case "RUNNING", "COMPLETING":
		return JobRunning, nil
	default:
		return JobFinished, nil
	}
}
