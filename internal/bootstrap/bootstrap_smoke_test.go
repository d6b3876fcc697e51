package bootstrap

import (
	"context"
	"os"
	"testing"
)

func TestInitGraphOrder(t *testing.T) {
	steps := InitGraph()
	want := []string{
		"config:load",
		"logging:init-provider",
		"storage:init-database",
		"session:init-store",
		"platform:init-gateway",
		"session:init-manager",
		"generation:init-pipeline",
		"publish:init-orchestrator",
	}
	if len(steps) != len(want) {
		t.Fatalf("unexpected step count: got %d want %d", len(steps), len(want))
	}
	for i, step := range steps {
		if step.ID != want[i] {
			t.Fatalf("step %d mismatch: got %s want %s", i, step.ID, want[i])
		}
	}
}

func TestInitGraphDependenciesSatisfiable(t *testing.T) {
	completed := map[string]struct{}{}
	for _, step := range InitGraph() {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				t.Fatalf("step %s depends on %s before it runs", step.ID, dep)
			}
		}
		completed[step.ID] = struct{}{}
	}
}

func TestExecuteInitSteps(t *testing.T) {
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(oldWD) })

	state := &appState{}
	if err := executeInitSteps(context.Background(), InitGraph(), state); err != nil {
		t.Fatalf("executeInitSteps failed: %v", err)
	}
	if state.config == nil {
		t.Fatal("config is nil after init")
	}
	if state.logger == nil {
		t.Fatal("logger is nil after init")
	}
	if state.sessions == nil || state.orchestrator == nil || state.dispatcher == nil {
		t.Fatal("domain components not initialised")
	}
	defer state.logger.Close()
	defer state.sessionStore.Close(context.Background())
}

func TestExecuteInitSteps_RejectsUnsatisfiedDependency(t *testing.T) {
	steps := []initStep{
		{
			ID:        "b",
			DependsOn: []string{"a"},
			Execute:   func(context.Context, *appState) error { return nil },
		},
	}
	if err := executeInitSteps(context.Background(), steps, &appState{}); err == nil {
		t.Fatal("expected error for unsatisfied dependency")
	}
}
