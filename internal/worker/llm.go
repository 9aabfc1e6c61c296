package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"veriflow/pkg/models"
)

// Completer is the model call the LLM worker needs. The planner client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error)
}

const designSystemPrompt = `You are an RTL design engineer. Produce synthesizable Verilog for the
request. Output each file as a fenced code block whose info line is the
file name, like:
` + "```counter.v" + `
module counter ...
` + "```" + `
Design sources only. Never write testbenches and never claim to have run
simulations.`

const verificationSystemPrompt = `You are a verification engineer. Write a self-checking Verilog testbench
for the described design. Output each file as a fenced code block whose
info line is the file name, using testbench naming (<module>_tb.v). The
testbench must drive the clock and reset, check outputs, and call $finish.`

// fencedFileRe matches a fenced code block whose info line is a file name.
var fencedFileRe = regexp.MustCompile("(?s)```([A-Za-z0-9_./-]+\\.(?:v|sv|vh|svh))\n(.*?)```")

// LLM is a model-backed worker. It prompts the model for artifact files,
// writes them under the task output directory, and for verification work
// compiles and simulates the result with Icarus Verilog when available.
type LLM struct {
	completer Completer
	outDir    string
}

// NewLLM creates a model-backed worker writing under outDir.
func NewLLM(completer Completer, outDir string) *LLM {
	return &LLM{completer: completer, outDir: outDir}
}

// Execute runs one subtask through the model.
func (l *LLM) Execute(ctx context.Context, subtask *models.Subtask, taskID, designContext string) (*models.WorkerResult, error) {
	system := designSystemPrompt
	if subtask.Type == models.SubtaskVerification {
		system = verificationSystemPrompt
	}

	prompt := subtask.Description
	if designContext != "" {
		prompt += "\n\nContext: " + designContext
	}

	raw, err := l.completer.Complete(ctx, system, prompt, 8192)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	artifacts, err := l.writeArtifacts(taskID, raw)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return &models.WorkerResult{
			Success: false,
			Error:   "model produced no artifact files",
			Output:  raw,
		}, nil
	}

	result := &models.WorkerResult{
		Success:   true,
		Artifacts: artifacts,
		Output:    raw,
	}
	if subtask.Type == models.SubtaskVerification {
		l.simulate(ctx, taskID, result)
	}
	return result, nil
}

// writeArtifacts extracts fenced file blocks and writes them to disk.
func (l *LLM) writeArtifacts(taskID, raw string) ([]string, error) {
	dir := filepath.Join(l.outDir, taskID)

	var artifacts []string
	for _, m := range fencedFileRe.FindAllStringSubmatch(raw, -1) {
		name := filepath.Base(m[1])
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create task dir: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(m[2]), 0o644); err != nil {
			return nil, fmt.Errorf("write artifact %s: %w", name, err)
		}
		artifacts = append(artifacts, name)
	}
	return artifacts, nil
}

// simulate compiles and runs the task's sources with Icarus Verilog.
// Without the tool installed the result keeps its raw model output and
// no verification status, which the verification gate will reject.
func (l *LLM) simulate(ctx context.Context, taskID string, result *models.WorkerResult) {
	if _, err := exec.LookPath("iverilog"); err != nil {
		result.Output += "\niverilog not found in PATH, simulation skipped"
		return
	}

	dir := filepath.Join(l.outDir, taskID)
	sources, err := filepath.Glob(filepath.Join(dir, "*.v"))
	if err != nil || len(sources) == 0 {
		return
	}

	simBin := filepath.Join(dir, "sim")
	compile := exec.CommandContext(ctx, "iverilog", append([]string{"-o", simBin}, sources...)...)
	out, err := compile.CombinedOutput()
	result.Output += fmt.Sprintf("\n$ iverilog -o sim %s\n%s", strings.Join(baseNames(sources), " "), out)
	if err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("compilation failed: %v", err)
		return
	}

	run := exec.CommandContext(ctx, "vvp", simBin)
	out, err = run.CombinedOutput()
	result.Output += fmt.Sprintf("\n$ vvp sim\n%s", out)
	if err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("simulation failed: %v", err)
		return
	}

	result.Output += "\nsimulation finished"
	result.VerificationStatus = models.VerificationCompleted
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
