package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-irp/internal/core"
	"github.com/lzjever/mbos-irp/internal/credentials"
	"github.com/lzjever/mbos-irp/internal/store"
	"github.com/lzjever/mbos-irp/internal/terraform"
	"github.com/lzjever/mbos-irp/internal/workspace"
)

// fakeStore is an in-memory RequestStore with real compare-and-set
// semantics.
type fakeStore struct {
	mu        sync.Mutex
	requests  map[int64]core.ResourceRequest
	notes     map[int64][]string
	casReject bool
}

func newFakeStore(reqs ...core.ResourceRequest) *fakeStore {
	fs := &fakeStore{
		requests: map[int64]core.ResourceRequest{},
		notes:    map[int64][]string{},
	}
	for _, r := range reqs {
		fs.requests[r.ID] = r
	}
	return fs
}

func (f *fakeStore) GetRequest(ctx context.Context, id int64) (core.ResourceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return core.ResourceRequest{}, store.ErrNotFound
	}
	return req, nil
}

func (f *fakeStore) CompareAndSetRequestStatus(ctx context.Context, arg store.CompareAndSetRequestStatusParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casReject {
		return false, nil
	}
	req, ok := f.requests[arg.ID]
	if !ok || req.Status != arg.Expected {
		return false, nil
	}
	req.Status = arg.Next
	f.requests[arg.ID] = req
	return true, nil
}

func (f *fakeStore) AppendRequestNotes(ctx context.Context, id int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id] = append(f.notes[id], text)
	return nil
}

func (f *fakeStore) status(id int64) core.RequestStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id].Status
}

func (f *fakeStore) allNotes(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.notes[id], "\n")
}

type fakeCreds struct {
	resolved credentials.Resolved
	err      error
}

func (f *fakeCreds) Resolve(ctx context.Context, teamID int64) (credentials.Resolved, error) {
	return f.resolved, f.err
}

// stubRunner serves canned step results and records what ran.
type stubRunner struct {
	mu        sync.Mutex
	steps     []string
	lastEnv   []string
	planText  string
	outputs   map[string]terraform.OutputValue
	failStep  string
	failErr   error
	applyHook func(dir string) error
}

func (s *stubRunner) step(name string, env []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, name)
	s.lastEnv = env
	if name == s.failStep {
		return s.failErr
	}
	return nil
}

func (s *stubRunner) ran() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

func (s *stubRunner) Init(ctx context.Context, dir string, env []string) (string, error) {
	return "", s.step("init", env)
}

func (s *stubRunner) Plan(ctx context.Context, dir string, env []string) (string, error) {
	if err := s.step("plan", env); err != nil {
		return "", err
	}
	if s.planText == "" {
		return "Plan: 1 to add, 0 to change, 0 to destroy.", nil
	}
	return s.planText, nil
}

func (s *stubRunner) Apply(ctx context.Context, dir string, env []string) (string, error) {
	if s.applyHook != nil {
		if err := s.applyHook(dir); err != nil {
			s.mu.Lock()
			s.steps = append(s.steps, "apply")
			s.mu.Unlock()
			return "", err
		}
	}
	return "", s.step("apply", env)
}

func (s *stubRunner) Output(ctx context.Context, dir string, env []string) (map[string]terraform.OutputValue, error) {
	if err := s.step("output", env); err != nil {
		return nil, err
	}
	if s.outputs == nil {
		return map[string]terraform.OutputValue{}, nil
	}
	return s.outputs, nil
}

func (s *stubRunner) Destroy(ctx context.Context, dir string, env []string) (string, error) {
	return "", s.step("destroy", env)
}

func approvedRequest(id int64, rtype core.ResourceType, name, config string) core.ResourceRequest {
	return core.ResourceRequest{
		ID:           id,
		UserID:       1,
		TeamID:       1,
		ResourceType: rtype,
		Name:         name,
		Config:       json.RawMessage(config),
		Status:       core.StatusApproved,
	}
}

func newTestOrchestrator(t *testing.T, fs *fakeStore, runner terraform.Runner, creds CredentialSource) (*Orchestrator, *workspace.Manager) {
	t.Helper()
	ws := workspace.NewManager(t.TempDir())
	router := NewRouter(runner, "/opt/irp/modules")
	if creds == nil {
		creds = &fakeCreds{}
	}
	return NewOrchestrator(fs, ws, router, runner, creds, zap.NewNop()), ws
}

// readTfvars loads the variable file a generator wrote into dir.
func readTfvars(t *testing.T, dir string) map[string]any {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, "terraform.tfvars.json"))
	if err != nil {
		t.Fatalf("read tfvars: %s", err)
	}
	var vals map[string]any
	if err := json.Unmarshal(raw, &vals); err != nil {
		t.Fatalf("decode tfvars: %s", err)
	}
	return vals
}

func TestProvisionDryRunDatabase(t *testing.T) {
	fs := newFakeStore(approvedRequest(1, core.ResourceDatabase, "orders-db", `{"engine":"mysql","size":"medium"}`))
	runner := &stubRunner{planText: "Plan: 3 to add, 0 to change, 0 to destroy."}
	orch, ws := newTestOrchestrator(t, fs, runner, &fakeCreds{
		resolved: credentials.Resolved{Env: []string{"AWS_ACCESS_KEY_ID=AKIATEST"}},
	})

	out, err := orch.Provision(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("provision failed: %s", err)
	}
	if out.Code != OutcomeProvisioned {
		t.Fatalf("expected provisioned outcome, got %s (%s)", out.Code, out.Reason)
	}
	if got := fs.status(1); got != core.StatusProvisioned {
		t.Errorf("expected status provisioned, got %s", got)
	}

	steps := runner.ran()
	for _, s := range steps {
		if s == "apply" {
			t.Fatal("apply ran under dry-run")
		}
	}
	if len(steps) != 2 || steps[0] != "init" || steps[1] != "plan" {
		t.Errorf("expected init,plan only, got %v", steps)
	}

	found := false
	for _, e := range runner.lastEnv {
		if e == "AWS_ACCESS_KEY_ID=AKIATEST" {
			found = true
		}
	}
	if !found {
		t.Error("credential env was not passed to the tool step")
	}

	dir := ws.Path(1)
	for _, name := range []string{"provider.tf.json", "main.tf.json", "terraform.tfvars.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s in workspace: %s", name, err)
		}
	}

	vals := readTfvars(t, dir)
	if vals["engine"] != "mysql" {
		t.Errorf("expected mysql engine, got %v", vals["engine"])
	}
	if vals["instance_class"] != "db.t3.medium" {
		t.Errorf("expected medium tier instance class, got %v", vals["instance_class"])
	}
	password, _ := vals["master_password"].(string)
	if len(password) != 20 {
		t.Fatalf("expected 20-char master password, got %q", password)
	}

	notes := fs.allNotes(1)
	if !strings.Contains(notes, "Provisioned successfully") {
		t.Errorf("expected success note, got %q", notes)
	}
	if !strings.Contains(notes, "dry-run plan") {
		t.Errorf("expected plan text in notes, got %q", notes)
	}
	if strings.Contains(notes, password) {
		t.Error("master password leaked into request notes")
	}
	if strings.Contains(out.Output, password) {
		t.Error("master password leaked into the outcome output")
	}
}

func TestProvisionFullRunRecordsOutputs(t *testing.T) {
	fs := newFakeStore(approvedRequest(2, core.ResourceObjectStorage, "acme-artifacts", `{"region":"eu-west-1"}`))
	runner := &stubRunner{
		outputs: map[string]terraform.OutputValue{
			"bucket_name": {Value: "acme-artifacts", Type: "string"},
			"bucket_arn":  {Value: "arn:aws:s3:::acme-artifacts", Type: "string"},
		},
	}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("provision failed: %s", err)
	}
	if out.Code != OutcomeProvisioned {
		t.Fatalf("expected provisioned outcome, got %s", out.Code)
	}

	want := []string{"init", "plan", "apply", "output"}
	steps := runner.ran()
	if len(steps) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("expected steps %v, got %v", want, steps)
		}
	}

	if !strings.Contains(out.Output, "bucket_name = acme-artifacts") {
		t.Errorf("expected bucket output in summary, got %q", out.Output)
	}
	if !strings.Contains(fs.allNotes(2), "bucket_name = acme-artifacts") {
		t.Errorf("expected bucket output in notes, got %q", fs.allNotes(2))
	}
}

func TestProvisionUnknownTypeFailsWithoutWorkspace(t *testing.T) {
	fs := newFakeStore(approvedRequest(3, core.ResourceType("vpn"), "corp-vpn", "{}"))
	runner := &stubRunner{}
	orch, ws := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("unknown type should finalize, not error: %s", err)
	}
	if out.Code != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", out.Code)
	}
	if got := fs.status(3); got != core.StatusFailed {
		t.Errorf("expected status failed, got %s", got)
	}
	if ws.Exists(3) {
		t.Error("unknown type must not create a workspace")
	}
	if len(runner.ran()) != 0 {
		t.Errorf("no tool steps may run for an unknown type, got %v", runner.ran())
	}
	if !strings.Contains(fs.allNotes(3), "unknown resource type") {
		t.Errorf("expected unknown type note, got %q", fs.allNotes(3))
	}
}

func TestProvisionSkipsNonApproved(t *testing.T) {
	req := approvedRequest(4, core.ResourceDatabase, "orders-db", "{}")
	req.Status = core.StatusPending
	fs := newFakeStore(req)
	runner := &stubRunner{}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 4, false)
	if err != nil {
		t.Fatalf("skip should not error: %s", err)
	}
	if out.Code != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", out.Code)
	}
	if !strings.Contains(out.Reason, "pending") {
		t.Errorf("expected reason to name the status, got %q", out.Reason)
	}
	if got := fs.status(4); got != core.StatusPending {
		t.Errorf("status must be untouched, got %s", got)
	}
	if len(runner.ran()) != 0 {
		t.Errorf("no tool steps may run on a skip, got %v", runner.ran())
	}
}

func TestProvisionSkipsLostClaimRace(t *testing.T) {
	fs := newFakeStore(approvedRequest(5, core.ResourceDatabase, "orders-db", "{}"))
	fs.casReject = true
	runner := &stubRunner{}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 5, false)
	if err != nil {
		t.Fatalf("lost race should not error: %s", err)
	}
	if out.Code != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", out.Code)
	}
	if out.Reason != "already in progress" {
		t.Errorf("unexpected reason %q", out.Reason)
	}
	if len(runner.ran()) != 0 {
		t.Errorf("no tool steps may run after a lost race, got %v", runner.ran())
	}
}

func TestProvisionReinvokeAfterProvisionedIsIdempotent(t *testing.T) {
	req := approvedRequest(6, core.ResourceDatabase, "orders-db", "{}")
	req.Status = core.StatusProvisioned
	fs := newFakeStore(req)
	runner := &stubRunner{}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 6, false)
	if err != nil {
		t.Fatalf("re-invoke should not error: %s", err)
	}
	if out.Code != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", out.Code)
	}
	if got := fs.status(6); got != core.StatusProvisioned {
		t.Errorf("status must be untouched, got %s", got)
	}
}

func TestProvisionToolFailureFinalizesFailed(t *testing.T) {
	fs := newFakeStore(approvedRequest(7, core.ResourceDatabase, "orders-db", "{}"))
	runner := &stubRunner{
		failStep: "apply",
		failErr:  &core.ProvisionError{Kind: core.FailureToolExec, Op: "apply", Detail: "Error: creating DB instance: quota exceeded"},
	}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("tool failure must finalize, not error: %s", err)
	}
	if out.Code != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", out.Code)
	}
	if got := fs.status(7); got != core.StatusFailed {
		t.Errorf("expected status failed, got %s", got)
	}
	notes := fs.allNotes(7)
	if !strings.Contains(notes, "Provisioning failed: ") || !strings.Contains(notes, "quota exceeded") {
		t.Errorf("expected failure diagnostics in notes, got %q", notes)
	}
}

func TestProvisionRedactsMintedSecretFromFailure(t *testing.T) {
	fs := newFakeStore(approvedRequest(8, core.ResourceDatabase, "orders-db", "{}"))
	runner := &stubRunner{}
	// The tool echoes the minted password back in its error output, as a
	// real provider error can.
	runner.applyHook = func(dir string) error {
		vals := readTfvars(t, dir)
		password, _ := vals["master_password"].(string)
		return &core.ProvisionError{
			Kind:   core.FailureToolExec,
			Op:     "apply",
			Detail: fmt.Sprintf("Error: InvalidParameterValue: password %s not accepted", password),
		}
	}
	orch, ws := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Provision(context.Background(), 8, false)
	if err != nil {
		t.Fatalf("tool failure must finalize, not error: %s", err)
	}
	if out.Code != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", out.Code)
	}

	vals := readTfvars(t, ws.Path(8))
	password, _ := vals["master_password"].(string)
	if password == "" {
		t.Fatal("expected a minted password in tfvars")
	}

	notes := fs.allNotes(8)
	if strings.Contains(notes, password) {
		t.Fatal("minted password leaked into request notes")
	}
	if !strings.Contains(notes, "[REDACTED]") {
		t.Errorf("expected redaction marker in notes, got %q", notes)
	}
	if strings.Contains(out.Output, password) {
		t.Error("minted password leaked into the outcome output")
	}
}

func TestProvisionRedactsCredentialSecretFromFailure(t *testing.T) {
	fs := newFakeStore(approvedRequest(9, core.ResourceObjectStorage, "acme-artifacts", "{}"))
	runner := &stubRunner{
		failStep: "plan",
		failErr: &core.ProvisionError{
			Kind:   core.FailureToolExec,
			Op:     "plan",
			Detail: "Error: InvalidClientTokenId with key wJalrXUtnFEMIEXAMPLEKEY",
		},
	}
	creds := &fakeCreds{resolved: credentials.Resolved{
		Env:     []string{"AWS_SECRET_ACCESS_KEY=wJalrXUtnFEMIEXAMPLEKEY"},
		Secrets: []string{"wJalrXUtnFEMIEXAMPLEKEY"},
	}}
	orch, _ := newTestOrchestrator(t, fs, runner, creds)

	out, err := orch.Provision(context.Background(), 9, false)
	if err != nil {
		t.Fatalf("tool failure must finalize, not error: %s", err)
	}
	if out.Code != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", out.Code)
	}
	notes := fs.allNotes(9)
	if strings.Contains(notes, "wJalrXUtnFEMIEXAMPLEKEY") {
		t.Fatal("credential secret leaked into request notes")
	}
	if !strings.Contains(notes, "[REDACTED]") {
		t.Errorf("expected redaction marker in notes, got %q", notes)
	}
}

func TestProvisionTransientFaultKeepsClaim(t *testing.T) {
	fs := newFakeStore(approvedRequest(10, core.ResourceDatabase, "orders-db", "{}"))
	runner := &stubRunner{}

	// A workspace root that is a file makes Ensure fail with a
	// filesystem fault.
	rootFile := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(rootFile, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ws := workspace.NewManager(rootFile)
	orch := NewOrchestrator(fs, ws, NewRouter(runner, "/opt/irp/modules"), runner, &fakeCreds{}, zap.NewNop())

	_, err := orch.Provision(context.Background(), 10, false)
	if err == nil {
		t.Fatal("expected a transient error")
	}
	if !core.IsRetryable(err) {
		t.Errorf("transient fault must be retryable: %s", err)
	}
	if kind := core.KindOf(err); kind != core.FailureTransient {
		t.Errorf("expected TRANSIENT kind, got %s", kind)
	}
	// The claim stays with this attempt; the retry wrapper or the
	// janitor resolves it.
	if got := fs.status(10); got != core.StatusProvisioning {
		t.Errorf("expected status provisioning, got %s", got)
	}
}

func TestProvisionMissingRequest(t *testing.T) {
	fs := newFakeStore()
	runner := &stubRunner{}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	_, err := orch.Provision(context.Background(), 404, false)
	if err == nil {
		t.Fatal("expected an error for a missing request")
	}
	if kind := core.KindOf(err); kind != core.FailureNotFound {
		t.Errorf("expected NOT_FOUND kind, got %s", kind)
	}
	if core.IsRetryable(err) {
		t.Error("missing request must not be retryable")
	}
}

func TestDestroySuccess(t *testing.T) {
	req := approvedRequest(20, core.ResourceObjectStorage, "acme-artifacts", "{}")
	req.Status = core.StatusProvisioned
	fs := newFakeStore(req)
	runner := &stubRunner{}
	orch, ws := newTestOrchestrator(t, fs, runner, nil)
	if _, err := ws.Ensure(20); err != nil {
		t.Fatal(err)
	}

	out, err := orch.Destroy(context.Background(), 20)
	if err != nil {
		t.Fatalf("destroy failed: %s", err)
	}
	if out.Code != OutcomeDestroyed {
		t.Fatalf("expected destroyed outcome, got %s", out.Code)
	}
	if got := fs.status(20); got != core.StatusDestroyed {
		t.Errorf("expected status destroyed, got %s", got)
	}
	if ws.Exists(20) {
		t.Error("workspace must be removed after a successful destroy")
	}
	if !strings.Contains(fs.allNotes(20), "Resources destroyed") {
		t.Errorf("expected destroy note, got %q", fs.allNotes(20))
	}
}

func TestDestroyFromFailedStatus(t *testing.T) {
	req := approvedRequest(21, core.ResourceDatabase, "orders-db", "{}")
	req.Status = core.StatusFailed
	fs := newFakeStore(req)
	runner := &stubRunner{}
	orch, ws := newTestOrchestrator(t, fs, runner, nil)
	if _, err := ws.Ensure(21); err != nil {
		t.Fatal(err)
	}

	out, err := orch.Destroy(context.Background(), 21)
	if err != nil {
		t.Fatalf("destroy failed: %s", err)
	}
	if out.Code != OutcomeDestroyed {
		t.Fatalf("expected destroyed outcome, got %s", out.Code)
	}
	if got := fs.status(21); got != core.StatusDestroyed {
		t.Errorf("expected status destroyed, got %s", got)
	}
}

func TestDestroyFailureKeepsWorkspaceAndStatus(t *testing.T) {
	req := approvedRequest(22, core.ResourceObjectStorage, "acme-artifacts", "{}")
	req.Status = core.StatusProvisioned
	fs := newFakeStore(req)
	runner := &stubRunner{
		failStep: "destroy",
		failErr:  &core.ProvisionError{Kind: core.FailureToolExec, Op: "destroy", Detail: "Error: BucketNotEmpty"},
	}
	orch, ws := newTestOrchestrator(t, fs, runner, nil)
	if _, err := ws.Ensure(22); err != nil {
		t.Fatal(err)
	}

	_, err := orch.Destroy(context.Background(), 22)
	if err == nil {
		t.Fatal("expected destroy to surface the tool failure")
	}
	if !core.IsRetryable(err) {
		t.Errorf("tool exec failure must be retryable: %s", err)
	}
	if got := fs.status(22); got != core.StatusProvisioned {
		t.Errorf("status must stay provisioned after a failed destroy, got %s", got)
	}
	if !ws.Exists(22) {
		t.Error("workspace must be preserved after a failed destroy")
	}
	if !strings.Contains(fs.allNotes(22), "Destroy failed: ") {
		t.Errorf("expected destroy failure note, got %q", fs.allNotes(22))
	}
}

func TestDestroyMissingWorkspace(t *testing.T) {
	req := approvedRequest(23, core.ResourceDatabase, "orders-db", "{}")
	req.Status = core.StatusProvisioned
	fs := newFakeStore(req)
	orch, _ := newTestOrchestrator(t, fs, &stubRunner{}, nil)

	_, err := orch.Destroy(context.Background(), 23)
	if err == nil {
		t.Fatal("expected an error for a missing workspace")
	}
	if kind := core.KindOf(err); kind != core.FailureNotFound {
		t.Errorf("expected NOT_FOUND kind, got %s", kind)
	}
	if got := fs.status(23); got != core.StatusProvisioned {
		t.Errorf("status must be untouched, got %s", got)
	}
}

func TestDestroySkipsNonDestroyableStatus(t *testing.T) {
	req := approvedRequest(24, core.ResourceDatabase, "orders-db", "{}")
	req.Status = core.StatusApproved
	fs := newFakeStore(req)
	runner := &stubRunner{}
	orch, _ := newTestOrchestrator(t, fs, runner, nil)

	out, err := orch.Destroy(context.Background(), 24)
	if err != nil {
		t.Fatalf("skip should not error: %s", err)
	}
	if out.Code != OutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %s", out.Code)
	}
	if len(runner.ran()) != 0 {
		t.Errorf("no tool steps may run on a skip, got %v", runner.ran())
	}
}
