package grpcapi

import (
	"context"
	"net"
	"strings"
	"testing"

	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	workflows "cloud.google.com/go/workflows/apiv1"
	workflowspb "cloud.google.com/go/workflows/apiv1/workflowspb"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	executionspb "cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
)

const parent = "projects/my-project/locations/us-central1"

const pricing = `
constants:
  factor: 3
functions:
  inc:
    params: [x]
    body: x + 1
main:
  params: [n]
  body: use(inc, n) * factor
`

func startTestServer(t *testing.T) (string, func()) {
	t.Helper()
	srv := New(catalog.New(store.New()))

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.ServeListener(lis)

	return lis.Addr().String(), func() {
		srv.grpc.Stop()
	}
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func createLibrary(t *testing.T, client workflowspb.WorkflowsClient, id, source string) string {
	t.Helper()
	op, err := client.CreateWorkflow(context.Background(), &workflowspb.CreateWorkflowRequest{
		Parent:     parent,
		WorkflowId: id,
		Workflow: &workflowspb.Workflow{
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: source},
		},
	})
	if err != nil {
		t.Fatalf("CreateWorkflow(%s): %v", id, err)
	}
	if !op.GetDone() {
		t.Fatal("expected operation to be done")
	}
	return parent + "/workflows/" + id
}

func TestCreateAndGetWorkflow(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := workflowspb.NewWorkflowsClient(conn)
	name := createLibrary(t, client, "pricing", pricing)

	wf, err := client.GetWorkflow(context.Background(), &workflowspb.GetWorkflowRequest{Name: name})
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if wf.GetName() != name {
		t.Fatalf("unexpected name: %s", wf.GetName())
	}
	if wf.GetState() != workflowspb.Workflow_ACTIVE {
		t.Fatalf("unexpected state: %v", wf.GetState())
	}
	if wf.GetSourceContents() != pricing {
		t.Fatal("expected source_contents to round-trip")
	}
}

func TestListAndDeleteWorkflows(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := workflowspb.NewWorkflowsClient(conn)
	ctx := context.Background()

	for _, id := range []string{"lib-a", "lib-b"} {
		createLibrary(t, client, id, "main: 1")
	}

	resp, err := client.ListWorkflows(ctx, &workflowspb.ListWorkflowsRequest{Parent: parent})
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(resp.GetWorkflows()) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(resp.GetWorkflows()))
	}
	if !strings.HasSuffix(resp.GetWorkflows()[0].GetName(), "/workflows/lib-a") {
		t.Errorf("unexpected first workflow %s", resp.GetWorkflows()[0].GetName())
	}

	op, err := client.DeleteWorkflow(ctx, &workflowspb.DeleteWorkflowRequest{Name: parent + "/workflows/lib-a"})
	if err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if !op.GetDone() {
		t.Fatal("expected delete operation to be done")
	}

	_, err = client.GetWorkflow(ctx, &workflowspb.GetWorkflowRequest{Name: parent + "/workflows/lib-a"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
	_, err = client.DeleteWorkflow(ctx, &workflowspb.DeleteWorkflowRequest{Name: parent + "/workflows/lib-a"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestUpdateWorkflow(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := workflowspb.NewWorkflowsClient(conn)
	ctx := context.Background()
	name := createLibrary(t, client, "to-update", "main: 1")

	op, err := client.UpdateWorkflow(ctx, &workflowspb.UpdateWorkflowRequest{
		Workflow: &workflowspb.Workflow{
			Name:       name,
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: "main: 2"},
		},
	})
	if err != nil {
		t.Fatalf("UpdateWorkflow: %v", err)
	}
	if !op.GetDone() {
		t.Fatal("expected update operation to be done")
	}

	wf, err := client.GetWorkflow(ctx, &workflowspb.GetWorkflowRequest{Name: name})
	if err != nil {
		t.Fatalf("GetWorkflow after update: %v", err)
	}
	if wf.GetSourceContents() != "main: 2" || wf.GetRevisionId() != "000002-000" {
		t.Fatalf("workflow not updated: %v", wf)
	}

	_, err = client.UpdateWorkflow(ctx, &workflowspb.UpdateWorkflowRequest{
		Workflow: &workflowspb.Workflow{
			Name:       name,
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: "main: 2 +"},
		},
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad source, got %v", err)
	}
}

func TestCreateWorkflowErrors(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := workflowspb.NewWorkflowsClient(conn)
	ctx := context.Background()

	_, err := client.CreateWorkflow(ctx, &workflowspb.CreateWorkflowRequest{
		Parent:   parent,
		Workflow: &workflowspb.Workflow{},
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing workflow_id, got %v", err)
	}

	_, err = client.CreateWorkflow(ctx, &workflowspb.CreateWorkflowRequest{
		Parent:     parent,
		WorkflowId: "bad",
		Workflow: &workflowspb.Workflow{
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: "steps: []"},
		},
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for invalid source, got %v", err)
	}

	createLibrary(t, client, "dup", "main: 1")
	_, err = client.CreateWorkflow(ctx, &workflowspb.CreateWorkflowRequest{
		Parent:     parent,
		WorkflowId: "dup",
		Workflow: &workflowspb.Workflow{
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: "main: 1"},
		},
	})
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestExecutions(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	wfClient := workflowspb.NewWorkflowsClient(conn)
	exClient := executionspb.NewExecutionsClient(conn)
	ctx := context.Background()

	workflowName := createLibrary(t, wfClient, "pricing", pricing)

	exec, err := exClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    workflowName,
		Execution: &executionspb.Execution{Argument: "4"},
	})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if !strings.HasPrefix(exec.GetName(), workflowName+"/executions/") {
		t.Fatalf("unexpected execution name %s", exec.GetName())
	}
	if exec.GetState() != executionspb.Execution_SUCCEEDED {
		t.Fatalf("expected SUCCEEDED, got %v (error: %v)", exec.GetState(), exec.GetError())
	}
	if exec.GetResult() != "15" {
		t.Fatalf("unexpected result: %s", exec.GetResult())
	}

	got, err := exClient.GetExecution(ctx, &executionspb.GetExecutionRequest{Name: exec.GetName()})
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.GetResult() != "15" || got.GetEndTime() == nil {
		t.Fatalf("unexpected execution %v", got)
	}

	failed, err := exClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    workflowName,
		Execution: &executionspb.Execution{Argument: `"four"`},
	})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if failed.GetState() != executionspb.Execution_FAILED || !strings.Contains(failed.GetError().GetPayload(), "TypeError") {
		t.Fatalf("expected FAILED with TypeError, got %v", failed)
	}

	resp, err := exClient.ListExecutions(ctx, &executionspb.ListExecutionsRequest{Parent: workflowName})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(resp.GetExecutions()) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(resp.GetExecutions()))
	}

	_, err = exClient.CancelExecution(ctx, &executionspb.CancelExecutionRequest{Name: exec.GetName()})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition cancelling a finished execution, got %v", err)
	}
	_, err = exClient.CancelExecution(ctx, &executionspb.CancelExecutionRequest{Name: workflowName + "/executions/run-99"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	_, err = exClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    workflowName,
		Execution: &executionspb.Execution{Argument: "{"},
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad argument, got %v", err)
	}

	_, err = exClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{Parent: parent + "/workflows/missing"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for missing workflow, got %v", err)
	}
}

func TestMapArgument(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	wfClient := workflowspb.NewWorkflowsClient(conn)
	exClient := executionspb.NewExecutionsClient(conn)

	workflowName := createLibrary(t, wfClient, "greet", "main:\n  params: [args]\n  body: args.greeting")

	exec, err := exClient.CreateExecution(context.Background(), &executionspb.CreateExecutionRequest{
		Parent:    workflowName,
		Execution: &executionspb.Execution{Argument: `{"greeting":"hello world"}`},
	})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if exec.GetResult() != `"hello world"` {
		t.Fatalf("unexpected result: got %s", exec.GetResult())
	}
}

func TestOfficialClients(t *testing.T) {
	addr, cleanup := startTestServer(t)
	defer cleanup()

	ctx := context.Background()
	opts := []option.ClientOption{
		option.WithEndpoint(addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}

	wfClient, err := workflows.NewClient(ctx, opts...)
	if err != nil {
		t.Fatalf("workflows.NewClient: %v", err)
	}
	defer wfClient.Close()

	exClient, err := executions.NewClient(ctx, opts...)
	if err != nil {
		t.Fatalf("executions.NewClient: %v", err)
	}
	defer exClient.Close()

	op, err := wfClient.CreateWorkflow(ctx, &workflowspb.CreateWorkflowRequest{
		Parent:     parent,
		WorkflowId: "pricing",
		Workflow: &workflowspb.Workflow{
			SourceCode: &workflowspb.Workflow_SourceContents{SourceContents: pricing},
		},
	})
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	wf, err := op.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if wf.GetName() != parent+"/workflows/pricing" {
		t.Fatalf("unexpected workflow %s", wf.GetName())
	}

	it := wfClient.ListWorkflows(ctx, &workflowspb.ListWorkflowsRequest{Parent: parent})
	count := 0
	for {
		_, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatalf("ListWorkflows: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 workflow, got %d", count)
	}

	exec, err := exClient.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    wf.GetName(),
		Execution: &executionspb.Execution{Argument: "2"},
	})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	if exec.GetState() != executionspb.Execution_SUCCEEDED || exec.GetResult() != "9" {
		t.Fatalf("unexpected execution %v", exec)
	}
}

func TestNameMapping(t *testing.T) {
	run := "projects/p/locations/l/libraries/x/runs/run-1"
	exec := "projects/p/locations/l/workflows/x/executions/run-1"
	if got := toExecutionName(run); got != exec {
		t.Errorf("toExecutionName = %s", got)
	}
	if got := toRunName(exec); got != run {
		t.Errorf("toRunName = %s", got)
	}
	if got := lastSegment(run); got != "run-1" {
		t.Errorf("lastSegment = %s", got)
	}
}
