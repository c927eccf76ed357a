// Package grpcapi serves libraries over the Cloud Workflows gRPC surface so
// the official Google Cloud Go clients can deploy and run them. A workflow
// resource maps to a library and an execution maps to a run:
//
//	projects/p/locations/l/workflows/x               <-> projects/p/locations/l/libraries/x
//	projects/p/locations/l/workflows/x/executions/r  <-> projects/p/locations/l/libraries/x/runs/r
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	executionspb "cloud.google.com/go/workflows/executions/apiv1/executionspb"
	workflowspb "cloud.google.com/go/workflows/apiv1/workflowspb"

	"github.com/lemonberrylabs/splice/pkg/api"
	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// Server implements the Workflows, Executions and Operations gRPC services.
type Server struct {
	workflowspb.UnimplementedWorkflowsServer
	executionspb.UnimplementedExecutionsServer
	longrunningpb.UnimplementedOperationsServer

	catalog *catalog.Catalog
	grpc    *grpc.Server
}

// New creates a new gRPC server over the given catalog.
func New(cat *catalog.Catalog) *Server {
	srv := &Server{catalog: cat}

	gs := grpc.NewServer()
	workflowspb.RegisterWorkflowsServer(gs, srv)
	executionspb.RegisterExecutionsServer(gs, srv)
	longrunningpb.RegisterOperationsServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// ServeListener serves gRPC requests on an existing listener.
func (s *Server) ServeListener(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Workflows Service ---

func (s *Server) CreateWorkflow(ctx context.Context, req *workflowspb.CreateWorkflowRequest) (*longrunningpb.Operation, error) {
	if req.GetWorkflowId() == "" {
		return nil, status.Error(codes.InvalidArgument, "workflow_id is required")
	}
	wfProto := req.GetWorkflow()
	if wfProto == nil {
		return nil, status.Error(codes.InvalidArgument, "workflow is required")
	}
	src := wfProto.GetSourceContents()
	if src == "" {
		return nil, status.Error(codes.InvalidArgument, "source_contents is required")
	}

	lib, err := s.catalog.Create(req.GetParent(), req.GetWorkflowId(), src, wfProto.GetDescription())
	if err != nil {
		return nil, toStatus(err)
	}

	return doneOperation("create-"+req.GetWorkflowId(), libraryToProto(lib))
}

func (s *Server) GetWorkflow(ctx context.Context, req *workflowspb.GetWorkflowRequest) (*workflowspb.Workflow, error) {
	lib, err := s.catalog.Store().GetLibrary(toLibraryName(req.GetName()))
	if err != nil {
		return nil, toStatus(err)
	}
	return libraryToProto(lib), nil
}

func (s *Server) ListWorkflows(ctx context.Context, req *workflowspb.ListWorkflowsRequest) (*workflowspb.ListWorkflowsResponse, error) {
	libraries := s.catalog.Store().ListLibraries(req.GetParent())

	pbWorkflows := make([]*workflowspb.Workflow, len(libraries))
	for i, lib := range libraries {
		pbWorkflows[i] = libraryToProto(lib)
	}

	return &workflowspb.ListWorkflowsResponse{
		Workflows: pbWorkflows,
	}, nil
}

func (s *Server) UpdateWorkflow(ctx context.Context, req *workflowspb.UpdateWorkflowRequest) (*longrunningpb.Operation, error) {
	wfProto := req.GetWorkflow()
	if wfProto == nil {
		return nil, status.Error(codes.InvalidArgument, "workflow is required")
	}

	lib, err := s.catalog.Update(toLibraryName(wfProto.GetName()), wfProto.GetSourceContents(), wfProto.GetDescription())
	if err != nil {
		return nil, toStatus(err)
	}

	return doneOperation("update-"+lastSegment(lib.Name), libraryToProto(lib))
}

func (s *Server) DeleteWorkflow(ctx context.Context, req *workflowspb.DeleteWorkflowRequest) (*longrunningpb.Operation, error) {
	name := toLibraryName(req.GetName())
	if err := s.catalog.Delete(name); err != nil {
		return nil, toStatus(err)
	}

	return &longrunningpb.Operation{
		Name: fmt.Sprintf("projects/-/locations/-/operations/delete-%s", lastSegment(name)),
		Done: true,
	}, nil
}

// --- Executions Service ---

// CreateExecution runs the library's main function to completion before
// returning, so the execution is always in a terminal state.
func (s *Server) CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest) (*executionspb.Execution, error) {
	args, err := api.ParseArgument(req.GetExecution().GetArgument())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	run, err := s.catalog.Run(ctx, toLibraryName(req.GetParent()), args)
	if err != nil {
		return nil, toStatus(err)
	}
	return runToProto(run), nil
}

func (s *Server) GetExecution(ctx context.Context, req *executionspb.GetExecutionRequest) (*executionspb.Execution, error) {
	run, err := s.catalog.Store().GetRun(toRunName(req.GetName()))
	if err != nil {
		return nil, toStatus(err)
	}
	return runToProto(run), nil
}

func (s *Server) ListExecutions(ctx context.Context, req *executionspb.ListExecutionsRequest) (*executionspb.ListExecutionsResponse, error) {
	runs := s.catalog.Store().ListRuns(toLibraryName(req.GetParent()))

	pbExecs := make([]*executionspb.Execution, len(runs))
	for i, run := range runs {
		pbExecs[i] = runToProto(run)
	}

	return &executionspb.ListExecutionsResponse{
		Executions: pbExecs,
	}, nil
}

func (s *Server) CancelExecution(ctx context.Context, req *executionspb.CancelExecutionRequest) (*executionspb.Execution, error) {
	name := toRunName(req.GetName())

	if err := s.catalog.Store().CancelRun(name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	run, err := s.catalog.Store().GetRun(name)
	if err != nil {
		return nil, toStatus(err)
	}
	return runToProto(run), nil
}

// --- Name mapping ---

func toLibraryName(name string) string {
	return strings.Replace(name, "/workflows/", "/libraries/", 1)
}

func toWorkflowName(name string) string {
	return strings.Replace(name, "/libraries/", "/workflows/", 1)
}

func toRunName(name string) string {
	return strings.Replace(toLibraryName(name), "/executions/", "/runs/", 1)
}

func toExecutionName(name string) string {
	return strings.Replace(toWorkflowName(name), "/runs/", "/executions/", 1)
}

func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}

// --- Conversions ---

func toStatus(err error) error {
	var ee *types.ExprError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, store.ErrNotActive):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, catalog.ErrInvalidDefinition), errors.Is(err, catalog.ErrInvalidExpression):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &ee):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func libraryToProto(lib *store.Library) *workflowspb.Workflow {
	pb := &workflowspb.Workflow{
		Name:        toWorkflowName(lib.Name),
		Description: lib.Description,
		RevisionId:  lib.RevisionID,
		CreateTime:  timestamppb.New(lib.CreateTime),
		UpdateTime:  timestamppb.New(lib.UpdateTime),
		Labels:      lib.Labels,
	}

	switch lib.State {
	case store.LibraryActive:
		pb.State = workflowspb.Workflow_ACTIVE
	default:
		pb.State = workflowspb.Workflow_STATE_UNSPECIFIED
	}

	if lib.SourceCode != "" {
		pb.SourceCode = &workflowspb.Workflow_SourceContents{
			SourceContents: lib.SourceCode,
		}
	}

	return pb
}

func runToProto(run *store.Run) *executionspb.Execution {
	pb := &executionspb.Execution{
		Name:               toExecutionName(run.Name),
		StartTime:          timestamppb.New(run.StartTime),
		Argument:           run.Argument,
		Result:             run.Result,
		WorkflowRevisionId: run.LibraryRevisionID,
	}

	switch run.State {
	case store.RunActive:
		pb.State = executionspb.Execution_ACTIVE
	case store.RunSucceeded:
		pb.State = executionspb.Execution_SUCCEEDED
	case store.RunFailed:
		pb.State = executionspb.Execution_FAILED
	case store.RunCancelled:
		pb.State = executionspb.Execution_CANCELLED
	default:
		pb.State = executionspb.Execution_STATE_UNSPECIFIED
	}

	if run.Error != nil {
		pb.Error = &executionspb.Execution_Error{
			Payload: run.Error.Payload,
			Context: run.Error.Context,
		}
	}

	if !run.EndTime.IsZero() {
		pb.EndTime = timestamppb.New(run.EndTime)
	}

	return pb
}

// --- Operations Service (for official client LRO support) ---

// GetOperation always reports NotFound. Every operation is returned already
// done, so clients never need to poll.
func (s *Server) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	return nil, status.Errorf(codes.NotFound, "operation %q not found (all operations complete immediately)", req.GetName())
}

// doneOperation wraps a proto message in an already-completed LRO Operation.
func doneOperation(name string, msg proto.Message) (*longrunningpb.Operation, error) {
	any, err := anypb.New(msg)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal operation result: %v", err)
	}
	return &longrunningpb.Operation{
		Name: fmt.Sprintf("projects/-/locations/-/operations/%s", name),
		Done: true,
		Result: &longrunningpb.Operation_Response{
			Response: any,
		},
	}, nil
}
