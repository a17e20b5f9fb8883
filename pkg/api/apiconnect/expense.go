package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/pkg/api"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService.
const ExpenseServiceName = "contri.v1.ExpenseService"

// Procedure paths, as sent in the URL path of each call.
const (
	ExpenseServiceComputeSplitProcedure      = "/contri.v1.ExpenseService/ComputeSplit"
	ExpenseServiceAddExpenseProcedure        = "/contri.v1.ExpenseService/AddExpense"
	ExpenseServiceGetExpenseProcedure        = "/contri.v1.ExpenseService/GetExpense"
	ExpenseServiceListExpensesProcedure      = "/contri.v1.ExpenseService/ListExpenses"
	ExpenseServiceUpdateExpenseProcedure     = "/contri.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure     = "/contri.v1.ExpenseService/DeleteExpense"
	ExpenseServiceRequestSettlementProcedure = "/contri.v1.ExpenseService/RequestSettlement"
	ExpenseServiceConfirmSettlementProcedure = "/contri.v1.ExpenseService/ConfirmSettlement"
	ExpenseServiceRecordPaymentProcedure     = "/contri.v1.ExpenseService/RecordPayment"
)

// ExpenseServiceHandler is implemented by the server side of the ExpenseService.
type ExpenseServiceHandler interface {
	ComputeSplit(context.Context, *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error)
	AddExpense(context.Context, *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error)
	UpdateExpense(context.Context, *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error)
	RequestSettlement(context.Context, *connect.Request[api.RequestSettlementRequest]) (*connect.Response[api.SettlementResponse], error)
	ConfirmSettlement(context.Context, *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error)
	RecordPayment(context.Context, *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler serving every ExpenseService procedure.
// It returns the path to mount the handler on.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(ExpenseServiceComputeSplitProcedure, connect.NewUnaryHandler(ExpenseServiceComputeSplitProcedure, svc.ComputeSplit, opts...))
	mux.Handle(ExpenseServiceAddExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceAddExpenseProcedure, svc.AddExpense, opts...))
	mux.Handle(ExpenseServiceGetExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceGetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(ExpenseServiceListExpensesProcedure, connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(ExpenseServiceUpdateExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...))
	mux.Handle(ExpenseServiceDeleteExpenseProcedure, connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(ExpenseServiceRequestSettlementProcedure, connect.NewUnaryHandler(ExpenseServiceRequestSettlementProcedure, svc.RequestSettlement, opts...))
	mux.Handle(ExpenseServiceConfirmSettlementProcedure, connect.NewUnaryHandler(ExpenseServiceConfirmSettlementProcedure, svc.ConfirmSettlement, opts...))
	mux.Handle(ExpenseServiceRecordPaymentProcedure, connect.NewUnaryHandler(ExpenseServiceRecordPaymentProcedure, svc.RecordPayment, opts...))
	return "/" + ExpenseServiceName + "/", mux
}

// ExpenseServiceClient is a client for the ExpenseService.
type ExpenseServiceClient struct {
	computeSplit      *connect.Client[api.ComputeSplitRequest, api.ComputeSplitResponse]
	addExpense        *connect.Client[api.AddExpenseRequest, api.AddExpenseResponse]
	getExpense        *connect.Client[api.GetExpenseRequest, api.GetExpenseResponse]
	listExpenses      *connect.Client[api.ListExpensesRequest, api.ListExpensesResponse]
	updateExpense     *connect.Client[api.UpdateExpenseRequest, api.UpdateExpenseResponse]
	deleteExpense     *connect.Client[api.DeleteExpenseRequest, api.DeleteExpenseResponse]
	requestSettlement *connect.Client[api.RequestSettlementRequest, api.SettlementResponse]
	confirmSettlement *connect.Client[api.ConfirmSettlementRequest, api.SettlementResponse]
	recordPayment     *connect.Client[api.RecordPaymentRequest, api.RecordPaymentResponse]
}

// NewExpenseServiceClient constructs a client for the ExpenseService at baseURL, for
// example http://localhost:8080.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ExpenseServiceClient{
		computeSplit:      connect.NewClient[api.ComputeSplitRequest, api.ComputeSplitResponse](httpClient, baseURL+ExpenseServiceComputeSplitProcedure, opts...),
		addExpense:        connect.NewClient[api.AddExpenseRequest, api.AddExpenseResponse](httpClient, baseURL+ExpenseServiceAddExpenseProcedure, opts...),
		getExpense:        connect.NewClient[api.GetExpenseRequest, api.GetExpenseResponse](httpClient, baseURL+ExpenseServiceGetExpenseProcedure, opts...),
		listExpenses:      connect.NewClient[api.ListExpensesRequest, api.ListExpensesResponse](httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...),
		updateExpense:     connect.NewClient[api.UpdateExpenseRequest, api.UpdateExpenseResponse](httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...),
		deleteExpense:     connect.NewClient[api.DeleteExpenseRequest, api.DeleteExpenseResponse](httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...),
		requestSettlement: connect.NewClient[api.RequestSettlementRequest, api.SettlementResponse](httpClient, baseURL+ExpenseServiceRequestSettlementProcedure, opts...),
		confirmSettlement: connect.NewClient[api.ConfirmSettlementRequest, api.SettlementResponse](httpClient, baseURL+ExpenseServiceConfirmSettlementProcedure, opts...),
		recordPayment:     connect.NewClient[api.RecordPaymentRequest, api.RecordPaymentResponse](httpClient, baseURL+ExpenseServiceRecordPaymentProcedure, opts...),
	}
}

func (c *ExpenseServiceClient) ComputeSplit(ctx context.Context, req *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error) {
	return c.computeSplit.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) RequestSettlement(ctx context.Context, req *connect.Request[api.RequestSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return c.requestSettlement.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) ConfirmSettlement(ctx context.Context, req *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return c.confirmSettlement.CallUnary(ctx, req)
}

func (c *ExpenseServiceClient) RecordPayment(ctx context.Context, req *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error) {
	return c.recordPayment.CallUnary(ctx, req)
}
