package huggy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprestedigital/creditbot/internal/messages"
)

type apiCall struct {
	method string
	chatID string
	msg    OutboundMessage
	flowID int
	stepID string
	tabID  string
}

type fakeAPI struct {
	calls       []apiCall
	workflowErr error
	closeErr    error
}

func (f *fakeAPI) PostMessage(_ context.Context, chatID string, msg OutboundMessage) error {
	f.calls = append(f.calls, apiCall{method: "message", chatID: chatID, msg: msg})
	return nil
}

func (f *fakeAPI) TriggerFlow(_ context.Context, chatID string, flowID int) error {
	f.calls = append(f.calls, apiCall{method: "flow", chatID: chatID, flowID: flowID})
	return nil
}

func (f *fakeAPI) UpdateWorkflowStep(_ context.Context, chatID, stepID string) error {
	f.calls = append(f.calls, apiCall{method: "workflow", chatID: chatID, stepID: stepID})
	return f.workflowErr
}

func (f *fakeAPI) CloseChat(_ context.Context, chatID, tabulationID string) error {
	f.calls = append(f.calls, apiCall{method: "close", chatID: chatID, tabID: tabulationID})
	return f.closeErr
}

func newTestService(t *testing.T, api ChatAPI) *Service {
	t.Helper()
	catalog, err := messages.Load()
	require.NoError(t, err)
	return NewService(api, catalog, Routing{
		AutoDistributionFlow: 101,
		AuthorizationFlow:    202,
		ApprovedStep:         "step-approved",
		Tabulations: map[string]string{
			"NoCustomerReply": "tab-1",
			"NoInterest":      "tab-2",
		},
	}, nil)
}

func TestSendMessage_RendersTemplate(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	err := svc.SendMessage(context.Background(), "42", "balance_available",
		map[string]string{"valor": "R$ 500,00", "banco": "Facta"}, false)
	require.NoError(t, err)

	require.Len(t, api.calls, 1)
	assert.Equal(t, "42", api.calls[0].chatID)
	assert.Contains(t, api.calls[0].msg.Text, "R$ 500,00")
	assert.False(t, api.calls[0].msg.Internal)
}

func TestSendMessage_ForceInternal(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	err := svc.SendMessage(context.Background(), "42", "welcome_menu", nil, true)
	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	assert.True(t, api.calls[0].msg.Internal)
}

func TestSendMessage_TemplateInternalKept(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	err := svc.SendMessage(context.Background(), "42", "unknown_return",
		map[string]string{"erro": "code 500"}, false)
	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	assert.True(t, api.calls[0].msg.Internal)
}

func TestSendMessage_UnknownKey(t *testing.T) {
	svc := newTestService(t, &fakeAPI{})
	err := svc.SendMessage(context.Background(), "42", "nope", nil, false)
	assert.Error(t, err)
}

func TestFinishAttendance_RemovesThenCloses(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	err := svc.FinishAttendance(context.Background(), "42", "NoCustomerReply")
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	assert.Equal(t, "workflow", api.calls[0].method)
	assert.Equal(t, "", api.calls[0].stepID)
	assert.Equal(t, "close", api.calls[1].method)
	assert.Equal(t, "tab-1", api.calls[1].tabID)
}

func TestFinishAttendance_RefusesWithoutTabulation(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)

	err := svc.FinishAttendance(context.Background(), "42", "UnmappedReason")
	assert.ErrorIs(t, err, ErrNoTabulation)
	assert.Empty(t, api.calls)
}

func TestFinishAttendance_ClosesEvenWhenWorkflowFails(t *testing.T) {
	api := &fakeAPI{workflowErr: errors.New("404")}
	svc := newTestService(t, api)

	err := svc.FinishAttendance(context.Background(), "42", "NoInterest")
	require.NoError(t, err)

	require.Len(t, api.calls, 2)
	assert.Equal(t, "close", api.calls[1].method)
}

func TestFlowAndWorkflowWrappers(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api)
	ctx := context.Background()

	require.NoError(t, svc.StartAutoDistribution(ctx, "42"))
	require.NoError(t, svc.StartAuthorizationFlow(ctx, "42"))
	require.NoError(t, svc.MoveToApproved(ctx, "42"))

	require.Len(t, api.calls, 3)
	assert.Equal(t, 101, api.calls[0].flowID)
	assert.Equal(t, 202, api.calls[1].flowID)
	assert.Equal(t, "step-approved", api.calls[2].stepID)
}
