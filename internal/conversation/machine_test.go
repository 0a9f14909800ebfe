package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/legal-drafting/internal/command"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/store"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

func leaseTemplate() *model.Template {
	return &model.Template{
		Title:          "Residential Lease Agreement",
		DocType:        "lease",
		Jurisdiction:   "California",
		SimilarityTags: []string{"lease", "residential", "rental"},
		Body: "This Residential Lease Agreement is made between {{landlord_name}} and {{tenant_name}}.\n\n" +
			"Rent is {{rent_amount}} per month starting {{start_date}}.\n\n{{pet_clause}}",
		Variables: []model.Variable{
			{Key: "landlord_name", Label: "Landlord Name", Required: true, Example: "John Smith"},
			{Key: "tenant_name", Label: "Tenant Name", Required: true, Example: "Jane Doe"},
			{Key: "rent_amount", Label: "Rent Amount", Required: true, DType: model.DataTypeNumber},
			{Key: "start_date", Label: "Start Date", Required: true, DType: model.DataTypeDate},
			{Key: "pet_clause", Label: "Pet Clause"},
		},
	}
}

func ndaTemplate() *model.Template {
	return &model.Template{
		Title:          "Mutual Non-Disclosure Agreement",
		DocType:        "nda",
		SimilarityTags: []string{"nda", "confidentiality"},
		Body:           "This agreement is between {{party_a}} and {{party_b}}.",
		Variables: []model.Variable{
			{Key: "party_a", Label: "First Party", Required: true},
			{Key: "party_b", Label: "Second Party", Required: true},
		},
	}
}

type fixture struct {
	store   *store.MemoryStore
	machine *Machine
	leaseID string
	ndaID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore(logger.Nop())
	leaseID, err := s.Create(ctx, leaseTemplate())
	require.NoError(t, err)
	ndaID, err := s.Create(ctx, ndaTemplate())
	require.NoError(t, err)
	return &fixture{
		store:   s,
		machine: NewMachine(s, DefaultMatchThreshold, logger.Nop()),
		leaseID: leaseID,
		ndaID:   ndaID,
	}
}

// apply routes message and applies it to conv the way Sessions does:
// state changes are kept only on success.
func (f *fixture) apply(t *testing.T, conv *model.Conversation, message string) (*Reply, error) {
	t.Helper()
	work := conv.Snapshot()
	reply, err := f.machine.Apply(context.Background(), work, command.Route(message))
	if err == nil {
		*conv = *work
	}
	return reply, err
}

func newConv() *model.Conversation {
	return model.NewConversation("c1", testNow)
}

func TestMachineFreeTextSelectsTemplate(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	reply, err := f.apply(t, conv, "draft a lease agreement")
	require.NoError(t, err)

	assert.Equal(t, f.leaseID, conv.SelectedTemplateID)
	assert.Equal(t, model.StatusCollecting, conv.Status)
	assert.Equal(t, model.MessageTypeText, reply.Type)
	assert.Contains(t, reply.Message, "Residential Lease Agreement")
	assert.Contains(t, reply.Message, "What is the Landlord Name? (e.g. John Smith)")
	assert.Equal(t, []string{"landlord_name", "tenant_name", "rent_amount", "start_date"}, reply.Data["missing"])
	require.Len(t, reply.Events, 1)
	assert.Equal(t, model.EventTemplateSelected, reply.Events[0].Type)
}

func TestMachineNoMatchStaysIdle(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "draft a marriage certificate")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoMatchingTemplate)
	assert.Equal(t, model.StatusIdle, conv.Status)
	assert.Empty(t, conv.SelectedTemplateID)
}

func TestMachineDraftCommandSelects(t *testing.T) {
	f := newFixture(t)

	t.Run("by id", func(t *testing.T) {
		conv := newConv()
		reply, err := f.apply(t, conv, "/draft "+f.ndaID)
		require.NoError(t, err)
		assert.Equal(t, f.ndaID, conv.SelectedTemplateID)
		assert.Equal(t, 1.0, reply.Data["score"])
	})

	t.Run("by description", func(t *testing.T) {
		conv := newConv()
		_, err := f.apply(t, conv, `/draft "confidentiality agreement"`)
		require.NoError(t, err)
		assert.Equal(t, f.ndaID, conv.SelectedTemplateID)
	})

	t.Run("unknown", func(t *testing.T) {
		conv := newConv()
		_, err := f.apply(t, conv, "/draft spaceship")
		assert.ErrorIs(t, err, model.ErrNoMatchingTemplate)
	})
}

func TestMachineSwitchingTemplateResetsBindings(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.leaseID)
	require.NoError(t, err)
	_, err = f.apply(t, conv, "tenant_name: Jane Doe")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", conv.Bindings["tenant_name"])

	_, err = f.apply(t, conv, "/draft "+f.ndaID)
	require.NoError(t, err)
	assert.Empty(t, conv.Bindings)
	assert.Equal(t, model.StatusCollecting, conv.Status)
	assert.Equal(t, f.ndaID, conv.SelectedTemplateID)
}

func TestMachineAssignments(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		message  string
		wantErr  error
		want     map[string]string
		wantMiss []string
	}{
		{
			name:    "single key",
			message: "tenant_name: Jane Doe",
			want:    map[string]string{"tenant_name": "Jane Doe"},
		},
		{
			name:    "label and equals sign",
			message: "Landlord Name = John Smith",
			want:    map[string]string{"landlord_name": "John Smith"},
		},
		{
			name:    "case insensitive key on several lines",
			message: "TENANT_NAME: Jane Doe\nrent_amount: 2,500; start_date: 2024-02-01",
			want:    map[string]string{"tenant_name": "Jane Doe", "rent_amount": "2,500", "start_date": "2024-02-01"},
		},
		{
			name:     "unknown key binds nothing",
			message:  "tenant_name: Jane Doe\nparking_spot: B12",
			wantErr:  model.ErrUnknownVariable,
			want:     map[string]string{},
			wantMiss: []string{"parking_spot"},
		},
		{
			name:     "invalid value binds nothing",
			message:  "tenant_name: Jane Doe\nrent_amount: lots",
			wantErr:  model.ErrInvalidInput,
			want:     map[string]string{},
			wantMiss: []string{"rent_amount"},
		},
		{
			name:    "mixed assignment and prose",
			message: "tenant_name: Jane Doe\nand some notes",
			wantErr: model.ErrInvalidInput,
			want:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := newConv()
			_, err := f.apply(t, conv, "/draft "+f.leaseID)
			require.NoError(t, err)

			_, err = f.apply(t, conv, tt.message)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				e, ok := model.AsError(err)
				require.True(t, ok)
				if tt.wantMiss != nil {
					assert.Equal(t, tt.wantMiss, e.Missing)
				}
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, conv.Bindings)
		})
	}
}

func TestMachineFreeTextAnswersPendingQuestion(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.ndaID)
	require.NoError(t, err)

	reply, err := f.apply(t, conv, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", conv.Bindings["party_a"])
	assert.Contains(t, reply.Message, "What is the Second Party?")

	_, err = f.apply(t, conv, "Globex Inc")
	require.NoError(t, err)
	assert.Equal(t, "Globex Inc", conv.Bindings["party_b"])
	assert.Equal(t, model.StatusReady, conv.Status)

	reply, err = f.apply(t, conv, "anything else")
	require.NoError(t, err)
	assert.Contains(t, reply.Message, "Every variable already has a value")
	assert.Equal(t, "Globex Inc", conv.Bindings["party_b"])
}

func TestMachineProseWithColonAnswersPendingQuestion(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.ndaID)
	require.NoError(t, err)

	_, err = f.apply(t, conv, "Note: call after 5:30pm")
	require.NoError(t, err)
	assert.Equal(t, "Note: call after 5:30pm", conv.Bindings["party_a"])

	_, err = f.apply(t, conv, "https://acme.example/legal")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example/legal", conv.Bindings["party_b"])

	_, err = f.apply(t, conv, "note_to_self: call after 5pm")
	assert.ErrorIs(t, err, model.ErrUnknownVariable)

	_, err = f.apply(t, conv, "First Party: Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", conv.Bindings["party_a"])
}

func TestMachineDraftRequiresBindings(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.ndaID)
	require.NoError(t, err)
	_, err = f.apply(t, conv, "party_a: Acme Corp")
	require.NoError(t, err)

	_, err = f.apply(t, conv, "/draft")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrMissingRequiredVariables)
	e, _ := model.AsError(err)
	assert.Equal(t, []string{"party_b"}, e.Missing)
	assert.Equal(t, model.StatusCollecting, conv.Status)

	_, err = f.apply(t, conv, "party_b: Globex Inc")
	require.NoError(t, err)
	reply, err := f.apply(t, conv, "/draft")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRendered, conv.Status)
	assert.Equal(t, model.MessageTypeDraft, reply.Type)
	assert.Equal(t, "This agreement is between Acme Corp and Globex Inc.", reply.Data["draft_md"])
	assert.Contains(t, reply.Data["draft_html"], "<p>This agreement is between Acme Corp and Globex Inc.</p>")
	assert.Equal(t, []string{}, reply.Data["unresolved"])
	assert.Equal(t, reply.Data["draft_md"], conv.LastDraft)
}

func TestMachineRenderedAcceptsNewBindings(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	for _, msg := range []string{"/draft " + f.ndaID, "party_a: Acme; party_b: Globex", "/draft"} {
		_, err := f.apply(t, conv, msg)
		require.NoError(t, err)
	}
	require.Equal(t, model.StatusRendered, conv.Status)

	_, err := f.apply(t, conv, "party_b: Initech")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, conv.Status)

	reply, err := f.apply(t, conv, "/draft")
	require.NoError(t, err)
	assert.Contains(t, reply.Data["draft_md"], "Initech")
}

func TestMachineVarsDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.leaseID)
	require.NoError(t, err)
	_, err = f.apply(t, conv, "tenant_name: Jane Doe")
	require.NoError(t, err)

	before := conv.Snapshot()
	reply, err := f.apply(t, conv, "/vars")
	require.NoError(t, err)

	assert.Equal(t, before.Bindings, conv.Bindings)
	assert.Equal(t, before.Status, conv.Status)
	assert.Equal(t, model.MessageTypeVars, reply.Type)
	assert.Equal(t, map[string]string{"tenant_name": "Jane Doe"}, reply.Data["bindings"])
	assert.Equal(t, []string{"landlord_name", "rent_amount", "start_date"}, reply.Data["missing"])
	assert.Contains(t, reply.Message, "- pet_clause: (not set, optional)")
	assert.Empty(t, reply.Events)
}

func TestMachineCommandsWithoutTemplate(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"/vars", "/draft"} {
		t.Run(msg, func(t *testing.T) {
			conv := newConv()
			_, err := f.apply(t, conv, msg)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
			assert.Equal(t, model.StatusIdle, conv.Status)
		})
	}
}

func TestMachineUnknownCommand(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.leaseID)
	require.NoError(t, err)
	before := conv.Snapshot()

	_, err = f.apply(t, conv, "/publish now")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownCommand)
	assert.Contains(t, err.Error(), "/publish")
	assert.Equal(t, before, conv)
}

func TestMachineSelectedTemplateDeleted(t *testing.T) {
	f := newFixture(t)
	conv := newConv()

	_, err := f.apply(t, conv, "/draft "+f.ndaID)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(context.Background(), f.ndaID))

	_, err = f.apply(t, conv, "/vars")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
