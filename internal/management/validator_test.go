package management

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/decision"
)

func TestValidateCreateTemplate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateTemplateRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*CreateTemplateRequest) {}},
		{name: "missing sender", mutate: func(r *CreateTemplateRequest) { r.Sender = " " }, wantErr: "sender is required"},
		{name: "negative max send", mutate: func(r *CreateTemplateRequest) { r.MaxSend = -1 }, wantErr: "max_send"},
		{name: "negative interval", mutate: func(r *CreateTemplateRequest) { r.ResendIntervalSeconds = -5 }, wantErr: "resend_interval_seconds"},
		{name: "valid condition", mutate: func(r *CreateTemplateRequest) { r.Condition = `context["clinic.region"] == "north"` }},
		{name: "broken condition", mutate: func(r *CreateTemplateRequest) { r.Condition = "(((" }, wantErr: "invalid condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			err := ValidateCreateTemplate(req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateUpdateTemplate(t *testing.T) {
	empty := ""
	assert.Error(t, ValidateUpdateTemplate(UpdateTemplateRequest{Name: &empty}))

	neg := -1
	assert.Error(t, ValidateUpdateTemplate(UpdateTemplateRequest{MaxSend: &neg}))

	assert.NoError(t, ValidateUpdateTemplate(UpdateTemplateRequest{}))
}

func TestParseAllowedClasses(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: ``, want: []string{}},
		{raw: `null`, want: []string{}},
		{raw: `["Reminder", " billing "]`, want: []string{"reminder", "billing"}},
		{raw: `"reminder,,marketing"`, want: []string{"reminder", "marketing"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAllowedClasses(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAllowedClasses(json.RawMessage(`42`))
	assert.Error(t, err)
}

func TestValidatePreferences(t *testing.T) {
	assert.NoError(t, ValidatePreferences("pat@example.com", "clinic", PutPreferencesRequest{
		Window: &decision.DeliveryWindow{StartHour: 22, EndHour: 6, Timezone: "America/New_York"},
	}))
	assert.Error(t, ValidatePreferences("", "clinic", PutPreferencesRequest{}))
	assert.Error(t, ValidatePreferences("pat@example.com", "a|b", PutPreferencesRequest{}))
	assert.Error(t, ValidatePreferences("pat@example.com", "clinic", PutPreferencesRequest{ResendIntervalSeconds: -1}))
	assert.Error(t, ValidatePreferences("pat@example.com", "clinic", PutPreferencesRequest{
		Window: &decision.DeliveryWindow{StartHour: 9, EndHour: 17, Timezone: "Mars/Olympus"},
	}))
}
