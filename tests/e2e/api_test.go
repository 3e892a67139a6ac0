package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/decision"
	"herald/internal/management"
)

const (
	managementServiceURL = "http://localhost:8084"
)

func TestManagementServiceHealth(t *testing.T) {
	url := fmt.Sprintf("%s/health", managementServiceURL)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestTemplatesCRUD(t *testing.T) {
	createReq := newTemplateRequest("e2e_crud_" + uuid.New().String()[:8])

	created := createTemplate(t, createReq)
	defer deleteTemplate(t, created.ID)

	got := getTemplate(t, created.ID)
	assert.Equal(t, createReq.Name, got.Name)
	assert.Equal(t, createReq.RecipientKey, got.RecipientKey)
	assert.True(t, got.Enabled)

	found := false
	for _, tmpl := range listTemplates(t, createReq.TenantID) {
		if tmpl.ID == created.ID {
			found = true
			break
		}
	}
	assert.True(t, found, "created template should be in the list")

	updated := updateTemplate(t, created.ID, management.UpdateTemplateRequest{
		MaxSend: intPtr(3),
		Enabled: boolPtr(false),
	})
	assert.Equal(t, 3, updated.MaxSend)
	assert.False(t, updated.Enabled)

	versions := getTemplateVersions(t, created.ID)
	assert.GreaterOrEqual(t, len(versions), 2)

	logs := getTemplateAuditLogs(t, created.ID)
	assert.GreaterOrEqual(t, len(logs), 2)
}

func TestPreferencesCRUD(t *testing.T) {
	recipient := fmt.Sprintf("e2e-%s@example.com", uuid.New().String()[:8])

	status, view := putPreferences(t, recipient, "clinic", map[string]interface{}{
		"allowed_classes": "reminder, billing",
		"window":          map[string]interface{}{"start_hour": 8, "end_hour": 20, "timezone": "UTC"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"reminder", "billing"}, view.AllowedClasses)
	defer deletePreferences(t, recipient, "clinic")

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/preferences/%s", managementServiceURL, recipient))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []management.PreferencesView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestEvaluateDryRun(t *testing.T) {
	recipient := fmt.Sprintf("e2e-%s@example.com", uuid.New().String()[:8])
	createReq := newTemplateRequest("e2e_eval_" + uuid.New().String()[:8])
	created := createTemplate(t, createReq)
	defer deleteTemplate(t, created.ID)

	evaluate := func() management.TemplateEvaluation {
		body, err := json.Marshal(management.EvaluateRequest{
			TenantID:      createReq.TenantID,
			Subject:       createReq.Subject,
			Verb:          createReq.Verb,
			IdentityKey:   "appointment_id",
			IdentityValue: uuid.New().String(),
			Context:       map[string]interface{}{"patient": map[string]interface{}{"email": recipient}},
		})
		require.NoError(t, err)

		resp, err := http.Post(fmt.Sprintf("%s/api/v1/evaluate", managementServiceURL), "application/json", bytes.NewBuffer(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out management.EvaluateResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		for _, ev := range out.Evaluations {
			if ev.TemplateID == created.ID {
				return ev
			}
		}
		t.Fatalf("template %s missing from evaluation", created.ID)
		return management.TemplateEvaluation{}
	}

	// Without preferences the recipient has not opted in.
	assert.Equal(t, decision.SendNever.String(), evaluate().Verdict)

	status, _ := putPreferences(t, recipient, createReq.Sender, map[string]interface{}{
		"allowed_classes": []string{createReq.MessageClass},
	})
	require.Equal(t, http.StatusOK, status)
	defer deletePreferences(t, recipient, createReq.Sender)

	assert.Equal(t, decision.SendNow.String(), evaluate().Verdict)
}

func TestValidationErrors(t *testing.T) {
	resp := postJSON(t, "/api/v1/templates", management.CreateTemplateRequest{Name: ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	badCondition := newTemplateRequest("e2e_bad_condition")
	badCondition.Condition = "context["
	resp2 := postJSON(t, "/api/v1/templates", badCondition)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	status, _ := putPreferences(t, "nobody@example.com", "clinic", map[string]interface{}{
		"allowed_classes": 42,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func newTemplateRequest(name string) management.CreateTemplateRequest {
	return management.CreateTemplateRequest{
		TenantID:     "e2e",
		Subject:      "appointment",
		Verb:         "booked",
		Name:         name,
		Sender:       "clinic",
		RecipientKey: "patient.email",
		MessageClass: "reminder",
		MaxSend:      1,
		Enabled:      boolPtr(true),
	}
}

func postJSON(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(managementServiceURL+path, "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	return resp
}

func doRequest(t *testing.T, method, path string, payload interface{}) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	httpReq, err := http.NewRequest(method, managementServiceURL+path, &body)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(management.HeaderUserID, "e2e")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	return resp
}

func createTemplate(t *testing.T, req management.CreateTemplateRequest) management.TemplateView {
	t.Helper()

	resp := doRequest(t, http.MethodPost, "/api/v1/templates", req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view management.TemplateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func getTemplate(t *testing.T, id string) management.TemplateView {
	t.Helper()

	resp := doRequest(t, http.MethodGet, "/api/v1/templates/"+id, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view management.TemplateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func listTemplates(t *testing.T, tenantID string) []management.TemplateView {
	t.Helper()

	resp := doRequest(t, http.MethodGet, "/api/v1/templates?tenant_id="+tenantID, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []management.TemplateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	return views
}

func updateTemplate(t *testing.T, id string, req management.UpdateTemplateRequest) management.TemplateView {
	t.Helper()

	resp := doRequest(t, http.MethodPut, "/api/v1/templates/"+id, req)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view management.TemplateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func deleteTemplate(t *testing.T, id string) {
	t.Helper()

	resp := doRequest(t, http.MethodDelete, "/api/v1/templates/"+id, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func getTemplateVersions(t *testing.T, id string) []management.TemplateVersion {
	t.Helper()

	resp := doRequest(t, http.MethodGet, "/api/v1/templates/"+id+"/versions", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var versions []management.TemplateVersion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&versions))
	return versions
}

func getTemplateAuditLogs(t *testing.T, id string) []management.AuditLog {
	t.Helper()

	resp := doRequest(t, http.MethodGet, "/api/v1/templates/"+id+"/audit", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []management.AuditLog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	return logs
}

func putPreferences(t *testing.T, recipient, sender string, body map[string]interface{}) (int, management.PreferencesView) {
	t.Helper()

	resp := doRequest(t, http.MethodPut, fmt.Sprintf("/api/v1/preferences/%s/%s", recipient, sender), body)
	defer resp.Body.Close()

	var view management.PreferencesView
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	}
	return resp.StatusCode, view
}

func deletePreferences(t *testing.T, recipient, sender string) {
	t.Helper()

	resp := doRequest(t, http.MethodDelete, fmt.Sprintf("/api/v1/preferences/%s/%s", recipient, sender), nil)
	defer resp.Body.Close()
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}
