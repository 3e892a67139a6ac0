package management

import (
	"encoding/json"
	"fmt"
	"strings"

	"herald/internal/decision"
	"herald/pkg/cel"
)

func ValidateCreateTemplate(req CreateTemplateRequest) error {
	required := []struct{ field, value string }{
		{"tenant_id", req.TenantID},
		{"subject", req.Subject},
		{"verb", req.Verb},
		{"name", req.Name},
		{"sender", req.Sender},
		{"recipient_key", req.RecipientKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.field)
		}
	}
	if req.MaxSend < 0 {
		return fmt.Errorf("max_send must be non-negative")
	}
	if req.ResendIntervalSeconds < 0 {
		return fmt.Errorf("resend_interval_seconds must be non-negative")
	}
	return validateCondition(req.Condition)
}

func ValidateUpdateTemplate(req UpdateTemplateRequest) error {
	for field, value := range map[string]*string{
		"subject":       req.Subject,
		"verb":          req.Verb,
		"name":          req.Name,
		"sender":        req.Sender,
		"recipient_key": req.RecipientKey,
	} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
	}
	if req.MaxSend != nil && *req.MaxSend < 0 {
		return fmt.Errorf("max_send must be non-negative")
	}
	if req.ResendIntervalSeconds != nil && *req.ResendIntervalSeconds < 0 {
		return fmt.Errorf("resend_interval_seconds must be non-negative")
	}
	if req.Condition != nil {
		return validateCondition(*req.Condition)
	}
	return nil
}

func validateCondition(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}
	if err := evaluator.ValidateCondition(expr); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

// ParseAllowedClasses accepts a JSON array of strings or a single
// comma-delimited string. Classes are lower-cased; blanks are dropped.
func ParseAllowedClasses(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return decision.ParseClasses(strings.Join(list, ",")), nil
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return nil, fmt.Errorf("allowed_classes must be an array of strings or a comma-delimited string")
	}
	return decision.ParseClasses(joined), nil
}

func ValidatePreferences(recipient, sender string, req PutPreferencesRequest) error {
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(sender) == "" {
		return fmt.Errorf("sender is required")
	}
	if strings.Contains(sender, "|") {
		return fmt.Errorf("sender cannot contain '|'")
	}
	if req.ResendIntervalSeconds < 0 {
		return fmt.Errorf("resend_interval_seconds must be non-negative")
	}
	if req.Window != nil {
		if err := req.Window.Validate(); err != nil {
			return fmt.Errorf("invalid window: %w", err)
		}
	}
	if _, err := ParseAllowedClasses(req.AllowedClasses); err != nil {
		return err
	}
	return nil
}
