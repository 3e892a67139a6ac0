package cel

// ConditionExamples are served by the management API as guidance for
// template authors.
var ConditionExamples = map[string]string{
	"context_equals":     `context["region"] == "west"`,
	"nested_key":         `context["patient.email"].endsWith("@example.com")`,
	"guarded_lookup":     `"priority" in context && context["priority"] == "high"`,
	"in_list":            `context["status"] in ["confirmed", "rescheduled"]`,
	"verb_match":         `verb == "created" || verb == "updated"`,
	"identity_present":   `identity["value"] != ""`,
	"business_hours_utc": `occurred_at.getHours() >= 8 && occurred_at.getHours() < 18`,
	"combined":           `subject == "appointment" && context["channel"] != "sms"`,
}
