package access

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// policySchemaDoc constrains an externally-supplied Policy document: the
// four permission fields (user/agent/system/owner), when present, must be
// strings, allow/deny must be arrays of strings, and no other properties
// are accepted. The schema does not check permission names or actor
// pattern syntax.
const policySchemaDoc = `{
	"type": "object",
	"properties": {
		"user_permissions": {"type": "string"},
		"agent_permissions": {"type": "string"},
		"system_permissions": {"type": "string"},
		"owner": {"type": "string"},
		"owner_permissions": {"type": "string"},
		"allow": {"type": "array", "items": {"type": "string"}},
		"deny": {"type": "array", "items": {"type": "string"}},
		"bound_session": {"type": "string"}
	},
	"additionalProperties": false
}`

var policySchema *jsonschema.Schema

func init() {
	var doc any
	if err := json.Unmarshal([]byte(policySchemaDoc), &doc); err != nil {
		panic(fmt.Errorf("access: invalid embedded policy schema: %w", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("policy.json", doc); err != nil {
		panic(fmt.Errorf("access: add policy schema resource: %w", err))
	}
	s, err := c.Compile("policy.json")
	if err != nil {
		panic(fmt.Errorf("access: compile policy schema: %w", err))
	}
	policySchema = s
}

// ParsePolicyJSON validates raw against the policy document shape before
// unmarshaling it into a Policy, catching externally-supplied policies
// (loaded from config files or admin APIs) that carry typos or stray
// fields rather than silently dropping them via encoding/json's default
// leniency.
func ParsePolicyJSON(raw []byte) (Policy, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Policy{}, fmt.Errorf("access: unmarshal policy: %w", err)
	}
	if err := policySchema.Validate(doc); err != nil {
		return Policy{}, fmt.Errorf("access: policy does not match schema: %w", err)
	}
	var p Policy
	if err := json.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("access: unmarshal policy: %w", err)
	}
	return p, nil
}
