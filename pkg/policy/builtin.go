package policy

import (
	"time"
)

// BuiltinPolicies returns the policies every engine starts with. They cover
// destructive steps reaching orgs nobody meant to touch, scratch orgs
// created against persistent targets, and recipes too sparse to audit.
func BuiltinPolicies() []Policy {
	return []Policy{
		destructiveOperationsPolicy(),
		scratchOrgGuardPolicy(),
		recipeHygienePolicy(),
	}
}

// destructiveOperationsPolicy restricts org-destroying actions.
func destructiveOperationsPolicy() Policy {
	return Policy{
		Name:        "destructive-operations",
		Description: "Requires approval for destructive actions in production and shields protected orgs",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"operations", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package orgforge.policies.operations

import rego.v1

# Actions that remove orgs or installed artifacts.
destructive_actions := {"delete-scratch-org", "remove-org-bundle"}

# Destructive steps in production require explicit approval.
deny contains violation if {
	some group in input.plan.groups
	some step in group.steps
	step.action in destructive_actions
	input.variables.environment == "production"
	not input.variables.approved
	violation := {
		"message": sprintf("destructive action '%s' in step '%s' requires approval in production", [step.action, step.name]),
		"severity": "critical",
		"step": step.name,
		"action": step.action,
	}
}

# Orgs listed as protected are never torn down.
deny contains violation if {
	some group in input.plan.groups
	some step in group.steps
	step.action in destructive_actions
	some protected in input.variables.protected_orgs
	protected == input.plan.target
	violation := {
		"message": sprintf("target org '%s' is protected from '%s'", [input.plan.target, step.action]),
		"severity": "critical",
		"step": step.name,
		"action": step.action,
	}
}`,
	}
}

// scratchOrgGuardPolicy constrains scratch org creation.
func scratchOrgGuardPolicy() Policy {
	return Policy{
		Name:        "scratch-org-guard",
		Description: "Restricts scratch org creation to scratch targets and flags runs creating many of them",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"scratch-orgs", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package orgforge.policies.scratch

import rego.v1

# Limit on scratch orgs created by a single run.
max_scratch_orgs := 3

# Scratch orgs are only created for targets declared as scratch.
deny contains violation if {
	some group in input.plan.groups
	some step in group.steps
	step.action == "create-scratch-org"
	not input.target.isScratchOrg
	violation := {
		"message": sprintf("step '%s' creates a scratch org but target '%s' is persistent", [step.name, input.target.alias]),
		"severity": "error",
		"step": step.name,
		"action": step.action,
	}
}

deny contains violation if {
	creations := [step |
		some group in input.plan.groups
		some step in group.steps
		step.action == "create-scratch-org"
	]
	count(creations) > max_scratch_orgs
	violation := {
		"message": sprintf("plan creates %d scratch orgs (limit %d) - please review", [count(creations), max_scratch_orgs]),
		"severity": "warning",
	}
}`,
	}
}

// recipeHygienePolicy flags recipes that are hard to audit.
func recipeHygienePolicy() Policy {
	return Policy{
		Name:        "recipe-hygiene",
		Description: "Flags recipe names outside naming conventions and steps without descriptions",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package orgforge.policies.hygiene

import rego.v1

# Recipe names are lowercase alphanumeric with hyphens.
deny contains violation if {
	name := input.recipe.recipeName
	not regex.match("^[a-z0-9][a-z0-9-]*$", name)
	violation := {
		"message": sprintf("recipe name '%s' must be lowercase alphanumeric with hyphens", [name]),
		"severity": "warning",
	}
}

# Recipe-declared steps carry a description for the audit trail.
deny contains violation if {
	some group in input.plan.groups
	group.origin == "recipe"
	some step in group.steps
	not step.description
	violation := {
		"message": sprintf("step '%s' in group '%s' has no description", [step.name, group.alias]),
		"severity": "warning",
		"step": step.name,
		"action": step.action,
	}
}`,
	}
}
