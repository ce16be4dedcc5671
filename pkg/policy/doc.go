// Package policy provides Open Policy Agent (OPA) admission control for
// runs.
//
// Before an engine executes its first step, the compiled plan, the recipe,
// the resolved target org, and the run variables are handed to the loaded
// Rego policies. Any blocking violation denies the run. The package ships
// builtin policies for common org-provisioning guardrails and loads custom
// policies from files and directories.
//
// # Architecture
//
// The package has three main components:
//
//  1. Engine - Compiles Rego policies and evaluates admission decisions
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Builtin Policies - Guardrails every engine starts with
//
// # Usage
//
// Creating a policy engine and wiring it into a run:
//
//	gate, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := engine.New("org-build", recipe, hooks, engine.Config{
//	    Project: project,
//	    Gate:    gate,
//	})
//
// A denied run surfaces as a POLICY_BLOCKED engine error. The decision
// behind it is available through AsDenial:
//
//	node, err := eng.Execute(ctx)
//	if denial, ok := policy.AsDenial(err); ok {
//	    for _, v := range denial.Decision.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	err = gate.LoadPolicies(ctx, []string{
//	    "/etc/orgforge/policies",
//	    "policies/freeze.rego",
//	})
//
// # Builtin Policies
//
// The following policies are compiled by default:
//
//  1. destructive-operations - Requires approval for destructive actions in
//     production and shields protected orgs
//  2. scratch-org-guard - Restricts scratch org creation to scratch targets
//  3. recipe-hygiene - Flags recipes that are hard to audit
//
// Any of them can be disabled by name, or replaced by loading a policy with
// the same name.
//
// # Custom Policies
//
// Policies query the admission document: input.run_id, input.recipe (the
// recipe as authored), input.plan (the compiled plan), input.target (the
// resolved target org), and input.variables. A deny rule reports either a
// string or an object:
//
//	package orgforge.policies.freeze
//
//	import rego.v1
//
//	deny contains violation if {
//	    some group in input.plan.groups
//	    some step in group.steps
//	    step.action == "install-package"
//	    input.variables.change_freeze
//
//	    violation := {
//	        "message": sprintf("step '%s' installs packages during a change freeze", [step.name]),
//	        "severity": "error",
//	        "step": step.name,
//	        "action": step.action,
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: informational findings
//   - warning: findings worth review that do not block the run
//   - error: findings that deny the run
//   - critical: findings that deny the run and demand immediate attention
//
// # Hot Reload
//
// The loader watches policy files and hands the freshly loaded set to a
// callback after changes settle:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return gate.ReplacePolicies(ctx, policies)
//	})
//
// A reload that fails to compile keeps the previous policy set, so a broken
// edit never strips the gate.
//
// # Performance
//
// Each policy is compiled once into a prepared deny query and reused across
// evaluations.
package policy
