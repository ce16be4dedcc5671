package results_test

import (
	"errors"
	"fmt"

	"github.com/orgforge/orgforge/pkg/results"
)

// ExampleNode_AddChild shows how a parent's bubbling policy turns a child
// error into an explicit abort decision.
func ExampleNode_AddChild() {
	engine := results.NewNode("build-engine", results.TypeEngine, results.Options{
		StartNow:    true,
		BubbleError: true,
	})

	step := results.NewNode("deploy-org-bundle", results.TypeAction, results.Options{StartNow: true})
	_ = step.Error(errors.New("bundle upload refused"))

	outcome, err := engine.AddChild(step)
	if err != nil {
		fmt.Println("structural error:", err)
		return
	}

	fmt.Println("decision:", outcome.Decision)
	fmt.Println("engine status:", engine.Status)
	fmt.Println("engine error:", engine.ErrorText)
	// Output:
	// decision: abort
	// engine status: error
	// engine error: bundle upload refused
}

// ExampleWrap normalizes a plain error into a well-formed result node.
func ExampleWrap() {
	node := results.Wrap(errors.New("connection reset"), "verify-target", results.TypeAction)

	fmt.Println(node.Name)
	fmt.Println(node.Type)
	fmt.Println(node.Status)
	// Output:
	// verify-target
	// action
	// error
}

// ExampleValidate checks the shape of a value that crossed a trust boundary.
func ExampleValidate() {
	engine := results.NewNode("build-engine", results.TypeEngine, results.Options{StartNow: true})
	_ = engine.Error(errors.New("halted"))

	fmt.Println(results.Validate(engine, results.TypeEngine, results.StatusError))
	fmt.Println(results.Validate(engine, results.TypeAction, results.StatusError))
	// Output:
	// true
	// false
}
