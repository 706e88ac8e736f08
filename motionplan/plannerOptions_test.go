package motionplan

import (
	"testing"

	"go.viam.com/test"
)

func TestConvertAttributes(t *testing.T) {
	opts := NewDefaultPlannerOptions()
	err := opts.ConvertAttributes(map[string]interface{}{
		"step_size":      "0.5",
		"max_iterations": 100,
		"goal_bias":      0.25,
		"rand_seed":      7,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.StepSize, test.ShouldEqual, 0.5)
	test.That(t, opts.MaxIterations, test.ShouldEqual, 100)
	test.That(t, opts.GoalBias, test.ShouldEqual, 0.25)
	test.That(t, opts.RandSeed, test.ShouldEqual, 7)
	test.That(t, opts.SmoothIter, test.ShouldEqual, defaultSmoothIter)

	err = opts.ConvertAttributes(map[string]interface{}{"step_sise": 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "step_sise")

	err = opts.ConvertAttributes(map[string]interface{}{"goal_bias": 2})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "goal_bias")
}

func TestPlannerOptionsValidate(t *testing.T) {
	test.That(t, NewDefaultPlannerOptions().Validate(), test.ShouldBeNil)

	for name, mutate := range map[string]func(*PlannerOptions){
		"max_iterations":    func(o *PlannerOptions) { o.MaxIterations = 0 },
		"step_size":         func(o *PlannerOptions) { o.StepSize = -1 },
		"connect_tolerance": func(o *PlannerOptions) { o.ConnectTolerance = -1 },
		"smooth_iter":       func(o *PlannerOptions) { o.SmoothIter = -1 },
		"num_threads":       func(o *PlannerOptions) { o.NumThreads = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			opts := NewDefaultPlannerOptions()
			mutate(opts)
			err := opts.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, name)
		})
	}
}
