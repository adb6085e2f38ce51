// Package buildops decodes the details and results of the build operations
// the converters know about.
package buildops

// Details kinds of the build operations read by the converters.
const (
	KindExecuteTask        = "org.gradle.api.internal.tasks.execution.ExecuteTaskBuildOperationDetails"
	KindTransformationStep = "org.gradle.api.internal.artifacts.transform.ExecuteScheduledTransformationStepBuildOperationDetails"
	KindIdentifyTransform  = "org.gradle.api.internal.artifacts.transform.DefaultTransformerInvocationFactory$AbstractTransformerExecution$DefaultIdentifyTransformBuildOperationDetails"
	KindExecuteWork        = "org.gradle.internal.execution.steps.ExecuteStep$1$1"
)

// Work types of execute-work operations that run a transform.
const (
	WorkTypeImmutableTransform = "org.gradle.api.internal.artifacts.transform.DefaultTransformerInvocationFactory$ImmutableTransformerExecution"
	WorkTypeMutableTransform   = "org.gradle.api.internal.artifacts.transform.DefaultTransformerInvocationFactory$MutableTransformerExecution"
)

func IsExecuteTask(kind string) bool        { return kind == KindExecuteTask }
func IsTransformationStep(kind string) bool { return kind == KindTransformationStep }
func IsIdentifyTransform(kind string) bool  { return kind == KindIdentifyTransform }
func IsExecuteWork(kind string) bool        { return kind == KindExecuteWork }

// IsTransformExecution reports whether an execute-work operation of the
// given work type runs a transform.
func IsTransformExecution(workType string) bool {
	switch workType {
	case WorkTypeImmutableTransform, WorkTypeMutableTransform:
		return true
	default:
		return false
	}
}
