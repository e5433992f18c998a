package transcribe

// DefaultModel is used when a work item does not select a model explicitly.
const DefaultModel = "openai/whisper-tiny"

// Models is the fixed catalog of model identifiers the invoker accepts.
// The first use of a model may involve a one-time download with observable
// latency.
var Models = []string{
	"openai/whisper-tiny",
	"openai/whisper-tiny.en",
	"openai/whisper-base",
	"openai/whisper-base.en",
	"openai/whisper-small",
	"openai/whisper-small.en",
	"openai/whisper-medium",
	"openai/whisper-medium.en",
	"openai/whisper-large-v3",
}

// IsSupportedModel reports whether id is part of the model catalog.
func IsSupportedModel(id string) bool {
	for _, m := range Models {
		if m == id {
			return true
		}
	}
	return false
}
