package models

// Usage is the token accounting reported by the model runtime.
type Usage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Completion is a single model response, normalized across the raw
// InvokeModel API and the Converse API.
type Completion struct {
	Text       string
	StopReason string
	ModelID    string
	Usage      Usage
}

// InferenceProfile describes a cross-region routing profile: one logical
// model identifier backed by copies of the model in several regions.
type InferenceProfile struct {
	Name        string
	ID          string
	ARN         string
	Description string
	Status      string
	Type        string
	ModelARNs   []string
}

// Regions reports the region prefixes of the backing model ARNs, in the
// order the control plane returned them.
func (p InferenceProfile) Regions() []string {
	var regions []string
	seen := make(map[string]bool)
	for _, arn := range p.ModelARNs {
		region := arnRegion(arn)
		if region != "" && !seen[region] {
			regions = append(regions, region)
			seen[region] = true
		}
	}
	return regions
}

// arnRegion pulls the region field out of an ARN:
// arn:partition:service:region:account:resource
func arnRegion(arn string) string {
	var fields []string
	start := 0
	for i := 0; i < len(arn); i++ {
		if arn[i] == ':' {
			fields = append(fields, arn[start:i])
			start = i + 1
			if len(fields) == 4 {
				return fields[3]
			}
		}
	}
	return ""
}
