// Package profiles wraps the Bedrock control-plane view of cross-region
// inference profiles: one profile ID routes a model across the regions
// that host copies of it.
package profiles

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"

	"github.com/ahagan/strata/internal/models"
)

// ControlAPI is the slice of the Bedrock control-plane client this package
// needs.
type ControlAPI interface {
	ListInferenceProfiles(ctx context.Context, params *bedrock.ListInferenceProfilesInput, optFns ...func(*bedrock.Options)) (*bedrock.ListInferenceProfilesOutput, error)
	GetInferenceProfile(ctx context.Context, params *bedrock.GetInferenceProfileInput, optFns ...func(*bedrock.Options)) (*bedrock.GetInferenceProfileOutput, error)
}

// Profile types accepted by List.
const (
	TypeSystemDefined = "SYSTEM_DEFINED"
	TypeApplication   = "APPLICATION"
)

type Client struct {
	api ControlAPI
}

func New(api ControlAPI) *Client {
	return &Client{api: api}
}

// List pages through all inference profiles of the given type. An empty
// profileType lists system-defined profiles.
func (c *Client) List(ctx context.Context, profileType string) ([]models.InferenceProfile, error) {
	if profileType == "" {
		profileType = TypeSystemDefined
	}

	var profiles []models.InferenceProfile
	var nextToken *string

	for {
		out, err := c.api.ListInferenceProfiles(ctx, &bedrock.ListInferenceProfilesInput{
			MaxResults: aws.Int32(50),
			NextToken:  nextToken,
			TypeEquals: btypes.InferenceProfileType(profileType),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list inference profiles: %w", err)
		}

		for _, summary := range out.InferenceProfileSummaries {
			profiles = append(profiles, fromSummary(summary))
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return profiles, nil
}

// Get inspects a single profile by ID or ARN.
func (c *Client) Get(ctx context.Context, identifier string) (models.InferenceProfile, error) {
	out, err := c.api.GetInferenceProfile(ctx, &bedrock.GetInferenceProfileInput{
		InferenceProfileIdentifier: aws.String(identifier),
	})
	if err != nil {
		return models.InferenceProfile{}, fmt.Errorf("failed to get inference profile %s: %w", identifier, err)
	}

	profile := models.InferenceProfile{
		Name:        aws.ToString(out.InferenceProfileName),
		ID:          aws.ToString(out.InferenceProfileId),
		ARN:         aws.ToString(out.InferenceProfileArn),
		Description: aws.ToString(out.Description),
		Status:      string(out.Status),
		Type:        string(out.Type),
	}
	for _, model := range out.Models {
		profile.ModelARNs = append(profile.ModelARNs, aws.ToString(model.ModelArn))
	}

	return profile, nil
}

// Resolve finds the system-defined profile that routes the given
// foundation-model ID. Matching is on the model ARN suffix so both bare
// IDs ("anthropic.claude-...") and full ARNs work.
func (c *Client) Resolve(ctx context.Context, modelID string) (models.InferenceProfile, error) {
	profiles, err := c.List(ctx, TypeSystemDefined)
	if err != nil {
		return models.InferenceProfile{}, err
	}

	for _, profile := range profiles {
		for _, arn := range profile.ModelARNs {
			if strings.HasSuffix(arn, "/"+modelID) || arn == modelID {
				return profile, nil
			}
		}
	}

	return models.InferenceProfile{}, fmt.Errorf("no inference profile routes model %s", modelID)
}

func fromSummary(summary btypes.InferenceProfileSummary) models.InferenceProfile {
	profile := models.InferenceProfile{
		Name:        aws.ToString(summary.InferenceProfileName),
		ID:          aws.ToString(summary.InferenceProfileId),
		ARN:         aws.ToString(summary.InferenceProfileArn),
		Description: aws.ToString(summary.Description),
		Status:      string(summary.Status),
		Type:        string(summary.Type),
	}
	for _, model := range summary.Models {
		profile.ModelARNs = append(profile.ModelARNs, aws.ToString(model.ModelArn))
	}
	return profile
}
