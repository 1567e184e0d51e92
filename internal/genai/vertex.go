package genai

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/soundreel/soundreel-go/internal/conf"
	"github.com/soundreel/soundreel-go/internal/errors"
	"github.com/soundreel/soundreel-go/internal/httpclient"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// vertexClient calls the same generateContent API through Vertex AI,
// authenticating with application default credentials.
type vertexClient struct {
	settings    *conf.Settings
	http        *httpclient.Client
	baseURL     string
	tokenSource oauth2.TokenSource
}

func newVertexClient(settings *conf.Settings, client *httpclient.Client) (*vertexClient, error) {
	ts, err := google.DefaultTokenSource(context.Background(), cloudPlatformScope)
	if err != nil {
		return nil, errors.Newf("failed to resolve application default credentials: %w", err).
			Component("genai").
			Category(errors.CategoryConfiguration).
			Build()
	}

	baseURL := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", settings.GenAI.Location)
	return &vertexClient{
		settings:    settings,
		http:        client,
		baseURL:     baseURL,
		tokenSource: oauth2.ReuseTokenSource(nil, ts),
	}, nil
}

func (v *vertexClient) Model() string {
	return v.settings.GenAI.Model
}

func (v *vertexClient) Generate(ctx context.Context, req Request) (*Response, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	token, err := v.tokenSource.Token()
	if err != nil {
		return nil, errors.Newf("failed to obtain access token: %w", err).
			Component("genai").
			Category(errors.CategoryConfiguration).
			Build()
	}

	endpoint := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		v.baseURL, v.settings.GenAI.Project, v.settings.GenAI.Location, v.settings.GenAI.Model)

	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}
	body, err := postWithRetry(ctx, v.http, endpoint, payload, headers)
	if err != nil {
		return nil, err
	}
	return decodeResponse(body, &v.settings.GenAI)
}
