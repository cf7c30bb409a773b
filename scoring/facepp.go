package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	DefaultFacePPBaseURL = "https://api-us.faceplusplus.com/facepp/v3"
	// Allows for 1080x1080 images.
	maxImagePixels   = "1166400"
	maxResponseBytes = 1 << 20
)

// FacePPClient calls the Face++ detect endpoint with beauty attributes.
type FacePPClient struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
}

func NewFacePPClient(apiKey, apiSecret, baseURL string, httpClient *http.Client) *FacePPClient {
	if baseURL == "" {
		baseURL = DefaultFacePPBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FacePPClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type detectResponse struct {
	Faces []struct {
		Attributes struct {
			Beauty *struct {
				MaleScore   float64 `json:"male_score"`
				FemaleScore float64 `json:"female_score"`
			} `json:"beauty"`
		} `json:"attributes"`
	} `json:"faces"`
}

// Score makes a single detect call. Retries belong to RetryingProvider.
func (c *FacePPClient) Score(ctx context.Context, photo []byte) (float64, error) {
	body, contentType, err := c.buildForm(photo)
	if err != nil {
		return 0, UnexpectedError("failed to build Face++ request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", body)
	if err != nil {
		return 0, UnexpectedError("failed to build Face++ request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Max-Image-Pixels", maxImagePixels)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, UnexpectedError("Face++ request cancelled", ctx.Err())
		}
		return 0, TransientError("Face++ API unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, TransientError("failed to read Face++ response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, ClassifyResponse(resp.StatusCode, raw)
	}

	var parsed detectResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, UnexpectedError("invalid Face++ response", err)
	}
	if len(parsed.Faces) == 0 || parsed.Faces[0].Attributes.Beauty == nil {
		return 0, ContentError(msgNoFace)
	}

	// Face++ scores each face against a male and a female model; the average is the comparable value.
	beauty := parsed.Faces[0].Attributes.Beauty
	return (beauty.MaleScore + beauty.FemaleScore) / 2, nil
}

func (c *FacePPClient) buildForm(photo []byte) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"api_key", c.apiKey},
		{"api_secret", c.apiSecret},
		{"return_attributes", "beauty"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("image_file", "photo")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(photo); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
